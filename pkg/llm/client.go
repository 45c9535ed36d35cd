// Package llm abstracts the model provider used by the evaluate stage.
package llm

import "context"

// Request is one evaluation invocation. Prompts are fully rendered by the
// chain before they reach the client.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int64
}

// Result carries the raw model output plus usage accounting for the
// llm_runs audit trail. RawJSON is the decoded response body; schema
// validation happens in the chain, not here.
type Result struct {
	RawText      string
	RawJSON      map[string]any
	TokensInput  int64
	TokensOutput int64
	LatencyMS    int64
}

// Client evaluates a rendered prompt pair against a model.
type Client interface {
	// Provider names the backing implementation for audit records.
	Provider() string

	Evaluate(ctx context.Context, req Request) (*Result, error)
}
