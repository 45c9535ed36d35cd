package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// StubClient returns a fixed, schema-valid evaluation for offline runs and
// tests. Deterministic: the same request always yields the same result.
type StubClient struct {
	mu    sync.Mutex
	calls []Request

	// Err, when set, is returned from every Evaluate call.
	Err error
}

// NewStubClient returns an empty stub.
func NewStubClient() *StubClient { return &StubClient{} }

// Provider implements Client.
func (s *StubClient) Provider() string { return "stub" }

// Calls returns a copy of every request seen so far.
func (s *StubClient) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// Evaluate implements Client.
func (s *StubClient) Evaluate(_ context.Context, req Request) (*Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	payload := map[string]any{
		"criteria": []any{
			map[string]any{"id": "correctness", "score": float64(8), "reason": "Core logic is mostly correct"},
			map[string]any{"id": "completeness", "score": float64(7), "reason": "Most requirements are covered"},
			map[string]any{"id": "code_quality", "score": float64(8), "reason": "Readable structure"},
			map[string]any{"id": "edge_cases", "score": float64(7), "reason": "Basic edge cases addressed"},
		},
		"organizer_feedback": map[string]any{
			"strengths":       []any{"Clear structure", "Reasonable decomposition"},
			"issues":          []any{"Edge-case handling can be expanded"},
			"recommendations": []any{"Add failure-path tests for malformed inputs"},
		},
		"candidate_feedback": map[string]any{
			"summary":         "Good baseline with room for hardening.",
			"what_went_well":  []any{"You solved the core task"},
			"what_to_improve": []any{"Cover more edge cases and retries"},
		},
		"ai_assistance": map[string]any{
			"likelihood": 0.35,
			"confidence": 0.55,
			"disclaimer": "Probabilistic indicator, not proof",
		},
	}

	raw, _ := json.Marshal(payload)
	return &Result{
		RawText:      string(raw),
		RawJSON:      payload,
		TokensInput:  128,
		TokensOutput: 256,
		LatencyMS:    120,
	}, nil
}
