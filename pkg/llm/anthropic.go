package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gradewire/gradewire/pkg/telemetry"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxTokens      = 4096
)

// ErrAPIKeyRequired is returned when no Anthropic API key is configured.
var ErrAPIKeyRequired = errors.New("API key required")

// ErrProviderUnavailable marks failures that exhausted the retry budget.
var ErrProviderUnavailable = errors.New("llm provider unavailable")

// AnthropicClient calls the Anthropic Messages API with bounded exponential
// retry on rate limits and 5xx responses.
type AnthropicClient struct {
	client         anthropic.Client
	maxRetries     int
	initialBackoff time.Duration
}

// NewAnthropicClient reads ANTHROPIC_API_KEY from the environment.
func NewAnthropicClient() (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY environment variable", ErrAPIKeyRequired)
	}

	llmMetricsOnce.Do(initLLMMetrics)

	return &AnthropicClient{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
	}, nil
}

// Provider implements Client.
func (c *AnthropicClient) Provider() string { return "anthropic" }

// llmMetrics holds lazily-initialized OTel instruments for model calls.
var llmMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var llmMetricsOnce sync.Once

func initLLMMetrics() {
	m := telemetry.Meter("github.com/gradewire/gradewire/llm")
	llmMetrics.inputTokens, _ = m.Int64Counter("gradewire.llm.input_tokens",
		metric.WithDescription("Model API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	llmMetrics.outputTokens, _ = m.Int64Counter("gradewire.llm.output_tokens",
		metric.WithDescription("Model API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	llmMetrics.duration, _ = m.Float64Histogram("gradewire.llm.request.duration",
		metric.WithDescription("Model API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// Evaluate implements Client.
func (c *AnthropicClient) Evaluate(ctx context.Context, req Request) (*Result, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		t0 := time.Now()
		message, err := c.client.Messages.New(ctx, params)
		latency := time.Since(t0)

		if err == nil {
			modelAttr := attribute.String("gradewire.llm.model", req.Model)
			if llmMetrics.inputTokens != nil {
				llmMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
				llmMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
				llmMetrics.duration.Record(ctx, float64(latency.Milliseconds()), metric.WithAttributes(modelAttr))
			}
			return buildResult(message, latency)
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) {
			return nil, fmt.Errorf("non-retryable error: %w", err)
		}
	}

	return nil, fmt.Errorf("%w: failed after %d retries: %v", ErrProviderUnavailable, c.maxRetries+1, lastErr)
}

func buildResult(message *anthropic.Message, latency time.Duration) (*Result, error) {
	if len(message.Content) == 0 {
		return nil, fmt.Errorf("unexpected response format: no content blocks")
	}
	content := message.Content[0]
	if content.Type != "text" {
		return nil, fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
	}

	result := &Result{
		RawText:      content.Text,
		TokensInput:  message.Usage.InputTokens,
		TokensOutput: message.Usage.OutputTokens,
		LatencyMS:    latency.Milliseconds(),
	}

	payload := map[string]any{}
	if err := json.Unmarshal([]byte(extractJSON(content.Text)), &payload); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	result.RawJSON = payload
	return result, nil
}

// extractJSON strips a markdown code fence when the model wraps its JSON in
// one.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// IsProviderUnavailable reports whether the error should surface as the
// llm_provider_unavailable error code.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
