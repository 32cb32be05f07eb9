// Package compact provides AI-powered observation compaction: when an
// entity has accumulated enough observations that the raw concatenation
// would make a poor embedding input, a Claude Haiku call folds them into a
// bounded summary that still captures the entity's salient facts.
package compact

import (
	"context"
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
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/kgraphd/kgraphd/internal/telemetry"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second

	// defaultModelName is a small, cheap model: compaction runs on the hot
	// path of generate_embeddings and should not dominate its latency or
	// cost.
	defaultModelName = "claude-3-5-haiku-latest"
)

// errAPIKeyRequired is returned when an API key is needed but not provided.
var errAPIKeyRequired = errors.New("compact: ANTHROPIC_API_KEY required")

// Summarizer compacts an entity's observations into a bounded summary
// string. GenerateEmbeddings uses it, when configured, in place of raw
// concatenation as the embedding source text.
type Summarizer interface {
	Summarize(ctx context.Context, entityName string, observations []string) (string, error)
}

// HaikuSummarizer calls Anthropic's Messages API, mirroring the teacher's
// issue-compaction client: same retry/backoff shape, same OTel span and
// token-usage metrics, adapted from issue tier-1 summaries to entity
// observation summaries.
type HaikuSummarizer struct {
	client         anthropic.Client
	model          anthropic.Model
	maxRetries     int
	initialBackoff time.Duration
}

// NewHaikuSummarizer constructs a HaikuSummarizer. ANTHROPIC_API_KEY takes
// precedence over an explicit apiKey, matching the teacher's env-override
// convention.
func NewHaikuSummarizer(apiKey string) (*HaikuSummarizer, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	aiMetricsOnce.Do(initAIMetrics)

	return &HaikuSummarizer{
		client:         client,
		model:          anthropic.Model(defaultModelName),
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// Summarize folds observations into a short paragraph capturing the
// entity's salient facts, suitable as embedding source text in place of raw
// concatenation once an entity has accumulated many observations.
func (h *HaikuSummarizer) Summarize(ctx context.Context, entityName string, observations []string) (string, error) {
	prompt := renderSummarizePrompt(entityName, observations)
	return h.callWithRetry(ctx, prompt)
}

func renderSummarizePrompt(entityName string, observations []string) string {
	var b strings.Builder
	b.WriteString("Summarize the following observations about \"")
	b.WriteString(entityName)
	b.WriteString("\" into a single dense paragraph of factual statements, suitable as a semantic search embedding input. Do not add commentary or preamble.\n\n")
	for _, o := range observations {
		b.WriteString("- ")
		b.WriteString(o)
		b.WriteString("\n")
	}
	return b.String()
}

var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter("github.com/kgraphd/kgraphd/compact")
	aiMetrics.inputTokens, _ = m.Int64Counter("kg.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed by observation compaction"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("kg.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated by observation compaction"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("kg.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

func (h *HaikuSummarizer) callWithRetry(ctx context.Context, prompt string) (string, error) {
	tracer := telemetry.Tracer("github.com/kgraphd/kgraphd/compact")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("kg.ai.model", string(h.model)),
		attribute.String("kg.ai.operation", "compact_observations"),
	)

	var lastErr error
	params := anthropic.MessageNewParams{
		Model:     h.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := h.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		t0 := time.Now()
		message, err := h.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err == nil {
			modelAttr := attribute.String("kg.ai.model", string(h.model))
			if aiMetrics.inputTokens != nil {
				aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
				aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
				aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
			}
			span.SetAttributes(
				attribute.Int64("kg.ai.input_tokens", message.Usage.InputTokens),
				attribute.Int64("kg.ai.output_tokens", message.Usage.OutputTokens),
				attribute.Int("kg.ai.attempts", attempt+1),
			)

			if len(message.Content) > 0 {
				content := message.Content[0]
				if content.Type == "text" {
					return content.Text, nil
				}
				return "", fmt.Errorf("compact: unexpected response format: not a text block (type=%s)", content.Type)
			}
			return "", fmt.Errorf("compact: unexpected response format: no content blocks")
		}

		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if !isRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("compact: non-retryable error: %w", err)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
	}
	return "", fmt.Errorf("compact: failed after %d attempts: %w", h.maxRetries+1, lastErr)
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
