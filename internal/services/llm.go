package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/taleparty/pkg/chat"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("narrator returned an empty completion")

// Narrator is the black-box text completion service. History is ordered and
// its first entry is always a participant message.
type Narrator interface {
	Complete(ctx context.Context, instruction string, history []chat.Message) (string, error)

	// Name identifies the provider in logs and health checks.
	Name() string
}

const (
	DefaultTemperature = 0.9
	DefaultMaxTokens   = 2048
)

var tracer = otel.Tracer("github.com/jwebster45206/taleparty/internal/services")

// startSpan opens a client span carrying GenAI semantic attributes.
func startSpan(ctx context.Context, system, model string, history []chat.Message) (context.Context, trace.Span) {
	return tracer.Start(ctx, "narrator.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.system", system),
			attribute.String("gen_ai.request.model", model),
			attribute.Int("gen_ai.request.message_count", len(history)),
		),
	)
}

// finishSpan records usage and errors on span and ends it.
func finishSpan(span trace.Span, inputTokens, outputTokens int64, err error) {
	if inputTokens > 0 {
		span.SetAttributes(attribute.Int64("gen_ai.usage.input_tokens", inputTokens))
	}
	if outputTokens > 0 {
		span.SetAttributes(attribute.Int64("gen_ai.usage.output_tokens", outputTokens))
	}
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "narrator_completion_error"))
	}
	span.End()
}

// NarratorConfig selects and configures a provider.
type NarratorConfig struct {
	Provider string
	Model    string

	GeminiAPIKey    string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
}

// NewNarrator builds the narrator for cfg.Provider.
func NewNarrator(ctx context.Context, cfg NarratorConfig, logger *slog.Logger) (Narrator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return NewGeminiNarrator(ctx, cfg.GeminiAPIKey, cfg.Model, logger)
	case "openai":
		return NewOpenAINarrator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, logger), nil
	case "anthropic":
		return NewAnthropicNarrator(cfg.AnthropicAPIKey, cfg.Model, logger), nil
	case "mock":
		return NewMockNarrator(), nil
	default:
		return nil, fmt.Errorf("unsupported narrator provider: %s", cfg.Provider)
	}
}
