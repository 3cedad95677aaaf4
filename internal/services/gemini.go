package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/taleparty/pkg/chat"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-1.5-flash-latest"

// GeminiNarrator implements Narrator for Google Gemini.
type GeminiNarrator struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiNarrator connects to the Gemini API with apiKey.
func NewGeminiNarrator(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiNarrator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiNarrator{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

func (g *GeminiNarrator) Name() string {
	return "gemini"
}

// toGeminiContents maps history onto user/model turns.
func toGeminiContents(history []chat.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		var role genai.Role = genai.RoleUser
		if msg.IsNarrator() {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

func (g *GeminiNarrator) Complete(ctx context.Context, instruction string, history []chat.Message) (text string, err error) {
	ctx, span := startSpan(ctx, g.Name(), g.model, history)
	var inputTokens, outputTokens int64
	defer func() { finishSpan(span, inputTokens, outputTokens, err) }()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, toGeminiContents(history), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](DefaultTemperature),
		MaxOutputTokens:   DefaultMaxTokens,
	})
	if err != nil {
		g.logger.Warn("Gemini completion failed", "model", g.model, "error", err)
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	if resp.UsageMetadata != nil {
		inputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}

	content := resp.Text()
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
