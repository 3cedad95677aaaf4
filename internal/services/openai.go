package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/taleparty/pkg/chat"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAINarrator implements Narrator for OpenAI and any endpoint speaking the
// same chat completions protocol.
type OpenAINarrator struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAINarrator creates a narrator. An empty baseURL uses the OpenAI API.
func NewOpenAINarrator(apiKey, baseURL, model string, logger *slog.Logger) *OpenAINarrator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	client := openai.NewClient(opts...)
	return &OpenAINarrator{
		client: &client,
		model:  model,
		logger: logger,
	}
}

func (o *OpenAINarrator) Name() string {
	return "openai"
}

func toOpenAIMessages(instruction string, history []chat.Message) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	msgs = append(msgs, openai.SystemMessage(instruction))
	for _, msg := range history {
		if msg.IsNarrator() {
			msgs = append(msgs, openai.AssistantMessage(msg.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(msg.Content))
		}
	}
	return msgs
}

func (o *OpenAINarrator) Complete(ctx context.Context, instruction string, history []chat.Message) (text string, err error) {
	ctx, span := startSpan(ctx, o.Name(), o.model, history)
	var inputTokens, outputTokens int64
	defer func() { finishSpan(span, inputTokens, outputTokens, err) }()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(o.model),
		Messages:            toOpenAIMessages(instruction, history),
		Temperature:         openai.Float(DefaultTemperature),
		MaxCompletionTokens: openai.Int(DefaultMaxTokens),
	})
	if err != nil {
		o.logger.Warn("OpenAI completion failed", "model", o.model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	inputTokens, outputTokens = resp.Usage.PromptTokens, resp.Usage.CompletionTokens

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
