package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/taleparty/pkg/chat"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"

	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// AnthropicNarrator implements Narrator for Anthropic Claude
type AnthropicNarrator struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AnthropicChatRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []AnthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
}

type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type AnthropicChatResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []AnthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewAnthropicNarrator(apiKey string, modelName string, logger *slog.Logger) *AnthropicNarrator {
	if modelName == "" {
		modelName = DefaultAnthropicModel
	}
	return &AnthropicNarrator{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   anthropicBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// WithBaseURL points the client at another endpoint, such as a test server.
func (a *AnthropicNarrator) WithBaseURL(url string) *AnthropicNarrator {
	a.baseURL = strings.TrimSuffix(url, "/")
	return a
}

func (a *AnthropicNarrator) Name() string {
	return "anthropic"
}

// toAnthropicMessages maps history onto user/assistant turns, merging
// consecutive entries of the same role.
func toAnthropicMessages(history []chat.Message) []AnthropicMessage {
	out := make([]AnthropicMessage, 0, len(history))
	for _, msg := range history {
		role := "user"
		if msg.IsNarrator() {
			role = "assistant"
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + msg.Content
			continue
		}
		out = append(out, AnthropicMessage{Role: role, Content: msg.Content})
	}
	return out
}

func (a *AnthropicNarrator) Complete(ctx context.Context, instruction string, history []chat.Message) (text string, err error) {
	ctx, span := startSpan(ctx, a.Name(), a.modelName, history)
	var anthropicResp AnthropicChatResponse
	defer func() { finishSpan(span, anthropicResp.Usage.InputTokens, anthropicResp.Usage.OutputTokens, err) }()

	temperature := DefaultTemperature
	reqBody, err := json.Marshal(AnthropicChatRequest{
		Model:       a.modelName,
		MaxTokens:   DefaultMaxTokens,
		Temperature: &temperature,
		Messages:    toAnthropicMessages(history),
		System:      instruction,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		a.logger.Warn("Anthropic request failed", "status", resp.StatusCode, "model", a.modelName)
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if anthropicResp.Error != nil {
		return "", fmt.Errorf("API error: %s", anthropicResp.Error.Message)
	}

	var sb strings.Builder
	for _, content := range anthropicResp.Content {
		if content.Type == "text" {
			sb.WriteString(content.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}
