package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwebster45206/taleparty/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAnthropicNarrator(t *testing.T) {
	n := NewAnthropicNarrator("test-api-key", "", discardLogger())

	assert.Equal(t, "test-api-key", n.apiKey)
	assert.Equal(t, DefaultAnthropicModel, n.modelName)
	assert.Equal(t, anthropicBaseURL, n.baseURL)
	assert.NotNil(t, n.httpClient)
	assert.Equal(t, "anthropic", n.Name())
}

func TestToAnthropicMessages(t *testing.T) {
	tests := []struct {
		name     string
		history  []chat.Message
		expected []AnthropicMessage
	}{
		{
			name:     "empty history",
			history:  nil,
			expected: []AnthropicMessage{},
		},
		{
			name: "alternating roles",
			history: []chat.Message{
				{Role: chat.RoleParticipant, Content: "Begin the game."},
				{Role: chat.RoleNarrator, Content: "You wake in a cell."},
				{Role: chat.RoleParticipant, Content: "Alice: I look around."},
			},
			expected: []AnthropicMessage{
				{Role: "user", Content: "Begin the game."},
				{Role: "assistant", Content: "You wake in a cell."},
				{Role: "user", Content: "Alice: I look around."},
			},
		},
		{
			name: "consecutive participants are merged",
			history: []chat.Message{
				{Role: chat.RoleParticipant, Content: "Alice: I wait."},
				{Role: chat.RoleParticipant, Content: "Bob: I pick the lock."},
			},
			expected: []AnthropicMessage{
				{Role: "user", Content: "Alice: I wait.\n\nBob: I pick the lock."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, toAnthropicMessages(tt.history))
		})
	}
}

func TestAnthropicNarrator_Complete(t *testing.T) {
	var got AnthropicChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"content": [{"type": "text", "text": "The door creaks open."}],
			"usage": {"input_tokens": 12, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	n := NewAnthropicNarrator("test-key", "claude-test", discardLogger()).WithBaseURL(server.URL + "/")
	text, err := n.Complete(context.Background(), "You are the narrator.", []chat.Message{
		{Role: chat.RoleParticipant, Content: "Begin the game."},
	})

	require.NoError(t, err)
	assert.Equal(t, "The door creaks open.", text)
	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, "You are the narrator.", got.System)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestAnthropicNarrator_CompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:   "non-200 status",
			status: http.StatusTooManyRequests,
			body:   `{"error": {"type": "rate_limit_error", "message": "slow down"}}`,
		},
		{
			name:   "error payload",
			status: http.StatusOK,
			body:   `{"error": {"type": "overloaded_error", "message": "overloaded"}}`,
		},
		{
			name:   "invalid json",
			status: http.StatusOK,
			body:   `not json`,
		},
		{
			name:    "blank text",
			status:  http.StatusOK,
			body:    `{"content": [{"type": "text", "text": "   "}]}`,
			wantErr: ErrEmptyCompletion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			n := NewAnthropicNarrator("k", "", discardLogger()).WithBaseURL(server.URL)
			text, err := n.Complete(context.Background(), "sys", []chat.Message{{Role: chat.RoleParticipant, Content: "hi"}})

			require.Error(t, err)
			assert.Empty(t, text)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}
