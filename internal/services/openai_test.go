package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwebster45206/taleparty/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToOpenAIMessages(t *testing.T) {
	msgs := toOpenAIMessages("instruction", []chat.Message{
		{Role: chat.RoleParticipant, Content: "Begin the game."},
		{Role: chat.RoleNarrator, Content: "Fog rolls in."},
	})

	require.Len(t, msgs, 3)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	assert.NotNil(t, msgs[2].OfAssistant)
}

func TestOpenAINarrator_Complete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-test",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "A raven lands nearby."}
			}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 6, "total_tokens": 26}
		}`))
	}))
	defer server.Close()

	n := NewOpenAINarrator("test-key", server.URL, "gpt-test", discardLogger())
	text, err := n.Complete(context.Background(), "You are the narrator.", []chat.Message{
		{Role: chat.RoleParticipant, Content: "Begin the game."},
	})

	require.NoError(t, err)
	assert.Equal(t, "A raven lands nearby.", text)
	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "You are the narrator.", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestOpenAINarrator_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "model": "m", "choices": []}`))
	}))
	defer server.Close()

	n := NewOpenAINarrator("k", server.URL, "", discardLogger())
	_, err := n.Complete(context.Background(), "sys", []chat.Message{{Role: chat.RoleParticipant, Content: "hi"}})
	assert.Error(t, err)
}

func TestNewNarrator(t *testing.T) {
	ctx := context.Background()

	n, err := NewNarrator(ctx, NarratorConfig{Provider: "mock"}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "mock", n.Name())

	n, err = NewNarrator(ctx, NarratorConfig{Provider: "OpenAI", OpenAIAPIKey: "k"}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "openai", n.Name())

	n, err = NewNarrator(ctx, NarratorConfig{Provider: "anthropic", AnthropicAPIKey: "k"}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "anthropic", n.Name())

	_, err = NewNarrator(ctx, NarratorConfig{Provider: "gemini"}, discardLogger())
	assert.Error(t, err, "gemini requires an API key")

	_, err = NewNarrator(ctx, NarratorConfig{Provider: "carrier-pigeon"}, discardLogger())
	assert.Error(t, err)
}
