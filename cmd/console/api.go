package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/taleparty/pkg/chat"
	"github.com/jwebster45206/taleparty/pkg/state"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status int
	Code   string
	Msg    string
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("API returned status %d", e.Status)
	}
	return e.Msg
}

// apiClient talks to the session API as a single user.
type apiClient struct {
	baseURL string
	userID  string
	token   string
	http    *http.Client
}

func (c *apiClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
		return
	}
	req.Header.Set("X-User-ID", c.userID)
}

// do sends a JSON request and decodes a JSON answer into out when out is
// non-nil.
func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errorResp ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err == nil {
			apiErr.Code = errorResp.Code
			apiErr.Msg = errorResp.Error
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *apiClient) healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// CreateSessionRequest matches the API request structure
type CreateSessionRequest struct {
	Mode          state.GameMode   `json:"game_mode,omitempty"`
	Difficulty    state.Difficulty `json:"difficulty,omitempty"`
	CharacterName string           `json:"character_name,omitempty"`
	Invitees      []string         `json:"invitees,omitempty"`
	LegendName    string           `json:"legend_name,omitempty"`
	CustomPrompt  string           `json:"custom_prompt,omitempty"`
}

func (c *apiClient) createSession(ctx context.Context, req CreateSessionRequest) (*state.GameSession, error) {
	var gs state.GameSession
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &gs); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &gs, nil
}

func (c *apiClient) getSession(ctx context.Context, id uuid.UUID) (*state.GameSession, error) {
	var gs state.GameSession
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+id.String(), nil, &gs); err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &gs, nil
}

func (c *apiClient) joinSession(ctx context.Context, id uuid.UUID, characterName string) (*state.GameSession, error) {
	var gs state.GameSession
	body := map[string]string{"character_name": characterName}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id.String()+"/join", body, &gs); err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}
	return &gs, nil
}

func (c *apiClient) startSession(ctx context.Context, id uuid.UUID) (*state.GameSession, error) {
	var gs state.GameSession
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id.String()+"/start", nil, &gs); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return &gs, nil
}

func (c *apiClient) beginStory(ctx context.Context, id uuid.UUID) (*chat.ActionResponse, error) {
	var resp chat.ActionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id.String()+"/begin", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to begin story: %w", err)
	}
	return &resp, nil
}

func (c *apiClient) submitAction(ctx context.Context, id uuid.UUID, req chat.ActionRequest) (*chat.ActionResponse, error) {
	var resp chat.ActionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id.String()+"/actions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) postOOC(ctx context.Context, id uuid.UUID, text string) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+id.String()+"/ooc", map[string]string{"text": text}, nil)
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// listenToSSE connects to the session event stream and forwards events to
// eventChan until ctx ends or the stream closes.
func (c *apiClient) listenToSSE(ctx context.Context, id uuid.UUID, eventChan chan<- SSEEvent) error {
	endpoint := fmt.Sprintf("%s/v1/sessions/%s/events", c.baseURL, id)
	if c.token != "" {
		endpoint += "?access_token=" + url.QueryEscape(c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.token == "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	// The stream outlives the request timeout of the regular client.
	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			// Empty line signals end of event
			if currentEvent.Type != "" {
				select {
				case eventChan <- currentEvent:
				case <-ctx.Done():
					return ctx.Err()
				}
				currentEvent = SSEEvent{}
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var data map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err == nil {
				currentEvent.Data = data
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return ctx.Err()
}
