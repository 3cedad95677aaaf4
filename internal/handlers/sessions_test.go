package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/taleparty/internal/middleware"
	"github.com/jwebster45206/taleparty/internal/services"
	"github.com/jwebster45206/taleparty/internal/services/queue"
	"github.com/jwebster45206/taleparty/internal/session"
	"github.com/jwebster45206/taleparty/internal/storage"
	"github.com/jwebster45206/taleparty/pkg/chat"
	"github.com/jwebster45206/taleparty/pkg/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiEnv struct {
	handler  http.Handler
	orch     *session.Orchestrator
	narrator *services.MockNarrator
}

func newAPIEnv(t *testing.T, responses ...string) *apiEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sessions := storage.NewSessions(storage.NewMemoryStore(), discardLogger())
	narrator := services.NewMockNarrator(responses...)
	orch := session.New(sessions, narrator, nil, session.Options{}, discardLogger()).
		WithOOCLog(queue.NewOOCQueue(rdb, discardLogger()))

	mux := http.NewServeMux()
	NewSessionHandler(orch, discardLogger()).Register(mux)
	return &apiEnv{
		handler:  middleware.NewAuth("", discardLogger()).Middleware(mux),
		orch:     orch,
		narrator: narrator,
	}
}

func (e *apiEnv) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

// startParty drives a two-player session to active over HTTP.
func (e *apiEnv) startParty(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/sessions", "host",
		`{"game_mode":"multiplayer","character_name":"Aria","invitees":["bob"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	gs := decode[state.GameSession](t, rec)
	id := gs.ID.String()

	rec = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/join", "bob", `{"character_name":"Bram"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/start", "host", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	gs = decode[state.GameSession](t, rec)
	require.Equal(t, []string{"host", "bob"}, gs.TurnOrder)
	return id
}

func TestSessionHandler_TurnFlow(t *testing.T) {
	env := newAPIEnv(t, "The door creaks open. [ITEM_ACQUIRED:LANTERN]")
	id := env.startParty(t)

	rec := env.do(t, http.MethodPost, "/v1/sessions/"+id+"/actions", "host", `{"message":"I open the door"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[chat.ActionResponse](t, rec)
	assert.Equal(t, "The door creaks open.", resp.Narration)
	assert.Equal(t, "bob", resp.NextActorID)
	assert.Equal(t, "It is now Bram's turn.", resp.Announcement)

	// The host already acted this round.
	rec = env.do(t, http.MethodPost, "/v1/sessions/"+id+"/actions", "host", `{"message":"again"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "turn_violation", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodGet, "/v1/sessions/"+id, "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	gs := decode[state.GameSession](t, rec)
	assert.Equal(t, state.Inventory{"LANTERN"}, gs.Inventory)
	assert.Equal(t, "bob", gs.CurrentActorID)
	assert.Len(t, gs.History, 2)
}

func TestSessionHandler_Errors(t *testing.T) {
	env := newAPIEnv(t)
	id := env.startParty(t)

	tests := []struct {
		name       string
		method     string
		path       string
		userID     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "no caller", method: http.MethodGet, path: "/v1/sessions/" + id, wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{name: "bad id", method: http.MethodGet, path: "/v1/sessions/not-a-uuid", userID: "host", wantStatus: http.StatusBadRequest, wantCode: "invalid_input"},
		{name: "unknown session", method: http.MethodGet, path: "/v1/sessions/00000000-0000-0000-0000-000000000001", userID: "host", wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "stranger", method: http.MethodGet, path: "/v1/sessions/" + id, userID: "eve", wantStatus: http.StatusForbidden, wantCode: "forbidden"},
		{name: "malformed body", method: http.MethodPost, path: "/v1/sessions/" + id + "/actions", userID: "host", body: `{"message":`, wantStatus: http.StatusBadRequest, wantCode: "invalid_input"},
		{name: "unknown field", method: http.MethodPost, path: "/v1/sessions/" + id + "/actions", userID: "host", body: `{"msg":"hi"}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_input"},
		{name: "empty message", method: http.MethodPost, path: "/v1/sessions/" + id + "/actions", userID: "host", body: `{"message":"  "}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_input"},
		{name: "start twice", method: http.MethodPost, path: "/v1/sessions/" + id + "/start", userID: "host", wantStatus: http.StatusConflict, wantCode: "invalid_state"},
		{name: "finish by guest", method: http.MethodPost, path: "/v1/sessions/" + id + "/finish", userID: "bob", wantStatus: http.StatusForbidden, wantCode: "forbidden"},
		{name: "bad ooc limit", method: http.MethodGet, path: "/v1/sessions/" + id + "/ooc?limit=zero", userID: "host", wantStatus: http.StatusBadRequest, wantCode: "invalid_input"},
		{name: "bad mode", method: http.MethodPost, path: "/v1/sessions", userID: "host", body: `{"game_mode":"arena"}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.userID, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestSessionHandler_NarrationFailure(t *testing.T) {
	env := newAPIEnv(t)
	id := env.startParty(t)
	env.narrator.SetError(assert.AnError)

	rec := env.do(t, http.MethodPost, "/v1/sessions/"+id+"/actions", "host", `{"message":"look around"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "narration_failure", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodGet, "/v1/sessions/"+id, "host", "")
	gs := decode[state.GameSession](t, rec)
	assert.Empty(t, gs.History)
	assert.Equal(t, "host", gs.CurrentActorID)
}

func TestSessionHandler_SinglePlayerLifecycle(t *testing.T) {
	env := newAPIEnv(t, "Mist rolls over the moor.", "the moor of mist")

	rec := env.do(t, http.MethodPost, "/v1/sessions", "solo", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	gs := decode[state.GameSession](t, rec)
	assert.Equal(t, state.ModeClassic, gs.Mode)
	id := gs.ID.String()

	rec = env.do(t, http.MethodPost, "/v1/sessions/"+id+"/begin", "solo", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Mist rolls over the moor.", decode[chat.ActionResponse](t, rec).Narration)

	rec = env.do(t, http.MethodPost, "/v1/sessions/"+id+"/title", "solo", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "The Moor Of Mist", decode[TitleResponse](t, rec).Title)

	rec = env.do(t, http.MethodPost, "/v1/sessions/"+id+"/finish", "solo", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, state.StatusFinished, decode[state.GameSession](t, rec).Status)

	rec = env.do(t, http.MethodDelete, "/v1/sessions/"+id, "solo", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/sessions/"+id, "solo", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_OOC(t *testing.T) {
	env := newAPIEnv(t)
	id := env.startParty(t)

	rec := env.do(t, http.MethodPost, "/v1/sessions/"+id+"/ooc", "bob", `{"text":"brb, pizza"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/v1/sessions/"+id+"/ooc", "host", `{"text":"ok"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/sessions/"+id+"/ooc?limit=10", "host", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	msgs := decode[[]queue.OOCMessage](t, rec)
	require.Len(t, msgs, 2)
	assert.Equal(t, "bob", msgs[0].UserID)
	assert.Equal(t, "brb, pizza", msgs[0].Text)
	assert.Equal(t, "ok", msgs[1].Text)

	rec = env.do(t, http.MethodPost, "/v1/sessions/"+id+"/ooc", "eve", `{"text":"hi"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSessionHandler_Legends(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/legends", "anyone", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LegendsResponse](t, rec)
	assert.NotEmpty(t, resp.Categories)
}
