package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jwebster45206/taleparty/internal/middleware"
	"github.com/jwebster45206/taleparty/internal/session"
	"github.com/jwebster45206/taleparty/pkg/chat"
	"github.com/jwebster45206/taleparty/pkg/prompts"
)

const defaultOOCLimit = 50

type JoinRequest struct {
	CharacterName string `json:"character_name"`
}

type OOCRequest struct {
	Text string `json:"text"`
}

type TitleResponse struct {
	Title string `json:"title"`
}

type LegendsResponse struct {
	Categories []prompts.LegendCategory `json:"categories"`
}

// SessionHandler exposes the session orchestrator over HTTP.
type SessionHandler struct {
	orch   *session.Orchestrator
	logger *slog.Logger
}

func NewSessionHandler(orch *session.Orchestrator, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{orch: orch, logger: logger}
}

// Register mounts the session routes:
// POST   /v1/sessions              - Create session
// GET    /v1/sessions/{id}         - Read session
// DELETE /v1/sessions/{id}         - Delete session (host)
// POST   /v1/sessions/{id}/join    - Set character name
// POST   /v1/sessions/{id}/start   - Fix turn order (host)
// POST   /v1/sessions/{id}/finish  - End session (host)
// POST   /v1/sessions/{id}/begin   - Opening narration
// POST   /v1/sessions/{id}/actions - Submit a turn
// POST   /v1/sessions/{id}/title   - Generate a title
// POST   /v1/sessions/{id}/ooc     - Post table talk
// GET    /v1/sessions/{id}/ooc     - List table talk
// GET    /v1/legends               - Legends catalogue
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions", h.handleCreate)
	mux.HandleFunc("GET /v1/sessions/{id}", h.withSession(h.handleGet))
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.withSession(h.handleDelete))
	mux.HandleFunc("POST /v1/sessions/{id}/join", h.withSession(h.handleJoin))
	mux.HandleFunc("POST /v1/sessions/{id}/start", h.withSession(h.handleStart))
	mux.HandleFunc("POST /v1/sessions/{id}/finish", h.withSession(h.handleFinish))
	mux.HandleFunc("POST /v1/sessions/{id}/begin", h.withSession(h.handleBegin))
	mux.HandleFunc("POST /v1/sessions/{id}/actions", h.withSession(h.handleAction))
	mux.HandleFunc("POST /v1/sessions/{id}/title", h.withSession(h.handleTitle))
	mux.HandleFunc("POST /v1/sessions/{id}/ooc", h.withSession(h.handlePostOOC))
	mux.HandleFunc("GET /v1/sessions/{id}/ooc", h.withSession(h.handleListOOC))
	mux.HandleFunc("GET /v1/legends", h.handleLegends)
}

type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, userID string)

// withSession parses the session id and requires an authenticated caller.
func (h *SessionHandler) withSession(next sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		idStr := r.PathValue("id")
		sessionID, err := uuid.Parse(idStr)
		if err != nil {
			h.logger.Warn("Invalid session ID", "id", idStr, "error", err)
			writeError(w, h.logger, http.StatusBadRequest, "invalid_input", "Invalid session ID format")
			return
		}
		next(w, r, sessionID, userID)
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	var req session.CreateRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_input", "Invalid JSON in request body")
		return
	}

	gs, err := h.orch.CreateSession(r.Context(), userID, req)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, gs)
}

func (h *SessionHandler) handleGet(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, userID string) {
	gs, err := h.orch.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, gs)
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, userID string) {
	if err := h.orch.DeleteSession(r.Context(), sessionID, userID); err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleJoin(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, userID string) {
	var req JoinRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_input", "Invalid JSON in request body")
		return
	}
	gs, err := h.orch.JoinSession(r.Context(), sessionID, userID, req.CharacterName)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, gs)
}

func (h *SessionHandler) handleStart(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, userID string) {
	gs, err := h.orch.StartSession(r.Context(), sessionID, userID)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, gs)
}

func (h *SessionHandler) handleFinish(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, userID string) {
	gs, err := h.orch.FinishSession(r.Context(), sessionID, userID)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, gs)
}

func (h *SessionHandler) handleBegin(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, userID string) {
	resp, err := h.orch.BeginStory(r.Context(), sessionID, userID)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *SessionHandler) handleAction(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, userID string) {
	var req chat.ActionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_input", "Invalid JSON in request body")
		return
	}
	resp, err := h.orch.SubmitAction(r.Context(), sessionID, userID, req)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *SessionHandler) handleTitle(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, userID string) {
	title, err := h.orch.GenerateTitle(r.Context(), sessionID, userID)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, TitleResponse{Title: title})
}

func (h *SessionHandler) handlePostOOC(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, userID string) {
	var req OOCRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_input", "Invalid JSON in request body")
		return
	}
	msg, err := h.orch.PostOOC(r.Context(), sessionID, userID, req.Text)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, msg)
}

func (h *SessionHandler) handleListOOC(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, userID string) {
	limit := defaultOOCLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_input", "limit must be a positive integer")
			return
		}
		limit = n
	}
	msgs, err := h.orch.ListOOC(r.Context(), sessionID, userID, limit)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, msgs)
}

func (h *SessionHandler) handleLegends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, LegendsResponse{Categories: h.orch.Legends()})
}
