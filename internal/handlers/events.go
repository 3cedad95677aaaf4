package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/taleparty/internal/middleware"
	"github.com/jwebster45206/taleparty/internal/services/events"
	"github.com/redis/go-redis/v9"
)

// DefaultKeepalive is how often an idle stream gets a comment line and the
// viewer's presence is refreshed. It must stay under the presence TTL.
const DefaultKeepalive = 15 * time.Second

// Subscriber opens the Pub/Sub stream for a session.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID uuid.UUID) (*redis.PubSub, error)
}

// Watcher tracks who is watching a session's stream.
type Watcher interface {
	Connect(ctx context.Context, sessionID uuid.UUID, userID string) ([]string, error)
	Heartbeat(ctx context.Context, sessionID uuid.UUID, userID string) error
	Disconnect(ctx context.Context, sessionID uuid.UUID, userID string)
}

// EventsHandler handles Server-Sent Events (SSE) for live session updates
type EventsHandler struct {
	subscriber Subscriber
	watcher    Watcher
	keepalive  time.Duration
	logger     *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(subscriber Subscriber, watcher Watcher, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		subscriber: subscriber,
		watcher:    watcher,
		keepalive:  DefaultKeepalive,
		logger:     logger,
	}
}

// WithKeepalive overrides the keepalive interval.
func (h *EventsHandler) WithKeepalive(d time.Duration) *EventsHandler {
	if d > 0 {
		h.keepalive = d
	}
	return h
}

func (h *EventsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/sessions/{id}/events", h.ServeHTTP)
}

// ServeHTTP streams session events to a member.
// GET /v1/sessions/{id}/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_input", "Invalid session ID format")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, http.StatusInternalServerError, "internal", "Streaming unsupported")
		return
	}

	ctx := r.Context()

	// Subscribe before announcing presence so this viewer sees its own join.
	pubsub, err := h.subscriber.Subscribe(ctx, sessionID)
	if err != nil {
		h.logger.Error("Failed to subscribe to session events", "session_id", sessionID, "error", err)
		writeError(w, h.logger, http.StatusServiceUnavailable, "unavailable", "Event stream unavailable")
		return
	}
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()

	members, err := h.watcher.Connect(ctx, sessionID, userID)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		h.watcher.Disconnect(leaveCtx, sessionID, userID)
	}()

	h.logger.Info("SSE connection established",
		"session_id", sessionID.String(),
		"user_id", userID,
		"remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	msgChan := pubsub.Channel()

	keepaliveTicker := time.NewTicker(h.keepalive)
	defer keepaliveTicker.Stop()

	if err := h.sendSSE(w, flusher, "connected", map[string]any{
		"session_id": sessionID.String(),
		"members":    members,
	}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected", "session_id", sessionID.String(), "user_id", userID)
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			var event events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Error("Failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			if err := h.sendSSE(w, flusher, string(event.Type), event.Data); err != nil {
				return
			}

		case <-keepaliveTicker.C:
			if err := h.watcher.Heartbeat(ctx, sessionID, userID); err != nil {
				h.logger.Warn("Failed to refresh presence", "session_id", sessionID, "user_id", userID, "error", err)
			}
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				h.logger.Error("Failed to write keepalive", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// sendSSE writes one Server-Sent Event and flushes it.
func (h *EventsHandler) sendSSE(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal SSE data", "error", err)
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, dataJSON); err != nil {
		h.logger.Error("Failed to write event", "error", err)
		return err
	}
	flusher.Flush()
	return nil
}
