package chat

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxMessageLength caps a single submitted action.
const MaxMessageLength = 2000

const (
	RoleParticipant = "participant" // A player (or the narrator-controlled entity) acting in the story
	RoleNarrator    = "narrator"    // The generative narrator
)

// Message is a single entry of a session's story history.
// History is append-only; messages are never edited once stored.
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	AuthorID string `json:"author_id,omitempty"`
}

// ActionRequest is the body of a turn submission made to the API.
type ActionRequest struct {
	ActorID string `json:"actor_id,omitempty"` // Defaults to the caller
	Message string `json:"message"`
}

// ActionResponse is returned after a turn has been narrated and persisted.
type ActionResponse struct {
	SessionID    uuid.UUID `json:"session_id"`
	Narration    string    `json:"narration"`
	Announcement string    `json:"announcement,omitempty"`
	NextActorID  string    `json:"next_actor_id,omitempty"`
	Version      int64     `json:"version"`
}

func (ar *ActionRequest) Validate() error {
	if strings.TrimSpace(ar.Message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if len(ar.Message) > MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d characters", MaxMessageLength)
	}
	return nil
}

// FormatWithSpeaker prefixes a participant action with the acting character's
// name so the narrator can tell players apart. The prefix is always added, so
// a message that opens with another character's "Name:" still reads as the
// speaker's own words.
func FormatWithSpeaker(message, speaker string) string {
	return speaker + ": " + message
}

// IsNarrator reports whether the message was written by the narrator.
func (m Message) IsNarrator() bool {
	return m.Role == RoleNarrator
}
