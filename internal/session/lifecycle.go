package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/taleparty/pkg/prompts"
	"github.com/jwebster45206/taleparty/pkg/state"
	"github.com/jwebster45206/taleparty/pkg/turn"
)

// MaxCharacterNameLength caps a participant's display name.
const MaxCharacterNameLength = 60

// CreateRequest describes a new session.
type CreateRequest struct {
	Mode          state.GameMode   `json:"game_mode"`
	Difficulty    state.Difficulty `json:"difficulty"`
	CustomPrompt  string           `json:"custom_prompt,omitempty"`
	LegendName    string           `json:"legend_name,omitempty"`
	Title         string           `json:"title,omitempty"`
	CharacterName string           `json:"character_name,omitempty"` // The host's own character
	Invitees      []string         `json:"invitees,omitempty"`

	// NarratorEntityID adds a roster entry voiced by the narrator and
	// controlled by the host. Multiplayer only.
	NarratorEntityID string `json:"narrator_entity_id,omitempty"`
}

func (r *CreateRequest) normalize() error {
	if r.Mode == "" {
		r.Mode = state.ModeClassic
	}
	if r.Difficulty == "" {
		r.Difficulty = state.DifficultyNormal
	}
	if !r.Mode.IsValid() {
		return fmt.Errorf("unknown game mode %q", r.Mode)
	}
	if !r.Difficulty.IsValid() {
		return fmt.Errorf("unknown difficulty %q", r.Difficulty)
	}
	r.CharacterName = strings.TrimSpace(r.CharacterName)
	if len(r.CharacterName) > MaxCharacterNameLength {
		return fmt.Errorf("character name exceeds %d characters", MaxCharacterNameLength)
	}

	multiplayer := r.Mode == state.ModeMultiplayer
	if !multiplayer && (len(r.Invitees) > 0 || r.NarratorEntityID != "") {
		return fmt.Errorf("only multiplayer sessions take invitees")
	}
	if multiplayer && r.CharacterName == "" {
		return fmt.Errorf("host character name is required for multiplayer")
	}
	for _, id := range r.Invitees {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("invitee id cannot be empty")
		}
	}
	return nil
}

// CreateSession stores a new session hosted by hostID. Multiplayer sessions
// start forming; single-party sessions start active with the host as the only
// actor.
func (o *Orchestrator) CreateSession(ctx context.Context, hostID string, req CreateRequest) (*state.GameSession, error) {
	if hostID == "" {
		return nil, fmt.Errorf("%w: host id is required", ErrInvalidInput)
	}
	if err := req.normalize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	gs := state.NewGameSession(hostID, req.Mode, req.Difficulty)
	gs.CustomPrompt = req.CustomPrompt
	gs.LegendName = req.LegendName
	gs.Title = strings.TrimSpace(req.Title)
	gs.Participants[0].CharacterName = req.CharacterName

	if gs.IsMultiplayer() {
		for _, id := range req.Invitees {
			if _, exists := gs.Participant(id); exists {
				continue
			}
			gs.Participants = append(gs.Participants, state.Participant{UserID: id, Role: state.RoleParticipant})
		}
		if id := req.NarratorEntityID; id != "" {
			if _, exists := gs.Participant(id); exists {
				return nil, fmt.Errorf("%w: narrator entity id %q is already on the roster", ErrInvalidInput, id)
			}
			gs.Participants = append(gs.Participants, state.Participant{
				UserID:       id,
				Role:         state.RoleNarratorEntity,
				ControllerID: hostID,
				JoinedAt:     gs.CreatedAt,
			})
		}
	} else {
		gs.Status = state.StatusActive
		gs.CurrentActorID = hostID
	}

	if err := o.store.Create(ctx, gs); err != nil {
		return nil, storageError(err)
	}
	o.logger.Info("Session created",
		"session_id", gs.ID,
		"host_id", hostID,
		"game_mode", gs.Mode,
		"participants", len(gs.Participants),
	)
	return gs, nil
}

// GetSession returns the snapshot if userID is a member.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID uuid.UUID, userID string) (*state.GameSession, error) {
	return o.load(ctx, sessionID, userID)
}

// JoinSession sets an invited participant's character name. It can happen
// once per participant and only while the session is forming.
func (o *Orchestrator) JoinSession(ctx context.Context, sessionID uuid.UUID, userID, characterName string) (*state.GameSession, error) {
	characterName = strings.TrimSpace(characterName)
	if characterName == "" {
		return nil, fmt.Errorf("%w: character name is required", ErrInvalidInput)
	}
	if len(characterName) > MaxCharacterNameLength {
		return nil, fmt.Errorf("%w: character name exceeds %d characters", ErrInvalidInput, MaxCharacterNameLength)
	}

	gs, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return nil, storageError(err)
	}
	p, ok := gs.Participant(userID)
	if !ok {
		return nil, fmt.Errorf("%w: %s was not invited", ErrNotFound, userID)
	}
	if gs.Status != state.StatusForming {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, gs.Status)
	}
	if p.IsNarratorEntity() || p.HasJoined() {
		return nil, fmt.Errorf("%w: %s has already joined", ErrInvalidState, userID)
	}

	p.CharacterName = characterName
	p.JoinedAt = time.Now().UTC()

	if err := o.persist(ctx, gs); err != nil {
		return nil, err
	}
	o.logger.Info("Participant joined", "session_id", sessionID, "user_id", userID)
	o.notifyUpdated(ctx, gs)
	return gs, nil
}

// StartSession fixes the turn order and activates a forming session.
func (o *Orchestrator) StartSession(ctx context.Context, sessionID uuid.UUID, userID string) (*state.GameSession, error) {
	gs, err := o.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := turn.Start(gs, userID); err != nil {
		return nil, turnError(err)
	}
	if err := o.persist(ctx, gs); err != nil {
		return nil, err
	}

	o.logger.Info("Session started", "session_id", sessionID, "turn_order", gs.TurnOrder)
	if o.publisher != nil {
		if err := o.publisher.PublishSessionStarted(ctx, sessionID, slices.Clone(gs.TurnOrder)); err != nil {
			o.logger.Warn("Failed to publish session start", "session_id", sessionID, "error", err)
		}
	}
	return gs, nil
}

// FinishSession ends a session. No further actions are accepted.
func (o *Orchestrator) FinishSession(ctx context.Context, sessionID uuid.UUID, userID string) (*state.GameSession, error) {
	gs, err := o.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := turn.Finish(gs, userID); err != nil {
		return nil, turnError(err)
	}
	if err := o.persist(ctx, gs); err != nil {
		return nil, err
	}
	o.logger.Info("Session finished", "session_id", sessionID)
	o.notifyUpdated(ctx, gs)
	return gs, nil
}

// DeleteSession removes a session and its side data. Host only.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID uuid.UUID, userID string) error {
	gs, err := o.load(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if gs.HostID != userID {
		return fmt.Errorf("%w: only the host may delete the session", ErrForbidden)
	}
	if err := o.store.Delete(ctx, sessionID); err != nil {
		return storageError(err)
	}

	if o.presence != nil {
		if err := o.presence.Clear(ctx, sessionID); err != nil {
			o.logger.Warn("Failed to clear presence", "session_id", sessionID, "error", err)
		}
	}
	if o.ooc != nil {
		if err := o.ooc.Clear(ctx, sessionID); err != nil {
			o.logger.Warn("Failed to clear ooc messages", "session_id", sessionID, "error", err)
		}
	}
	o.logger.Info("Session deleted", "session_id", sessionID)
	return nil
}

// Legends returns the catalogue used by legends mode.
func (o *Orchestrator) Legends() []prompts.LegendCategory {
	return prompts.Legends()
}
