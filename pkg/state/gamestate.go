package state

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/taleparty/pkg/chat"
)

// Status is the lifecycle stage of a session.
type Status string

const (
	StatusForming  Status = "forming"  // Participants may still join
	StatusActive   Status = "active"   // Turn rotation in effect
	StatusFinished Status = "finished" // Terminal
)

// GameMode selects the framing the narrator is given.
type GameMode string

const (
	ModeClassic      GameMode = "classic"
	ModeDetective    GameMode = "detective"
	ModePrisonEscape GameMode = "prison_escape"
	ModeCustom       GameMode = "custom"
	ModeLegends      GameMode = "legends"
	ModeMultiplayer  GameMode = "multiplayer"
)

// Difficulty selects the narrator's hinting tone.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// ParticipantRole distinguishes human players from the entity the narrator voices.
type ParticipantRole string

const (
	RoleParticipant    ParticipantRole = "participant"
	RoleNarratorEntity ParticipantRole = "narrator_entity"
)

// Participant is a member of a session roster.
type Participant struct {
	UserID        string          `json:"user_id"`
	CharacterName string          `json:"character_name,omitempty"` // Set exactly once, at join
	Role          ParticipantRole `json:"role"`
	ControllerID  string          `json:"controller_id,omitempty"` // Narrator entities only
	JoinedAt      time.Time       `json:"joined_at,omitzero"`
}

// IsNarratorEntity reports whether the participant is voiced by the narrator.
func (p Participant) IsNarratorEntity() bool {
	return p.Role == RoleNarratorEntity
}

// HasJoined reports whether the participant has chosen a character name.
// Narrator entities are always considered joined.
func (p Participant) HasJoined() bool {
	return p.IsNarratorEntity() || p.CharacterName != ""
}

// GameSession is the persisted snapshot of one session.
type GameSession struct {
	ID             uuid.UUID      `json:"id"`
	Version        int64          `json:"version"`
	HostID         string         `json:"host_id"`
	Title          string         `json:"title,omitempty"`
	Mode           GameMode       `json:"game_mode"`
	Difficulty     Difficulty     `json:"difficulty"`
	CustomPrompt   string         `json:"custom_prompt,omitempty"`
	LegendName     string         `json:"legend_name,omitempty"`
	Status         Status         `json:"status"`
	Participants   []Participant  `json:"participants"`
	TurnOrder      []string       `json:"turn_order,omitempty"`
	CurrentActorID string         `json:"current_actor_id,omitempty"`
	Inventory      Inventory      `json:"inventory"`
	NPCs           NPCRegistry    `json:"npcs"`
	History        []chat.Message `json:"history"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewGameSession returns an empty session owned by hostID. The host is the
// first roster entry.
func NewGameSession(hostID string, mode GameMode, difficulty Difficulty) *GameSession {
	now := time.Now().UTC()
	return &GameSession{
		ID:         uuid.New(),
		HostID:     hostID,
		Mode:       mode,
		Difficulty: difficulty,
		Status:     StatusForming,
		Participants: []Participant{
			{UserID: hostID, Role: RoleParticipant, JoinedAt: now},
		},
		Inventory: make(Inventory, 0),
		NPCs:      make(NPCRegistry, 0),
		History:   make([]chat.Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsMultiplayer reports whether turn rotation applies to the session.
func (gs *GameSession) IsMultiplayer() bool {
	return gs.Mode == ModeMultiplayer
}

// Participant returns the roster entry for id.
func (gs *GameSession) Participant(id string) (*Participant, bool) {
	i := slices.IndexFunc(gs.Participants, func(p Participant) bool { return p.UserID == id })
	if i < 0 {
		return nil, false
	}
	return &gs.Participants[i], true
}

// IsMember reports whether userID may see the session: the host, any roster
// entry, or the controller of a narrator entity.
func (gs *GameSession) IsMember(userID string) bool {
	if userID == "" {
		return false
	}
	if gs.HostID == userID {
		return true
	}
	return slices.ContainsFunc(gs.Participants, func(p Participant) bool {
		return p.UserID == userID || (p.IsNarratorEntity() && p.ControllerID == userID)
	})
}

// CanActAs reports whether userID may submit an action on behalf of actorID.
func (gs *GameSession) CanActAs(userID, actorID string) bool {
	if userID == actorID {
		return true
	}
	p, ok := gs.Participant(actorID)
	return ok && p.IsNarratorEntity() && p.ControllerID == userID
}

// DisplayName returns the name players know a participant by.
func (gs *GameSession) DisplayName(id string) string {
	p, ok := gs.Participant(id)
	switch {
	case !ok:
		return "an unknown adventurer"
	case p.IsNarratorEntity():
		return "the narrator"
	case p.CharacterName != "":
		return p.CharacterName
	default:
		return "an unnamed adventurer"
	}
}

// Clone returns a deep copy safe to mutate without affecting gs.
func (gs *GameSession) Clone() *GameSession {
	if gs == nil {
		return nil
	}
	c := *gs
	c.Participants = slices.Clone(gs.Participants)
	c.TurnOrder = slices.Clone(gs.TurnOrder)
	c.Inventory = gs.Inventory.Clone()
	c.NPCs = gs.NPCs.Clone()
	c.History = slices.Clone(gs.History)
	return &c
}

// IsValid reports whether m is a known game mode.
func (m GameMode) IsValid() bool {
	switch m {
	case ModeClassic, ModeDetective, ModePrisonEscape, ModeCustom, ModeLegends, ModeMultiplayer:
		return true
	}
	return false
}

// IsValid reports whether d is a known difficulty.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}
