package runner

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/taleparty/pkg/state"
)

// TestSuite defines a complete integration scenario: a party, the way it is
// assembled, and the turns it plays.
type TestSuite struct {
	Name       string           `json:"name"`
	Mode       state.GameMode   `json:"game_mode,omitempty"`
	Difficulty state.Difficulty `json:"difficulty,omitempty"`
	Host       Player           `json:"host"`
	Guests     []Player         `json:"guests,omitempty"`
	Begin      bool             `json:"begin,omitempty"` // Request the opening narration first
	Steps      []TestStep       `json:"steps"`
}

// Player is one user at the table.
type Player struct {
	UserID        string `json:"user_id"`
	CharacterName string `json:"character_name,omitempty"`
}

// TestStep is one submitted action and what must hold afterwards.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	UserID       string       `json:"user_id"`
	ActorID      string       `json:"actor_id,omitempty"`
	Message      string       `json:"message"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a step executes
type Expectations struct {
	// Status defaults to 200.
	Status    int    `json:"status,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`

	NextActorID      *string  `json:"next_actor_id,omitempty"`
	InventoryHas     []string `json:"inventory_has,omitempty"`
	NPCNames         []string `json:"npc_names,omitempty"`
	HistoryLength    *int     `json:"history_length,omitempty"`
	ResponseContains []string `json:"response_contains,omitempty"`
	ResponseRegex    string   `json:"response_regex,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName     string
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Suite     TestSuite
	Results   []TestResult
	Error     error
	Duration  time.Duration
	SessionID uuid.UUID
}

// Passed reports whether every step succeeded.
func (r TestRunResult) Passed() bool {
	if r.Error != nil {
		return false
	}
	for _, res := range r.Results {
		if !res.Success {
			return false
		}
	}
	return true
}
