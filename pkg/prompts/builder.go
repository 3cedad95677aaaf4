package prompts

import (
	"fmt"
	"slices"

	"github.com/jwebster45206/taleparty/pkg/chat"
	"github.com/jwebster45206/taleparty/pkg/state"
)

// DefaultHistoryLimit is the number of recent messages sent to the narrator.
const DefaultHistoryLimit = 40

// BeginMessage is injected when the narrator would otherwise see no
// participant message first.
const BeginMessage = "Begin the game."

// Prompt is the input to one narrator completion.
type Prompt struct {
	Instruction string
	History     []chat.Message
}

// Builder constructs narrator prompts using a fluent interface.
type Builder struct {
	gs           *state.GameSession
	action       *chat.Message
	historyLimit int
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyLimit: DefaultHistoryLimit,
	}
}

// WithSession sets the session snapshot the prompt is built from.
func (b *Builder) WithSession(gs *state.GameSession) *Builder {
	b.gs = gs
	return b
}

// WithAction sets a participant message that follows the stored history.
func (b *Builder) WithAction(msg chat.Message) *Builder {
	b.action = &msg
	return b
}

// WithHistoryLimit sets the history window size. Zero or less sends everything.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// Build returns the instruction and the windowed history.
func (b *Builder) Build() (*Prompt, error) {
	if b.gs == nil {
		return nil, fmt.Errorf("session is required")
	}

	history := b.gs.History
	if b.action != nil {
		history = append(slices.Clone(history), *b.action)
	}

	return &Prompt{
		Instruction: BuildInstruction(InputFromSession(b.gs)),
		History:     BuildHistory(history, b.historyLimit),
	}, nil
}

// BuildHistory windows history to the most recent limit messages and makes
// sure the result opens with a participant message. The input is not
// modified.
func BuildHistory(history []chat.Message, limit int) []chat.Message {
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]chat.Message, 0, len(history)+1)
	if len(history) == 0 || history[0].IsNarrator() {
		out = append(out, chat.Message{Role: chat.RoleParticipant, Content: BeginMessage})
	}
	return append(out, history...)
}

// BuildTitleInput returns the instruction and history used to title a session
// from its opening narration.
func BuildTitleInput(opening string) *Prompt {
	return &Prompt{
		Instruction: TitlePrompt,
		History: []chat.Message{
			{Role: chat.RoleParticipant, Content: opening},
		},
	}
}
