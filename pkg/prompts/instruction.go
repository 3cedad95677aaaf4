package prompts

import (
	"strings"

	"github.com/jwebster45206/taleparty/pkg/state"
)

// InstructionInput is everything the narrator instruction depends on.
type InstructionInput struct {
	Mode         state.GameMode
	Difficulty   state.Difficulty
	Inventory    []string
	NPCs         []state.NPC
	Participants []state.Participant
	CustomPrompt string
	LegendName   string
}

// InputFromSession collects the instruction input from a session snapshot.
func InputFromSession(gs *state.GameSession) InstructionInput {
	return InstructionInput{
		Mode:         gs.Mode,
		Difficulty:   gs.Difficulty,
		Inventory:    gs.Inventory,
		NPCs:         gs.NPCs,
		Participants: gs.Participants,
		CustomPrompt: gs.CustomPrompt,
		LegendName:   gs.LegendName,
	}
}

// BuildInstruction assembles the narrator's system instruction. The result is
// deterministic for a given input.
func BuildInstruction(in InstructionInput) string {
	var sb strings.Builder

	sb.WriteString(BaseSystemPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(GetModePrompt(in.Mode, in.CustomPrompt, in.LegendName))
	sb.WriteString("\n\nDifficulty: ")
	sb.WriteString(GetDifficultyPrompt(in.Difficulty))

	for _, rule := range []string{NarratorPersistenceRule, ItemTagRule, CharacterTagRule, WorldConsistencyRule} {
		sb.WriteString("\n\n")
		sb.WriteString(rule)
	}

	ps := PromptState{
		Inventory:    in.Inventory,
		NPCs:         in.NPCs,
		Participants: in.Participants,
	}
	sb.WriteString("\n\n### Current state\n")
	sb.WriteString(ps.ToString())

	sb.WriteString("\n")
	sb.WriteString(UserPostPrompt)
	return sb.String()
}
