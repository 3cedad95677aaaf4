package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/taleparty/pkg/state"
)

// PromptState is the part of a session the narrator is shown.
type PromptState struct {
	Inventory    []string
	NPCs         []state.NPC
	Participants []state.Participant
}

func ToPromptState(gs *state.GameSession) *PromptState {
	return &PromptState{
		Inventory:    gs.Inventory,
		NPCs:         gs.NPCs,
		Participants: gs.Participants,
	}
}

// ToString renders the state as plain lists. Empty collections are written
// out explicitly.
//
// Example output:
// PARTY:
// - Aria
// - Brom
// - the narrator's own character, played by the narrator
//
// KNOWN CHARACTERS:
// - Old Guard (suspicious): A tired sentry
//
// PARTY INVENTORY:
// - RUSTY KEY
func (ps *PromptState) ToString() string {
	var sb strings.Builder

	sb.WriteString("PARTY:\n")
	party := make([]string, 0, len(ps.Participants))
	for _, p := range ps.Participants {
		switch {
		case p.IsNarratorEntity():
			party = append(party, "the narrator's own character, played by the narrator")
		case p.CharacterName != "":
			party = append(party, p.CharacterName)
		}
	}
	writeList(&sb, party)

	sb.WriteString("\nKNOWN CHARACTERS:\n")
	npcs := make([]string, 0, len(ps.NPCs))
	for _, npc := range ps.NPCs {
		if npc.Name == "" {
			continue
		}
		line := npc.Name
		if npc.State != "" {
			line += fmt.Sprintf(" (%s)", npc.State)
		}
		if npc.Description != "" {
			line += ": " + npc.Description
		}
		npcs = append(npcs, line)
	}
	writeList(&sb, npcs)

	sb.WriteString("\nPARTY INVENTORY:\n")
	items := make([]string, 0, len(ps.Inventory))
	for _, item := range ps.Inventory {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	writeList(&sb, items)

	return sb.String()
}

func writeList(sb *strings.Builder, lines []string) {
	if len(lines) == 0 {
		sb.WriteString(NothingYet + "\n")
		return
	}
	for _, line := range lines {
		sb.WriteString("- " + line + "\n")
	}
}
