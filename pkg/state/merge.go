package state

import (
	"github.com/jwebster45206/taleparty/pkg/tags"
)

// Merge folds parsed narrator events into copies of the inventory and NPC
// registry. Events apply in order. Items are never duplicated; a character
// update replaces an existing NPC in place or appends a new one. The inputs
// are never modified.
func Merge(inv Inventory, npcs NPCRegistry, events []tags.Event) (Inventory, NPCRegistry) {
	newInv := inv.Clone()
	newNPCs := npcs.Clone()

	for _, ev := range events {
		switch e := ev.(type) {
		case tags.ItemAcquired:
			newInv = acquireItem(newInv, e.Name)
		case tags.CharacterUpdate:
			newNPCs = updateNPC(newNPCs, NPC{
				Name:        e.Name,
				Description: e.Description,
				State:       e.State,
			})
		}
	}
	return newInv, newNPCs
}

func acquireItem(inv Inventory, name string) Inventory {
	name = NormalizeItemName(name)
	if name == "" || inv.Contains(name) {
		return inv
	}
	return append(inv, name)
}

func updateNPC(npcs NPCRegistry, npc NPC) NPCRegistry {
	if i := npcs.Index(npc.Name); i >= 0 {
		npcs[i] = npc
		return npcs
	}
	return append(npcs, npc)
}
