package state

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// NPC is a non-player character the narrator has introduced.
type NPC struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	State       string `json:"state"`
}

// NPCRegistry holds at most one entry per name, in introduction order.
type NPCRegistry []NPC

// Index returns the position of the NPC called name, or -1.
func (r NPCRegistry) Index(name string) int {
	return slices.IndexFunc(r, func(n NPC) bool { return n.Name == name })
}

// Get returns the NPC called name.
func (r NPCRegistry) Get(name string) (NPC, bool) {
	if i := r.Index(name); i >= 0 {
		return r[i], true
	}
	return NPC{}, false
}

func (r NPCRegistry) Clone() NPCRegistry {
	if r == nil {
		return make(NPCRegistry, 0)
	}
	return slices.Clone(r)
}

// UnmarshalJSON accepts the canonical array form and the legacy object form
// keyed by NPC name. Legacy objects are ordered by name.
func (r *NPCRegistry) UnmarshalJSON(data []byte) error {
	var asArray []NPC
	if err := json.Unmarshal(data, &asArray); err == nil {
		*r = dedupeNPCs(asArray)
		return nil
	}

	var asMap map[string]NPC
	if err := json.Unmarshal(data, &asMap); err == nil {
		names := make([]string, 0, len(asMap))
		for name := range asMap {
			names = append(names, name)
		}
		sort.Strings(names)
		result := make(NPCRegistry, 0, len(names))
		for _, name := range names {
			npc := asMap[name]
			if npc.Name == "" {
				npc.Name = name
			}
			result = append(result, npc)
		}
		*r = dedupeNPCs(result)
		return nil
	}
	return fmt.Errorf("npcs: not an array or map: %s", string(data))
}

// dedupeNPCs keeps the first position of each name and the last values.
func dedupeNPCs(in []NPC) NPCRegistry {
	out := make(NPCRegistry, 0, len(in))
	for _, npc := range in {
		if i := out.Index(npc.Name); i >= 0 {
			out[i] = npc
			continue
		}
		out = append(out, npc)
	}
	return out
}
