package state

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Inventory is the party's shared set of item names. Names are compared after
// trimming and NFC normalization; comparison is otherwise case-sensitive.
type Inventory []string

// NormalizeItemName returns the form used to compare and store item names.
func NormalizeItemName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Contains reports whether an item with the same normalized name is held.
func (inv Inventory) Contains(name string) bool {
	key := NormalizeItemName(name)
	return slices.ContainsFunc(inv, func(item string) bool {
		return NormalizeItemName(item) == key
	})
}

func (inv Inventory) Clone() Inventory {
	if inv == nil {
		return make(Inventory, 0)
	}
	return slices.Clone(inv)
}
