// Package tags extracts the bracketed side-effect markers a narrator embeds in
// its prose:
//
//	[ITEM_ACQUIRED:RUSTY_KEY]
//	[CHARACTER_UPDATE:{"name": "Old_Guard", "description": "...", "state": "..."}]
//
// The grammar is lenient. Malformed markers are removed from the prose and
// dropped without failing the response.
package tags

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

const (
	itemPrefix      = "ITEM_ACQUIRED:"
	characterPrefix = "CHARACTER_UPDATE:"
)

var (
	itemPattern = regexp.MustCompile(`\[ITEM_ACQUIRED:([^\]]+)\]`)

	// Non-greedy and stops at the first ']', so a ']' inside the JSON payload
	// truncates the match and the tag is dropped as malformed.
	characterPattern = regexp.MustCompile(`\[CHARACTER_UPDATE:(\{.*?)\]`)
)

// Event is a side effect extracted from narrator text.
type Event interface {
	event()
}

// ItemAcquired records an item entering the party inventory.
type ItemAcquired struct {
	Name string
}

// CharacterUpdate introduces or replaces an NPC registry entry.
type CharacterUpdate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	State       string `json:"state"`
}

func (ItemAcquired) event()    {}
func (CharacterUpdate) event() {}

// Parser extracts events from narrator text.
type Parser struct {
	logger *slog.Logger
}

// NewParser returns a parser that logs dropped tags to logger.
// A nil logger uses slog.Default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

var defaultParser = NewParser(nil)

// Parse extracts events with the default parser.
func Parse(text string) (string, []Event) {
	return defaultParser.Parse(text)
}

// Parse returns the cleaned prose and the events in tag order: all item tags
// first, then all character tags.
func (p *Parser) Parse(text string) (string, []Event) {
	events := make([]Event, 0)

	for _, match := range itemPattern.FindAllStringSubmatch(text, -1) {
		events = append(events, ItemAcquired{Name: DisplayName(match[1])})
	}
	text = itemPattern.ReplaceAllString(text, "")

	for _, match := range characterPattern.FindAllStringSubmatch(text, -1) {
		update, err := decodeCharacter(match[1])
		if err != nil {
			p.logger.Warn("Dropping malformed character tag", "payload", match[1], "error", err)
			continue
		}
		events = append(events, update)
	}
	text = characterPattern.ReplaceAllString(text, "")

	// Only the ends are trimmed. Spacing around a removed mid-sentence tag is
	// kept as is so stored narration matches earlier sessions byte for byte.
	return strings.TrimSpace(text), events
}

func decodeCharacter(payload string) (CharacterUpdate, error) {
	var update CharacterUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		return CharacterUpdate{}, fmt.Errorf("invalid character json: %w", err)
	}
	if update.Name == "" || update.Description == "" || update.State == "" {
		return CharacterUpdate{}, fmt.Errorf("character update requires name, description and state")
	}
	update.Name = DisplayName(update.Name)
	return update, nil
}

// DisplayName converts a wire token such as RUSTY_KEY into its display form.
func DisplayName(token string) string {
	return strings.ReplaceAll(token, "_", " ")
}

// WireToken converts a display name into the underscore form used inside tags.
func WireToken(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// FormatItem renders an item tag in wire format.
func FormatItem(name string) string {
	return "[" + itemPrefix + WireToken(name) + "]"
}

// FormatCharacter renders a character tag in wire format.
func FormatCharacter(name, description, state string) string {
	payload, _ := json.Marshal(map[string]string{
		"name":        WireToken(name),
		"description": description,
		"state":       state,
	})
	return "[" + characterPrefix + string(payload) + "]"
}
