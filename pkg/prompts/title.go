package prompts

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultTitle names a session whose title could not be generated.
const DefaultTitle = "Untitled Adventure"

// MaxTitleWords caps a generated title.
const MaxTitleWords = 4

var titleCaser = cases.Title(language.English)

// CleanTitle normalizes a narrator-suggested title: quotes and trailing
// punctuation are removed, the title is cut to MaxTitleWords words and title
// cased. An empty result yields DefaultTitle.
func CleanTitle(raw string) string {
	// Some models answer on several lines; only the first is the title.
	line, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")

	line = strings.Map(func(r rune) rune {
		switch r {
		case '"', '“', '”', '`', '*', '#':
			return -1
		}
		return r
	}, line)
	line = strings.Trim(strings.TrimSpace(line), "'‘’")
	line = strings.TrimRight(strings.TrimSpace(line), ".!?:;,")

	words := strings.Fields(line)
	if len(words) == 0 {
		return DefaultTitle
	}
	if len(words) > MaxTitleWords {
		words = words[:MaxTitleWords]
	}
	return titleCaser.String(strings.Join(words, " "))
}
