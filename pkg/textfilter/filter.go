// Package textfilter softens deity dialogue for content-rated worlds.
// Directive parsing happens before this filter runs, so it only ever sees
// requester-visible prose.
package textfilter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// replacements maps flagged words to milder alternatives. Matching is
// case-insensitive on word boundaries; replacement preserves the case
// shape of the original.
var replacements = map[string]string{
	"damn":     "dang",
	"damned":   "danged",
	"goddamn":  "gosh-dang",
	"hell":     "the abyss",
	"bastard":  "wretch",
	"ass":      "fool",
	"asshole":  "fool",
	"bitch":    "cur",
	"shit":     "filth",
	"bullshit": "nonsense",
	"piss":     "spite",
	"crap":     "rot",
	"fuck":     "curse",
	"fucking":  "cursed",
}

// DialogueFilter rewrites flagged words in deity dialogue.
type DialogueFilter struct {
	pattern *regexp.Regexp
}

// NewDialogueFilter compiles the combined word pattern once.
func NewDialogueFilter() *DialogueFilter {
	words := make([]string, 0, len(replacements))
	for w := range replacements {
		words = append(words, regexp.QuoteMeta(w))
	}
	return &DialogueFilter{
		pattern: regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`),
	}
}

// Filter replaces every flagged word, preserving the case of the match.
func (f *DialogueFilter) Filter(text string) string {
	return f.pattern.ReplaceAllStringFunc(text, func(match string) string {
		repl, ok := replacements[strings.ToLower(match)]
		if !ok {
			return match
		}
		return matchCase(match, repl)
	})
}

// Flagged reports whether the text contains any flagged word.
func (f *DialogueFilter) Flagged(text string) bool {
	return f.pattern.MatchString(text)
}

// AppliesTo reports whether a deity's content rating calls for filtering.
// Unrated deities are not filtered.
func AppliesTo(rating string) bool {
	switch strings.ToUpper(strings.TrimSpace(rating)) {
	case "G", "PG", "PG13", "PG-13":
		return true
	default:
		return false
	}
}

// matchCase applies the case shape of the original word to the
// replacement: all-upper, all-lower, or title case.
func matchCase(original, replacement string) string {
	switch {
	case original == strings.ToUpper(original):
		return strings.ToUpper(replacement)
	case original == strings.ToLower(original):
		return replacement
	}
	if r := []rune(original); unicode.IsUpper(r[0]) {
		return cases.Title(language.English).String(replacement)
	}
	return replacement
}
