package polish

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/clarivox/clarivox/internal/polish/tone"
)

// sentenceSplit finds sentence boundaries: terminal punctuation followed by
// whitespace and a letter.
var sentenceSplit = regexp.MustCompile(`([.!?])\s+`)

// afterTerminal capitalises the first letter after a sentence boundary.
var afterTerminal = regexp.MustCompile(`([.!?]\s+)([a-z])`)

// AutoFormat enforces leading capitalisation and terminal punctuation on
// each sentence: the first letter is upper-cased and a period is appended
// when no terminal punctuation is present. It is the last correction stage.
type AutoFormat struct{}

// Compile-time interface check.
var _ Stage = (*AutoFormat)(nil)

// NewAutoFormat creates an [AutoFormat] stage.
func NewAutoFormat() *AutoFormat {
	return &AutoFormat{}
}

// Name implements [Stage].
func (f *AutoFormat) Name() string { return "format" }

// Apply implements [Stage]. Paragraph markers are preserved: each paragraph
// is formatted independently so a paragraph never ends mid-sentence without
// punctuation.
func (f *AutoFormat) Apply(_ context.Context, text string, _ tone.Mode) (string, error) {
	paragraphs := strings.Split(text, "\n\n")
	for i, p := range paragraphs {
		paragraphs[i] = formatParagraph(p)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func formatParagraph(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}

	if !strings.ContainsAny(string(text[len(text)-1]), ".!?") {
		text += "."
	}

	text = capitalizeFirst(text)
	text = afterTerminal.ReplaceAllStringFunc(text, strings.ToUpper)
	return text
}

// capitalizeFirst upper-cases the first letter of s, leaving the rest alone.
func capitalizeFirst(s string) string {
	for i, r := range s {
		if unicode.IsLetter(r) {
			if unicode.IsUpper(r) {
				return s
			}
			return s[:i] + string(unicode.ToUpper(r)) + s[i+len(string(r)):]
		}
		// Only leading quotes and brackets may precede the first letter.
		if !strings.ContainsRune(`"'([`, r) {
			return s
		}
	}
	return s
}

// SplitSentences splits formatted text into its sentences. Used by the
// orchestrator to re-interleave paragraph markers by sentence boundary.
func SplitSentences(text string) []string {
	marked := sentenceSplit.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
