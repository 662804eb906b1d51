package feedback

import (
	"regexp"
	"strings"

	"github.com/clarivox/clarivox/internal/polish/grammar"
	"github.com/clarivox/clarivox/internal/polish/tone"
)

// fallbackTables are small per-tone rewrite tables used when the suggestion
// model is unavailable. They cover the complaints users raise most often
// about each tone.
var fallbackTables = map[tone.Mode][]struct {
	pattern *regexp.Regexp
	replace string
}{
	tone.ModeFormal: {
		{regexp.MustCompile(`(?i)\bgotta\b`), "must"},
		{regexp.MustCompile(`(?i)\bgonna\b`), "going to"},
		{regexp.MustCompile(`(?i)\bwanna\b`), "want to"},
		{regexp.MustCompile(`(?i)\bkinda\b`), "somewhat"},
		{regexp.MustCompile(`(?i)\byeah\b`), "yes"},
		{regexp.MustCompile(`(?i)\bokay\b`), "very well"},
	},
	tone.ModeCasual: {
		{regexp.MustCompile(`(?i)\btherefore\b`), "so"},
		{regexp.MustCompile(`(?i)\bhowever\b`), "but"},
		{regexp.MustCompile(`(?i)\bregarding\b`), "about"},
	},
	tone.ModeSoft: {
		{regexp.MustCompile(`(?i)\byou must\b`), "you might want to"},
		{regexp.MustCompile(`(?i)\byou should\b`), "you could"},
		{regexp.MustCompile(`(?i)\bdo it\b`), "consider doing it"},
	},
	tone.ModeConcise: {
		{regexp.MustCompile(`(?i)\bin order to\b`), "to"},
		{regexp.MustCompile(`(?i)\bat this point in time\b`), "now"},
		{regexp.MustCompile(`(?i)\bbasically\s+`), ""},
		{regexp.MustCompile(`(?i)\bactually\s+`), ""},
	},
	tone.ModeFriendly: {
		{regexp.MustCompile(`(?i)\bno\.\s*`), "I'm afraid not. "},
		{regexp.MustCompile(`(?i)\bsend me\b`), "could you send me"},
	},
}

// fallbackSuggestion applies the grammar rules plus the per-tone table. If
// nothing changes, the caller gets a manual-correction-required result
// instead of a suggestion identical to what the user just rejected.
func fallbackSuggestion(wrongOutput string, mode tone.Mode) *Suggestion {
	text := grammar.CorrectRules(wrongOutput)
	for _, r := range fallbackTables[mode] {
		text = r.pattern.ReplaceAllString(text, r.replace)
	}
	text = strings.Join(strings.Fields(text), " ")

	if strings.TrimSpace(text) == strings.TrimSpace(wrongOutput) {
		return &Suggestion{Source: SourceFallback, ManualRequired: true}
	}
	return &Suggestion{Text: text, Source: SourceFallback}
}
