// Package tone implements tone-mode text transformation for polished
// transcripts.
//
// A tone mode is a named style profile. Every transformation first runs the
// shared normalisation pass (slang and filler cleanup to a neutral baseline)
// and then the mode's own ordered pattern→replacement rule list: contraction
// expansion for formal text, contraction and greeting insertion for casual,
// softening for polite requests, hedge removal for concise, and warmth
// markers for friendly. Question-mark insertion runs last, guarded by the
// false-positive patterns that plague dictation ("what I'm trying to say" is
// not a question).
//
// All rules are deterministic regular-expression rewrites; no model calls.
// The [Transformer] also applies learned word-substitution rules supplied by
// the learning cache for the active mode before its own rule list, so user
// corrections take precedence over the built-in tables.
package tone

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode is a named tone/style profile. The zero value is not valid; use
// [ModeNeutral] as the default.
type Mode string

const (
	ModeNeutral  Mode = "neutral"
	ModeFormal   Mode = "formal"
	ModeCasual   Mode = "casual"
	ModeSoft     Mode = "soft"
	ModeConcise  Mode = "concise"
	ModeFriendly Mode = "friendly"
)

// Modes lists every recognised tone mode.
var Modes = []Mode{ModeNeutral, ModeFormal, ModeCasual, ModeSoft, ModeConcise, ModeFriendly}

// IsValid reports whether m is a recognised tone mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeNeutral, ModeFormal, ModeCasual, ModeSoft, ModeConcise, ModeFriendly:
		return true
	}
	return false
}

// ParseMode converts s to a [Mode], defaulting to neutral for the empty
// string. Unknown values return an error.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeNeutral, nil
	}
	m := Mode(strings.ToLower(s))
	if !m.IsValid() {
		return "", fmt.Errorf("tone: unknown mode %q", s)
	}
	return m, nil
}

// rule is a single ordered pattern→replacement rewrite.
type rule struct {
	pattern *regexp.Regexp
	replace string
}

func mustRule(pattern, replace string) rule {
	return rule{pattern: regexp.MustCompile(pattern), replace: replace}
}

// normalizeRules is the shared baseline applied before any mode-specific
// rules: slang to neutral vocabulary.
var normalizeRules = []rule{
	mustRule(`(?i)\bhey\b`, "hello"),
	mustRule(`(?i)\bhi\b`, "hello"),
	mustRule(`(?i)\byo\b`, "hello"),
	mustRule(`(?i)\bdude\b`, ""),
	mustRule(`(?i)\bguys\b`, "everyone"),
	mustRule(`(?i)\bwanna\b`, "want to"),
	mustRule(`(?i)\bgonna\b`, "going to"),
	mustRule(`(?i)\bgotta\b`, "have to"),
	mustRule(`(?i)\bkinda\b`, "kind of"),
	mustRule(`(?i)\bsorta\b`, "sort of"),
	mustRule(`(?i)\byeah\b`, "yes"),
	mustRule(`(?i)\byep\b`, "yes"),
	mustRule(`(?i)\bnope\b`, "no"),
	mustRule(`(?i)\bok\b`, "okay"),
	mustRule(`(?i)\bsuper\b`, "very"),
	mustRule(`(?i)\btotally\b`, "completely"),
	mustRule(`(?i)\bbasically\b`, "essentially"),
}

// formalRules expand contractions and elevate casual verbs.
var formalRules = []rule{
	mustRule(`(?i)\bI'm\b`, "I am"),
	mustRule(`(?i)\byou're\b`, "you are"),
	mustRule(`(?i)\bhe's\b`, "he is"),
	mustRule(`(?i)\bshe's\b`, "she is"),
	mustRule(`(?i)\bit's\b`, "it is"),
	mustRule(`(?i)\bwe're\b`, "we are"),
	mustRule(`(?i)\bthey're\b`, "they are"),
	mustRule(`(?i)\bcan't\b`, "cannot"),
	mustRule(`(?i)\bwon't\b`, "will not"),
	mustRule(`(?i)\bdon't\b`, "do not"),
	mustRule(`(?i)\bdoesn't\b`, "does not"),
	mustRule(`(?i)\bdidn't\b`, "did not"),
	mustRule(`(?i)^I (want|need)\b`, "I would like"),
	mustRule(`(?i)\bget\b`, "obtain"),
	mustRule(`(?i)\bshow\b`, "demonstrate"),
	mustRule(`(?i)\bhelp\b`, "assist"),
	mustRule(`(?i)\bask\b`, "inquire"),
}

// casualRules contract and loosen the neutral baseline.
var casualRules = []rule{
	mustRule(`(?i)\bI am\b`, "I'm"),
	mustRule(`(?i)\byou are\b`, "you're"),
	mustRule(`(?i)\bhe is\b`, "he's"),
	mustRule(`(?i)\bshe is\b`, "she's"),
	mustRule(`(?i)\bit is\b`, "it's"),
	mustRule(`(?i)\bwe are\b`, "we're"),
	mustRule(`(?i)\bthey are\b`, "they're"),
	mustRule(`(?i)\bcannot\b`, "can't"),
	mustRule(`(?i)\bwill not\b`, "won't"),
	mustRule(`(?i)\bdo not\b`, "don't"),
	mustRule(`(?i)\bwant to\b`, "wanna"),
	mustRule(`(?i)\bgoing to\b`, "gonna"),
	mustRule(`(?i)\bhave to\b`, "gotta"),
}

// softRules add politeness markers.
var softRules = []rule{
	mustRule(`(?i)^I (want|need|would like)\b`, "If possible, I $1"),
	mustRule(`(?i)\b(can|could|would) you\b`, "$1 you please"),
	mustRule(`(?i)\bneed\b`, "would appreciate"),
	mustRule(`(?i)\bwant\b`, "would like"),
}

// conciseRemovals are hedges and fillers stripped in concise mode.
var conciseRemovals = []rule{
	mustRule(`(?i)\bif possible,?\s*`, ""),
	mustRule(`(?i)\bperhaps\b`, ""),
	mustRule(`(?i)\bpossibly\b`, ""),
	mustRule(`(?i)\bmaybe\b`, ""),
	mustRule(`(?i)\bI think\b`, ""),
	mustRule(`(?i)\bI believe\b`, ""),
	mustRule(`(?i)\bin my opinion,?\s*`, ""),
	mustRule(`(?i)\bit seems\b`, ""),
	mustRule(`(?i)\bkind of\b`, ""),
	mustRule(`(?i)\bsort of\b`, ""),
	mustRule(`(?i)\bessentially\b`, ""),
	mustRule(`(?i)\bactually\b`, ""),
	mustRule(`(?i)\bliterally\b`, ""),
	mustRule(`(?i)\bhonestly\b`, ""),
	mustRule(`(?i)\bI would like to\s+`, "I "),
	mustRule(`(?i)\bI want to\s+`, "I "),
}

// friendlyRules add warmth to the neutral baseline.
var friendlyRules = []rule{
	mustRule(`(?i)\bokay\b`, "great"),
	mustRule(`(?i)\byes\b`, "absolutely"),
	mustRule(`\bI am\b`, "I'm"),
	mustRule(`\bI will\b`, "I'll"),
}

var (
	casualGreeting   = regexp.MustCompile(`(?i)^(hey|hello|hi|yo)\b`)
	friendlyGreeting = regexp.MustCompile(`(?i)^(hey|hello|hi)\b`)
	requestVerb      = regexp.MustCompile(`(?i)\b(would like|would appreciate)\b`)
	multiSpace       = regexp.MustCompile(`\s{2,}`)
	spaceBeforePunct = regexp.MustCompile(`\s+([,.!?;:])`)
)

// applyRules runs an ordered rule list over text.
func applyRules(text string, rules []rule) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, r.replace)
	}
	return text
}

// tidy collapses whitespace damage left behind by removals.
func tidy(text string) string {
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
