package tone

import (
	"context"
	"regexp"
	"strings"
)

// LearnedRule is a word-level substitution mined from repeated user
// corrections, applied ahead of the built-in rule tables. Rules arrive
// already filtered to the active tone mode.
type LearnedRule struct {
	From string
	To   string
}

// RuleSource supplies the active learned rules for a tone mode. The learning
// cache implements this; a nil source disables learned-rule application.
type RuleSource interface {
	ActiveRules(mode Mode) []LearnedRule
}

// Transformer applies tone-mode transformation to transcript text.
// It is read-only after construction and safe for concurrent use.
type Transformer struct {
	rules RuleSource
}

// NewTransformer creates a [Transformer]. rules may be nil when no learning
// cache is attached.
func NewTransformer(rules RuleSource) *Transformer {
	return &Transformer{rules: rules}
}

// Name is the stable stage identifier used in results, logs, and metrics.
func (t *Transformer) Name() string { return "tone" }

// Apply transforms text under the given tone mode, satisfying the pipeline
// stage interface by delegating to [Transformer.Transform].
func (t *Transformer) Apply(_ context.Context, text string, mode Mode) (string, error) {
	return t.Transform(text, mode), nil
}

// Transform rewrites text for the given tone mode. The sequence is:
// learned rules for the mode, shared normalisation, the mode's own rule
// list, greeting handling, then question-mark insertion.
func (t *Transformer) Transform(text string, mode Mode) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	if t.rules != nil {
		text = ApplyLearnedRules(text, t.rules.ActiveRules(mode))
	}

	text = applyRules(text, normalizeRules)

	switch mode {
	case ModeFormal:
		text = applyRules(text, formalRules)
	case ModeCasual:
		text = applyRules(text, casualRules)
		if !casualGreeting.MatchString(strings.TrimSpace(text)) {
			text = "Hey, " + lowerFirst(strings.TrimSpace(text))
		}
	case ModeSoft:
		text = applyRules(text, softRules)
		text = addPlease(text)
	case ModeConcise:
		text = applyRules(text, conciseRemovals)
	case ModeFriendly:
		text = applyRules(text, friendlyRules)
		if !friendlyGreeting.MatchString(strings.TrimSpace(text)) {
			text = "Hi! " + strings.TrimSpace(text)
		}
	}

	text = tidy(text)
	return punctuateQuestion(text)
}

// ApplyLearnedRules performs whole-word-boundary substitution for each
// learned rule in order. Matching is case-insensitive; the replacement is
// inserted exactly as learned.
func ApplyLearnedRules(text string, rules []LearnedRule) string {
	for _, r := range rules {
		if r.From == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(r.From) + `\b`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, r.To)
	}
	return text
}

// addPlease appends a trailing "please" to requests that do not already
// carry one.
func addPlease(text string) string {
	if strings.Contains(strings.ToLower(text), "please") {
		return text
	}
	if requestVerb.MatchString(text) {
		return strings.TrimRight(strings.TrimSpace(text), ".") + ", please."
	}
	return text
}

// punctuateQuestion replaces terminal punctuation with a question mark when
// the sentence matches a question-start pattern, and appends one when the
// sentence is an unpunctuated question.
func punctuateQuestion(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !IsQuestion(trimmed) {
		return text
	}
	switch {
	case strings.HasSuffix(trimmed, "?"):
		return trimmed
	case strings.HasSuffix(trimmed, "."), strings.HasSuffix(trimmed, "!"):
		return trimmed[:len(trimmed)-1] + "?"
	default:
		return trimmed + "?"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
