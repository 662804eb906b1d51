package tone

import (
	"regexp"
	"strings"
)

// questionStarters are the wh-words, auxiliaries, and modals that open a
// direct question.
var questionStarters = map[string]struct{}{
	"what": {}, "where": {}, "when": {}, "why": {}, "who": {}, "whom": {},
	"whose": {}, "which": {}, "how": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "am": {},
	"do": {}, "does": {}, "did": {},
	"can": {}, "could": {}, "would": {}, "should": {}, "will": {}, "shall": {},
	"have": {}, "has": {}, "had": {},
	"may": {}, "might": {}, "must": {},
}

// nonQuestionPatterns exclude sentences that open with a question word but
// are statements: "what I'm trying to say", "what a beautiful day",
// embedded "know what to do", imperative "tell me what happened".
var nonQuestionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^what\s+(i'm|im|i am)\s+`),
	regexp.MustCompile(`^what\s+a\s+`),
	regexp.MustCompile(`^what\s+(we|they|he|she|it)\s+(need|want|should|can|could)`),
	regexp.MustCompile(`know\s+what\s+to`),
	regexp.MustCompile(`tell\s+me\s+what`),
}

// IsQuestion reports whether text reads as a direct question. The test is a
// question-starter first word (wh-word, auxiliary, or modal) minus the known
// dictation false positives.
func IsQuestion(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}

	for _, p := range nonQuestionPatterns {
		if p.MatchString(lower) {
			return false
		}
	}

	first := strings.Fields(lower)[0]
	first = strings.TrimRight(first, ",.!?;:")
	_, ok := questionStarters[first]
	return ok
}
