package grammar

import (
	"regexp"
	"strings"
)

// phoneticFixes are common-error patterns where the speech engine hears a
// homophone of what was said.
var phoneticFixes = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\bcould\s+of\b`), "could have"},
	{regexp.MustCompile(`(?i)\bshould\s+of\b`), "should have"},
	{regexp.MustCompile(`(?i)\bwould\s+of\b`), "would have"},
	{regexp.MustCompile(`(?i)\balot\b`), "a lot"},
	{regexp.MustCompile(`(?i)\byour\s+(going|coming|doing)\b`), "you're $1"},
	{regexp.MustCompile(`(?i)\bits\s+(going|coming|doing)\b`), "it's $1"},
	{regexp.MustCompile(`(?i)\btheir\s+(is|are|was|were)\b`), "there $1"},
	{regexp.MustCompile(`(?i)\bthere\s+(going|coming)\b`), "they're $1"},
	{regexp.MustCompile(`(?i)\bdon't\s+have\s+no\b`), "don't have any"},
	{regexp.MustCompile(`(?i)\bdidn't\s+have\s+no\b`), "didn't have any"},
	{regexp.MustCompile(`(?i)\bcan't\s+see\s+nothing\b`), "can't see anything"},
	{regexp.MustCompile(`(?i)\bdifferent\s+than\b`), "different from"},
	{regexp.MustCompile(`(?i)\bin\s+the\s+weekend\b`), "on the weekend"},
	{regexp.MustCompile(`(?i)\bmarried\s+with\b`), "married to"},
}

// vowelSoundExceptions start with a consonant letter but a vowel sound, so
// they take "an".
var vowelSoundExceptions = map[string]struct{}{
	"hour": {}, "hours": {}, "honest": {}, "honor": {}, "honour": {},
	"heir": {}, "herb": {},
}

// consonantSoundExceptions start with a vowel letter but a consonant sound,
// so they take "a".
var consonantSoundExceptions = map[string]struct{}{
	"university": {}, "union": {}, "unit": {}, "one": {}, "once": {},
	"european": {}, "user": {}, "unique": {},
}

// agreementFixes maps (pronoun, verb) to the agreeing verb form for the
// pronouns dictation gets wrong most often.
var agreementFixes = map[string]map[string]string{
	"he":   {"have": "has", "do": "does", "go": "goes", "dont": "doesn't", "don't": "doesn't"},
	"she":  {"have": "has", "do": "does", "go": "goes", "dont": "doesn't", "don't": "doesn't"},
	"it":   {"have": "has", "do": "does", "go": "goes", "dont": "doesn't", "don't": "doesn't"},
	"i":    {"has": "have", "does": "do", "goes": "go"},
	"you":  {"has": "have", "does": "do", "goes": "go"},
	"we":   {"has": "have", "does": "do", "goes": "go"},
	"they": {"has": "have", "does": "do", "goes": "go"},
}

var standaloneI = regexp.MustCompile(`\bi\b`)

// CorrectRules applies the deterministic grammar rule set. It is pure,
// side-effect-free, and always succeeds; unrecognised text passes through
// unchanged.
func CorrectRules(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	for _, f := range phoneticFixes {
		text = f.pattern.ReplaceAllString(text, f.replace)
	}

	text = fixArticles(text)
	text = fixAgreement(text)
	text = standaloneI.ReplaceAllString(text, "I")

	return text
}

// fixArticles corrects a/an agreement with the following word's sound.
func fixArticles(text string) string {
	words := strings.Fields(text)
	for i := 0; i < len(words)-1; i++ {
		article := strings.ToLower(words[i])
		if article != "a" && article != "an" {
			continue
		}
		next := strings.ToLower(strings.TrimRight(words[i+1], ".,!?;:"))
		if next == "" {
			continue
		}

		wantAn := strings.ContainsRune("aeiou", rune(next[0]))
		if _, ok := vowelSoundExceptions[next]; ok {
			wantAn = true
		}
		if _, ok := consonantSoundExceptions[next]; ok {
			wantAn = false
		}

		switch {
		case wantAn && article == "a":
			words[i] = matchCase(words[i], "an")
		case !wantAn && article == "an":
			words[i] = matchCase(words[i], "a")
		}
	}
	return strings.Join(words, " ")
}

// fixAgreement corrects pronoun subject-verb agreement for immediately
// adjacent pronoun-verb pairs.
func fixAgreement(text string) string {
	words := strings.Fields(text)
	for i := 0; i < len(words)-1; i++ {
		verbs, ok := agreementFixes[strings.ToLower(words[i])]
		if !ok {
			continue
		}
		if fixed, ok := verbs[strings.ToLower(words[i+1])]; ok {
			words[i+1] = matchCase(words[i+1], fixed)
		}
	}
	return strings.Join(words, " ")
}

// matchCase gives replacement the capitalisation of original's first letter.
func matchCase(original, replacement string) string {
	if original == "" || replacement == "" {
		return replacement
	}
	if original[0] >= 'A' && original[0] <= 'Z' {
		return strings.ToUpper(replacement[:1]) + replacement[1:]
	}
	return replacement
}
