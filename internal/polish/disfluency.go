package polish

import (
	"context"
	"sort"
	"strings"

	"github.com/clarivox/clarivox/internal/polish/tone"
)

// defaultFillers is the fixed vocabulary of filler tokens and phrases removed
// by the [Disfluency] stage. Multi-word entries are matched before their
// single-word prefixes ("kind of" before "kind").
var defaultFillers = []string{
	"umm", "uhh", "ehh", "uh", "um", "er", "ah", "oh",
	"you know", "like", "so", "well", "actually", "basically",
	"literally", "totally", "really", "very", "just", "kind of",
	"sort of", "i mean", "you see", "right", "okay", "alright",
}

// collapseStutters collapses a run of three or more case-insensitive repeats
// of the same word ("the the the") to a single occurrence. A single repeat is
// left alone, doubled words can be legitimate ("had had").
func collapseStutters(words []string) []string {
	out := make([]string, 0, len(words))
	i := 0
	for i < len(words) {
		j := i + 1
		for j < len(words) && strings.EqualFold(words[j], words[i]) {
			j++
		}
		if j-i >= 3 {
			out = append(out, words[i])
		} else {
			out = append(out, words[i:j]...)
		}
		i = j
	}
	return out
}

// Disfluency removes filler words and collapses stutter repeats from
// transcript text. The filler vocabulary is fixed at construction.
type Disfluency struct {
	// fillers, longest first, each as its token slice.
	fillers [][]string
}

// Compile-time interface check.
var _ Stage = (*Disfluency)(nil)

// NewDisfluency creates a [Disfluency] stage. When no vocabulary is given the
// built-in filler list is used.
func NewDisfluency(fillers ...string) *Disfluency {
	if len(fillers) == 0 {
		fillers = defaultFillers
	}
	sorted := make([]string, len(fillers))
	copy(sorted, fillers)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})

	d := &Disfluency{fillers: make([][]string, 0, len(sorted))}
	for _, f := range sorted {
		d.fillers = append(d.fillers, strings.Fields(strings.ToLower(f)))
	}
	return d
}

// Name implements [Stage].
func (d *Disfluency) Name() string { return "disfluency" }

// Apply implements [Stage]. Stutters collapse first so that a stuttered
// filler ("um um um") is removed as a single filler afterwards.
func (d *Disfluency) Apply(_ context.Context, text string, _ tone.Mode) (string, error) {
	words := collapseStutters(strings.Fields(text))
	var out []string

	i := 0
	for i < len(words) {
		if n := d.fillerAt(words, i); n > 0 {
			i += n
			continue
		}
		out = append(out, words[i])
		i++
	}

	return strings.Join(out, " "), nil
}

// fillerAt returns the token length of the filler starting at position i, or
// zero when words[i] does not begin a filler. Punctuation attached to the
// final token of a candidate keeps it from matching, which preserves
// sentence-final words like "right?".
func (d *Disfluency) fillerAt(words []string, i int) int {
	for _, filler := range d.fillers {
		n := len(filler)
		if i+n > len(words) {
			continue
		}
		match := true
		for j, fw := range filler {
			if strings.ToLower(words[i+j]) != fw {
				match = false
				break
			}
		}
		if match {
			return n
		}
	}
	return 0
}
