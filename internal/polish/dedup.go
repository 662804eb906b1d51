package polish

import (
	"context"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/clarivox/clarivox/internal/polish/tone"
)

const (
	defaultDedupWindow    = 6
	defaultDedupThreshold = 0.92
)

// DedupOption is a functional option for configuring a [Dedup] stage.
type DedupOption func(*Dedup)

// WithDedupWindow sets the maximum span length, in tokens, tested for
// back-to-back repetition. Default: 6.
func WithDedupWindow(tokens int) DedupOption {
	return func(d *Dedup) {
		d.window = tokens
	}
}

// WithDedupThreshold sets the minimum Jaro-Winkler similarity for two
// adjacent spans to count as a repetition. Default: 0.92.
func WithDedupThreshold(threshold float64) DedupOption {
	return func(d *Dedup) {
		d.threshold = threshold
	}
}

// Dedup collapses near-duplicate repeated spans, the classic artifact of
// streaming speech-to-text engines re-emitting a phrase across chunk
// boundaries ("I went to the I went to the store").
//
// For each position the stage tests sliding windows of up to the configured
// size: when the next window is a fuzzy match of the current one, the
// duplicate is dropped. Fuzzy comparison (rather than exact equality)
// absorbs minor transcription differences between the two occurrences.
type Dedup struct {
	window    int
	threshold float64
}

// Compile-time interface check.
var _ Stage = (*Dedup)(nil)

// NewDedup creates a [Dedup] stage with the supplied options.
func NewDedup(opts ...DedupOption) *Dedup {
	d := &Dedup{
		window:    defaultDedupWindow,
		threshold: defaultDedupThreshold,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Name implements [Stage].
func (d *Dedup) Name() string { return "dedup" }

// Apply implements [Stage]. The tone mode is ignored — repetition artifacts
// are tone-independent.
func (d *Dedup) Apply(_ context.Context, text string, _ tone.Mode) (string, error) {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return text, nil
	}

	var out []string
	i := 0
	for i < len(tokens) {
		w := min(d.window, len(tokens)-i)

		repeated := false
		for k := 1; k <= w; k++ {
			if i+2*k > len(tokens) {
				break
			}
			seg := strings.Join(tokens[i:i+k], " ")
			next := strings.Join(tokens[i+k:i+2*k], " ")
			// An exactly doubled word can be legitimate ("had had");
			// runs of three or more are the disfluency stage's job.
			if k == 1 && strings.EqualFold(seg, next) {
				continue
			}
			if similar(seg, next, d.threshold) {
				// Keep the first occurrence, drop the echo.
				out = append(out, tokens[i:i+k]...)
				i += 2 * k
				repeated = true
				break
			}
		}

		if !repeated {
			out = append(out, tokens[i])
			i++
		}
	}

	return strings.Join(out, " "), nil
}

// similar reports whether two spans are close enough to be the same phrase.
// Case differences never matter; short spans get an exact comparison because
// Jaro-Winkler over-scores near-identical short strings.
func similar(a, b string, threshold float64) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return true
	}
	if len(a) < 4 || len(b) < 4 {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= threshold
}
