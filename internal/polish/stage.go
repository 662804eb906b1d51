// Package polish implements the latency-budgeted transcript correction
// pipeline.
//
// Raw dictation text is noisy: speech-to-text engines repeat spans, speakers
// stutter and insert fillers, grammar drifts, and the speaker's chosen tone
// mode must be applied before delivery. The [Pipeline] runs a fixed
// sequence of [Stage] values over one utterance under a hard wall-clock
// budget, consulting the learning cache first so previously corrected
// outputs bypass the pipeline entirely.
//
// All plain stages are pure text transforms with no I/O and are assumed fast
// enough never to need timeout protection. The grammar corrector is the one
// exception — its model path is internally timeout-guarded and the
// orchestrator drops down to the cheap sub-path when the remaining budget is
// too small (see [BudgetedStage]).
package polish

import (
	"context"
	"time"

	"github.com/clarivox/clarivox/internal/polish/tone"
)

// Stage is a single correction step. Apply must be deterministic for a given
// (text, mode) pair and must not retain references to its input.
//
// Implementations must be safe for concurrent use.
type Stage interface {
	// Name is a short stable identifier used in results, logs, and metrics
	// (e.g. "dedup", "grammar").
	Name() string

	// Apply transforms text under the given tone mode. Returning an error
	// marks the stage as not applied; the orchestrator continues with the
	// previous stage's output.
	Apply(ctx context.Context, text string, mode tone.Mode) (string, error)
}

// BudgetedStage is implemented by stages with an expensive sub-path that can
// be skipped when the remaining pipeline budget is too small.
type BudgetedStage interface {
	Stage

	// MinBudget is the minimum remaining budget required to attempt the
	// expensive sub-path via Apply.
	MinBudget() time.Duration

	// ApplyFast transforms text using only the cheap deterministic sub-path.
	// It must be pure and must always succeed or pass the text through.
	ApplyFast(text string, mode tone.Mode) string
}
