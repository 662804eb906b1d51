// Package segment implements silence-threshold segmentation for live speech
// transcripts.
//
// During dictation the only structural signal available is how long the
// speaker stays quiet. The [Classifier] maps an elapsed silence duration onto
// one of three break categories using two configurable thresholds:
//
//   - below the break threshold: no break, keep recording.
//   - between break and end threshold: a paragraph break, emitted exactly
//     once per silence episode; recording continues.
//   - at or above the end threshold: end of turn; the accumulated buffer is
//     flushed downstream and recording stops.
//
// The [Tracker] builds on the classifier to maintain the per-session
// transcript buffer, insert paragraph markers, and react to voice-activity
// events from the transcription engine.
package segment

import (
	"fmt"
	"time"
)

// Default silence thresholds. A pause of two seconds starts a new paragraph
// while the speaker keeps going; five seconds of quiet finalises the turn.
const (
	DefaultBreakThreshold = 2 * time.Second
	DefaultEndThreshold   = 5 * time.Second
)

// Category is the outcome of classifying a silence duration.
type Category int

const (
	// CategoryNone means the pause is too short to be structural.
	CategoryNone Category = iota

	// CategoryParagraphBreak means the pause marks a paragraph boundary.
	// Recording continues; the caller inserts a paragraph separator.
	CategoryParagraphBreak

	// CategoryEndOfTurn means the speaker is done. Recording stops and the
	// buffer is handed to the correction pipeline.
	CategoryEndOfTurn
)

// String returns the human-readable name of the category.
func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryParagraphBreak:
		return "paragraph_break"
	case CategoryEndOfTurn:
		return "end_of_turn"
	default:
		return "unknown"
	}
}

// State is the per-silence-episode classifier state. It is owned by a single
// recording session and must not be shared between sessions.
type State struct {
	// LastVoiceActivityAt is when voice was last detected.
	LastVoiceActivityAt time.Time

	// EmittedParagraphBreak guards against re-emitting a paragraph break
	// while silence continues past the break threshold.
	EmittedParagraphBreak bool
}

// Classifier maps silence durations onto break categories.
// It is read-only after construction and safe for concurrent use; all
// mutable state lives in [State].
type Classifier struct {
	breakThreshold time.Duration
	endThreshold   time.Duration
}

// NewClassifier creates a [Classifier] with the given thresholds.
// Zero or negative values fall back to the defaults. Returns an error when
// breakThreshold is not strictly below endThreshold.
func NewClassifier(breakThreshold, endThreshold time.Duration) (*Classifier, error) {
	if breakThreshold <= 0 {
		breakThreshold = DefaultBreakThreshold
	}
	if endThreshold <= 0 {
		endThreshold = DefaultEndThreshold
	}
	if breakThreshold >= endThreshold {
		return nil, fmt.Errorf("segment: break threshold %v must be below end threshold %v",
			breakThreshold, endThreshold)
	}
	return &Classifier{
		breakThreshold: breakThreshold,
		endThreshold:   endThreshold,
	}, nil
}

// BreakThreshold returns the configured paragraph-break threshold.
func (c *Classifier) BreakThreshold() time.Duration { return c.breakThreshold }

// EndThreshold returns the configured end-of-turn threshold.
func (c *Classifier) EndThreshold() time.Duration { return c.endThreshold }

// Classify maps silence onto a break category and returns the next state.
//
// A paragraph break is reported only on the initial crossing of the break
// threshold within one silence episode; repeated samples between the break
// and end thresholds return [CategoryNone] until voice activity resets the
// episode via [State.EmittedParagraphBreak].
func (c *Classifier) Classify(silence time.Duration, st State) (Category, State) {
	switch {
	case silence >= c.endThreshold:
		return CategoryEndOfTurn, st

	case silence >= c.breakThreshold:
		if st.EmittedParagraphBreak {
			return CategoryNone, st
		}
		st.EmittedParagraphBreak = true
		return CategoryParagraphBreak, st

	default:
		st.EmittedParagraphBreak = false
		return CategoryNone, st
	}
}

// Voice records detected voice activity at t and returns the reset state.
// Any detected speech re-enters the "none" category and re-arms the
// paragraph-break guard.
func (c *Classifier) Voice(t time.Time, st State) State {
	st.LastVoiceActivityAt = t
	st.EmittedParagraphBreak = false
	return st
}
