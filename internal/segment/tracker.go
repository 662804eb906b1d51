package segment

import (
	"strings"
	"sync"
	"time"
)

// ParagraphMarker is the separator the [Tracker] inserts into the
// accumulating transcript at a paragraph break. The correction pipeline
// re-interleaves it into the final text by sentence boundary.
const ParagraphMarker = "\n\n"

// Flush is the finalised transcript of one speaking turn, produced when the
// end-of-turn threshold is crossed.
type Flush struct {
	// Text is the accumulated raw transcript, including any paragraph
	// markers inserted at break boundaries.
	Text string

	// ParagraphBreaks is the number of paragraph breaks that occurred
	// during the turn.
	ParagraphBreaks int

	// Started is when the first transcript fragment of the turn arrived.
	Started time.Time
}

// Tracker owns the silence state machine and transcript buffer for one
// recording session. Events from the transcription engine arrive in order on
// a single goroutine per session, but the transport layer may query state
// concurrently, so all methods are safe for concurrent use.
type Tracker struct {
	classifier *Classifier

	mu         sync.Mutex
	state      State
	buf        strings.Builder
	breaks     int
	started    time.Time
	hasContent bool
}

// NewTracker creates a [Tracker] over the given classifier.
func NewTracker(c *Classifier) *Tracker {
	return &Tracker{classifier: c}
}

// Voice handles a voice-activity event: the silence episode ends and the
// paragraph-break guard re-arms.
func (t *Tracker) Voice(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = t.classifier.Voice(at, t.state)
}

// Append adds a finalised transcript fragment to the buffer.
// Fragments are joined with single spaces; paragraph markers inserted by
// [Tracker.Silence] are preserved verbatim.
func (t *Tracker) Append(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasContent {
		t.started = time.Now()
		t.hasContent = true
	} else if !strings.HasSuffix(t.buf.String(), ParagraphMarker) {
		t.buf.WriteByte(' ')
	}
	t.buf.WriteString(text)
}

// Silence handles a silence-duration sample. It returns the classified
// category and, for [CategoryEndOfTurn], the flushed turn. On a paragraph
// break the marker is appended to the buffer and recording continues.
//
// After an end-of-turn flush the tracker is reset and ready for the next
// turn; the flush is nil for every other category.
func (t *Tracker) Silence(d time.Duration) (Category, *Flush) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cat, next := t.classifier.Classify(d, t.state)
	t.state = next

	switch cat {
	case CategoryParagraphBreak:
		if t.hasContent {
			t.buf.WriteString(ParagraphMarker)
			t.breaks++
		}
		return cat, nil

	case CategoryEndOfTurn:
		f := t.flushLocked()
		return cat, f

	default:
		return cat, nil
	}
}

// Flush force-finalises the current turn, returning whatever transcript has
// accumulated. Used when the user stops recording before the end-of-turn
// threshold fires. Returns nil when the buffer is empty.
func (t *Tracker) Flush() *Flush {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked()
}

// Reset clears the buffer and all per-turn state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// Pending reports whether the buffer holds unflushed transcript text.
func (t *Tracker) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasContent
}

// flushLocked snapshots the buffer into a Flush and resets the tracker.
// Returns nil when the buffer is empty.
func (t *Tracker) flushLocked() *Flush {
	if !t.hasContent {
		return nil
	}
	text := t.buf.String()
	breaks := t.breaks
	if strings.HasSuffix(text, ParagraphMarker) {
		// A break with no speech after it is not a paragraph boundary.
		text = strings.TrimSuffix(text, ParagraphMarker)
		breaks--
	}
	f := &Flush{
		Text:            strings.TrimSpace(text),
		ParagraphBreaks: breaks,
		Started:         t.started,
	}
	t.resetLocked()
	if f.Text == "" {
		return nil
	}
	return f
}

func (t *Tracker) resetLocked() {
	t.buf.Reset()
	t.breaks = 0
	t.hasContent = false
	t.started = time.Time{}
}
