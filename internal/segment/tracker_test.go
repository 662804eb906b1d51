package segment

import (
	"strings"
	"testing"
	"time"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	c, err := NewClassifier(2*time.Second, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return NewTracker(c)
}

func TestTracker_AppendJoinsFragments(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.Append("hello")
	tr.Append("  world  ")
	tr.Append("")

	f := tr.Flush()
	if f == nil {
		t.Fatal("Flush() = nil, want flush")
	}
	if f.Text != "hello world" {
		t.Errorf("Text = %q, want %q", f.Text, "hello world")
	}
}

func TestTracker_ParagraphBreakInsertsMarker(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.Append("first thought")

	cat, flush := tr.Silence(3 * time.Second)
	if cat != CategoryParagraphBreak {
		t.Fatalf("Silence(3s) = %v, want CategoryParagraphBreak", cat)
	}
	if flush != nil {
		t.Fatal("paragraph break must not flush")
	}

	tr.Voice(time.Now())
	tr.Append("second thought")

	cat, flush = tr.Silence(6 * time.Second)
	if cat != CategoryEndOfTurn {
		t.Fatalf("Silence(6s) = %v, want CategoryEndOfTurn", cat)
	}
	if flush == nil {
		t.Fatal("end of turn must flush")
	}

	want := "first thought" + ParagraphMarker + "second thought"
	if flush.Text != want {
		t.Errorf("Text = %q, want %q", flush.Text, want)
	}
	if flush.ParagraphBreaks != 1 {
		t.Errorf("ParagraphBreaks = %d, want 1", flush.ParagraphBreaks)
	}
}

func TestTracker_RepeatedSilenceOneMarker(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.Append("text")

	// Silence samples keep arriving within the same episode.
	tr.Silence(2500 * time.Millisecond)
	tr.Silence(3 * time.Second)
	tr.Silence(4 * time.Second)

	tr.Voice(time.Now())
	tr.Append("more")
	_, flush := tr.Silence(5 * time.Second)
	if flush == nil {
		t.Fatal("expected flush")
	}
	if n := strings.Count(flush.Text, ParagraphMarker); n != 1 {
		t.Errorf("marker count = %d, want 1 (text %q)", n, flush.Text)
	}
}

func TestTracker_EmptyBufferNoFlush(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)

	cat, flush := tr.Silence(10 * time.Second)
	if cat != CategoryEndOfTurn {
		t.Fatalf("Silence(10s) = %v, want CategoryEndOfTurn", cat)
	}
	if flush != nil {
		t.Errorf("flush = %+v, want nil for empty buffer", flush)
	}
	if tr.Flush() != nil {
		t.Error("Flush() on empty tracker should be nil")
	}
}

func TestTracker_TrailingMarkerTrimmed(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.Append("only paragraph")
	tr.Silence(3 * time.Second) // break, then nothing said

	_, flush := tr.Silence(6 * time.Second)
	if flush == nil {
		t.Fatal("expected flush")
	}
	if flush.Text != "only paragraph" {
		t.Errorf("Text = %q, want %q", flush.Text, "only paragraph")
	}
	if flush.ParagraphBreaks != 0 {
		t.Errorf("ParagraphBreaks = %d, want 0", flush.ParagraphBreaks)
	}
}

func TestTracker_FlushResets(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.Append("turn one")
	if !tr.Pending() {
		t.Fatal("Pending() = false after Append")
	}

	if f := tr.Flush(); f == nil || f.Text != "turn one" {
		t.Fatalf("first Flush() = %+v", f)
	}
	if tr.Pending() {
		t.Error("Pending() = true after flush")
	}

	tr.Append("turn two")
	if f := tr.Flush(); f == nil || f.Text != "turn two" {
		t.Errorf("second Flush() = %+v", f)
	}
}

func TestTracker_ResetDiscardsBuffer(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.Append("discard me")
	tr.Reset()
	if tr.Flush() != nil {
		t.Error("Flush() after Reset should be nil")
	}
}

func TestTracker_StartedSetOnFirstFragment(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	before := time.Now()
	tr.Append("hello")
	after := time.Now()

	f := tr.Flush()
	if f == nil {
		t.Fatal("expected flush")
	}
	if f.Started.Before(before) || f.Started.After(after) {
		t.Errorf("Started = %v, want within [%v, %v]", f.Started, before, after)
	}
}
