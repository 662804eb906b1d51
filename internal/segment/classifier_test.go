package segment

import (
	"testing"
	"time"
)

func TestNewClassifier_Defaults(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(0, 0)
	if err != nil {
		t.Fatalf("NewClassifier(0, 0) error: %v", err)
	}
	if got := c.BreakThreshold(); got != DefaultBreakThreshold {
		t.Errorf("BreakThreshold() = %v, want %v", got, DefaultBreakThreshold)
	}
	if got := c.EndThreshold(); got != DefaultEndThreshold {
		t.Errorf("EndThreshold() = %v, want %v", got, DefaultEndThreshold)
	}
}

func TestNewClassifier_InvalidOrdering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		breakT time.Duration
		endT   time.Duration
	}{
		{"break equals end", 3 * time.Second, 3 * time.Second},
		{"break above end", 6 * time.Second, 4 * time.Second},
		{"default break above custom end", 0, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewClassifier(tt.breakT, tt.endT); err == nil {
				t.Errorf("NewClassifier(%v, %v) = nil error, want error", tt.breakT, tt.endT)
			}
		})
	}
}

func TestClassify_Categories(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(2*time.Second, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		silence time.Duration
		want    Category
	}{
		{"short pause", 500 * time.Millisecond, CategoryNone},
		{"just below break", 1999 * time.Millisecond, CategoryNone},
		{"exactly break threshold", 2 * time.Second, CategoryParagraphBreak},
		{"between thresholds", 3 * time.Second, CategoryParagraphBreak},
		{"exactly end threshold", 5 * time.Second, CategoryEndOfTurn},
		{"beyond end threshold", 10 * time.Second, CategoryEndOfTurn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := c.Classify(tt.silence, State{})
			if got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.silence, got, tt.want)
			}
		})
	}
}

func TestClassify_ParagraphBreakEmittedOncePerEpisode(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(2*time.Second, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	var st State

	cat, st := c.Classify(2500*time.Millisecond, st)
	if cat != CategoryParagraphBreak {
		t.Fatalf("first crossing = %v, want CategoryParagraphBreak", cat)
	}

	// Silence continues within the same episode: the break must not repeat.
	cat, st = c.Classify(3 * time.Second, st)
	if cat != CategoryNone {
		t.Fatalf("continued silence = %v, want CategoryNone", cat)
	}
	cat, st = c.Classify(4 * time.Second, st)
	if cat != CategoryNone {
		t.Fatalf("continued silence = %v, want CategoryNone", cat)
	}

	// Voice activity ends the episode; the next long pause breaks again.
	st = c.Voice(time.Now(), st)
	cat, _ = c.Classify(2500*time.Millisecond, st)
	if cat != CategoryParagraphBreak {
		t.Fatalf("after voice reset = %v, want CategoryParagraphBreak", cat)
	}
}

func TestClassify_ShortPauseRearmsGuard(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(2*time.Second, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	var st State
	_, st = c.Classify(3*time.Second, st)
	// A sub-threshold sample also ends the episode.
	_, st = c.Classify(time.Second, st)

	cat, _ := c.Classify(2 * time.Second, st)
	if cat != CategoryParagraphBreak {
		t.Errorf("after short pause = %v, want CategoryParagraphBreak", cat)
	}
}

// TestClassify_SilenceSequence walks the documented sample sequence:
// pauses of 0.5s and 1.5s are nothing, 2.5s breaks the paragraph, speech
// resumes, 1s is nothing, and 6s ends the turn.
func TestClassify_SilenceSequence(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(2*time.Second, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		silence time.Duration
		voice   bool
		want    Category
	}{
		{silence: 500 * time.Millisecond, want: CategoryNone},
		{silence: 1500 * time.Millisecond, want: CategoryNone},
		{silence: 2500 * time.Millisecond, want: CategoryParagraphBreak},
		{voice: true},
		{silence: time.Second, want: CategoryNone},
		{silence: 6 * time.Second, want: CategoryEndOfTurn},
	}

	var st State
	for i, step := range steps {
		if step.voice {
			st = c.Voice(time.Now(), st)
			continue
		}
		var got Category
		got, st = c.Classify(step.silence, st)
		if got != step.want {
			t.Fatalf("step %d: Classify(%v) = %v, want %v", i, step.silence, got, step.want)
		}
	}
}

func TestCategory_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryNone, "none"},
		{CategoryParagraphBreak, "paragraph_break"},
		{CategoryEndOfTurn, "end_of_turn"},
		{Category(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.cat.String(); got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.cat, got, tt.want)
		}
	}
}
