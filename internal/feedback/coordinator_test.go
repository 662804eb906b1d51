package feedback

import (
	"context"
	"errors"
	"testing"

	"github.com/clarivox/clarivox/internal/learn"
	"github.com/clarivox/clarivox/internal/polish/tone"
	"github.com/clarivox/clarivox/pkg/provider/llm"
	"github.com/clarivox/clarivox/pkg/provider/llm/mock"
)

func newTestCache(t *testing.T) *learn.Cache {
	t.Helper()
	c := learn.NewCache()
	t.Cleanup(c.Close)
	return c
}

func TestCoordinator_ApproveReject(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	c := NewCoordinator(cache)

	if err := c.Approve(tone.ModeNeutral); err != nil {
		t.Fatalf("Approve() error: %v", err)
	}
	if err := c.Reject(tone.ModeNeutral); err != nil {
		t.Fatalf("Reject() error: %v", err)
	}

	st := cache.Stats(tone.ModeNeutral)
	if st.Approved != 1 || st.Rejected != 1 {
		t.Errorf("Stats = %+v, want 1/1", st)
	}

	var malformed *MalformedFeedbackError
	if err := c.Approve(tone.Mode("shouty")); !errors.As(err, &malformed) {
		t.Errorf("Approve(invalid mode) error = %v, want MalformedFeedbackError", err)
	}
}

func TestCoordinator_SubmitManual(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	c := NewCoordinator(cache)

	err := c.SubmitManual("i could of", "I could of done it.", "I could have done it.", tone.ModeNeutral)
	if err != nil {
		t.Fatalf("SubmitManual() error: %v", err)
	}

	if _, ok := cache.LookupExact("i could of done it", tone.ModeNeutral); !ok {
		t.Error("correction not stored in exact cache")
	}
	// A manual correction is an implicit rejection of the system output.
	if st := cache.Stats(tone.ModeNeutral); st.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", st.Rejected)
	}
}

func TestCoordinator_SubmitManualValidation(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(newTestCache(t))

	tests := []struct {
		name       string
		output     string
		correction string
		mode       tone.Mode
		wantField  string
	}{
		{"invalid mode", "out", "fix", tone.Mode("bad"), "tone_mode"},
		{"empty output", "  ", "fix", tone.ModeNeutral, "system_output"},
		{"empty correction", "out", "  ", tone.ModeNeutral, "user_correction"},
		{"identical correction", "same text", " same text ", tone.ModeNeutral, "user_correction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := c.SubmitManual("orig", tt.output, tt.correction, tt.mode)
			var malformed *MalformedFeedbackError
			if !errors.As(err, &malformed) {
				t.Fatalf("SubmitManual() error = %v, want MalformedFeedbackError", err)
			}
			if malformed.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", malformed.Field, tt.wantField)
			}
		})
	}
}

func TestAutoImprove_ModelSuggestion(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "I could have done it."},
	}
	c := NewCoordinator(newTestCache(t), WithSuggester(provider))

	s, err := c.AutoImprove(context.Background(), "i could of", "I could of done it.", tone.ModeNeutral)
	if err != nil {
		t.Fatalf("AutoImprove() error: %v", err)
	}
	if s.Source != SourceModel {
		t.Errorf("Source = %q, want model", s.Source)
	}
	if s.Text != "I could have done it." {
		t.Errorf("Text = %q", s.Text)
	}
	if s.ManualRequired {
		t.Error("ManualRequired = true, want false")
	}
}

func TestAutoImprove_ModelFailureFallsBack(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{CompleteErr: errors.New("rate limited")}
	c := NewCoordinator(newTestCache(t), WithSuggester(provider))

	s, err := c.AutoImprove(context.Background(), "orig", "i could of done it", tone.ModeNeutral)
	if err != nil {
		t.Fatalf("AutoImprove() error: %v", err)
	}
	if s.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback", s.Source)
	}
	if s.Text != "I could have done it" {
		t.Errorf("Text = %q, want grammar-rule suggestion", s.Text)
	}
}

func TestAutoImprove_NeverMutatesCache(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	provider := &mock.Provider{CompleteErr: errors.New("rate limited")}
	c := NewCoordinator(cache, WithSuggester(provider))

	if _, err := c.AutoImprove(context.Background(), "orig", "i could of done it", tone.ModeNeutral); err != nil {
		t.Fatal(err)
	}

	s := cache.Summarize()
	if s.ExactEntries != 0 || s.Rules != 0 || s.Corrections != 0 {
		t.Errorf("auto-improve mutated the cache: %+v", s)
	}
	if st := cache.Stats(tone.ModeNeutral); st.Approved != 0 || st.Rejected != 0 {
		t.Errorf("auto-improve touched stats: %+v", st)
	}
}

func TestAutoImprove_NoSuggesterUsesFallback(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(newTestCache(t))

	s, err := c.AutoImprove(context.Background(), "orig", "we gotta finish this okay", tone.ModeFormal)
	if err != nil {
		t.Fatal(err)
	}
	if s.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback", s.Source)
	}
	if s.Text != "we must finish this very well" {
		t.Errorf("Text = %q", s.Text)
	}
}

func TestAutoImprove_NothingToSuggestRequiresManual(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(newTestCache(t))

	s, err := c.AutoImprove(context.Background(), "orig", "This text is already clean", tone.ModeNeutral)
	if err != nil {
		t.Fatal(err)
	}
	if !s.ManualRequired {
		t.Error("ManualRequired = false, want true when fallback changes nothing")
	}
	if s.Text != "" {
		t.Errorf("Text = %q, want empty", s.Text)
	}
}

func TestAutoImprove_Validation(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(newTestCache(t))

	var malformed *MalformedFeedbackError
	if _, err := c.AutoImprove(context.Background(), "o", "out", tone.Mode("bad")); !errors.As(err, &malformed) {
		t.Errorf("invalid mode error = %v, want MalformedFeedbackError", err)
	}
	if _, err := c.AutoImprove(context.Background(), "o", "  ", tone.ModeNeutral); !errors.As(err, &malformed) {
		t.Errorf("empty output error = %v, want MalformedFeedbackError", err)
	}
}
