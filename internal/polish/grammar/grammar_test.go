package grammar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clarivox/clarivox/internal/polish"
	"github.com/clarivox/clarivox/internal/polish/tone"
	"github.com/clarivox/clarivox/pkg/provider/llm"
	"github.com/clarivox/clarivox/pkg/provider/llm/mock"
)

func TestCorrector_RulesOnlyWithoutModel(t *testing.T) {
	t.Parallel()

	c := New()
	got, err := c.Apply(context.Background(), "i could of done it", tone.ModeNeutral)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got != "I could have done it" {
		t.Errorf("Apply() = %q, want rule correction", got)
	}
}

func TestCorrector_ModelPathPreferred(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "I could have done it."},
	}
	c := New(WithModel(NewLLMModel(provider)))

	got, err := c.Apply(context.Background(), "i could of done it", tone.ModeNeutral)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got != "I could have done it." {
		t.Errorf("Apply() = %q, want model output", got)
	}

	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("model called %d times, want 1", len(calls))
	}
	if calls[0].Req.SystemPrompt == "" {
		t.Error("model request missing system prompt")
	}
}

func TestCorrector_ModelTimeoutDegradesToRules(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		Delay:            time.Second,
		CompleteResponse: &llm.CompletionResponse{Content: "never delivered"},
	}
	c := New(
		WithModel(NewLLMModel(provider)),
		WithModelTimeout(10*time.Millisecond),
	)

	got, err := c.Apply(context.Background(), "i could of done it", tone.ModeNeutral)
	if !errors.Is(err, polish.ErrStageDegraded) {
		t.Fatalf("Apply() error = %v, want ErrStageDegraded", err)
	}
	if got != "I could have done it" {
		t.Errorf("Apply() = %q, want rule fallback output", got)
	}
}

func TestCorrector_ModelErrorDegradesToRules(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{CompleteErr: errors.New("backend down")}
	c := New(WithModel(NewLLMModel(provider)))

	got, err := c.Apply(context.Background(), "their is a problem", tone.ModeNeutral)
	if !errors.Is(err, polish.ErrStageDegraded) {
		t.Fatalf("Apply() error = %v, want ErrStageDegraded", err)
	}
	if got != "there is a problem" {
		t.Errorf("Apply() = %q, want rule fallback output", got)
	}
}

func TestCorrector_EmptyModelOutputDegrades(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "   "},
	}
	c := New(WithModel(NewLLMModel(provider)))

	got, err := c.Apply(context.Background(), "he have it", tone.ModeNeutral)
	if !errors.Is(err, polish.ErrStageDegraded) {
		t.Fatalf("Apply() error = %v, want ErrStageDegraded", err)
	}
	if got != "he has it" {
		t.Errorf("Apply() = %q, want rule fallback output", got)
	}
}

func TestCorrector_EmptyInputPassthrough(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{}
	c := New(WithModel(NewLLMModel(provider)))

	got, err := c.Apply(context.Background(), "  ", tone.ModeNeutral)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got != "  " {
		t.Errorf("Apply() = %q, want input unchanged", got)
	}
	if len(provider.Calls()) != 0 {
		t.Error("model called for empty input")
	}
}

func TestCorrector_ApplyFastNeverUsesModel(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "model output"},
	}
	c := New(WithModel(NewLLMModel(provider)))

	got := c.ApplyFast("i could of done it", tone.ModeNeutral)
	if got != "I could have done it" {
		t.Errorf("ApplyFast() = %q, want rule output", got)
	}
	if len(provider.Calls()) != 0 {
		t.Error("ApplyFast touched the model")
	}
}

func TestCorrector_MinBudget(t *testing.T) {
	t.Parallel()

	if got := New().MinBudget(); got != defaultMinBudget {
		t.Errorf("MinBudget() = %v, want %v", got, defaultMinBudget)
	}
	if got := New(WithMinBudget(time.Second)).MinBudget(); got != time.Second {
		t.Errorf("MinBudget() = %v, want 1s", got)
	}
}
