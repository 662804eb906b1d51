// Package grammar implements the hybrid grammar correction stage.
//
// Two explicit strategies exist: a model strategy that asks a fine-tuned (or
// general) language model for a higher-accuracy rewrite under a hard
// timeout, and a rule strategy that applies a fast deterministic set of
// common speech-to-text error patterns ("could of"→"could have", a/an
// agreement, pronoun subject-verb fixes). The model strategy is selected
// when a [Model] collaborator is configured and the timeout budget allows
// it; every model failure — timeout, transport error, unusable output —
// degrades to the rule strategy and is never fatal to the pipeline.
package grammar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clarivox/clarivox/internal/polish"
	"github.com/clarivox/clarivox/internal/polish/tone"
	"github.com/clarivox/clarivox/pkg/provider/llm"
)

const (
	defaultModelTimeout = 1 * time.Second
	defaultMinBudget    = 300 * time.Millisecond
)

// Model is the external grammar-model collaborator. Implementations must
// respect context cancellation; a call abandoned on timeout must return
// promptly with ctx.Err().
type Model interface {
	// Correct returns a grammatically corrected rendition of text.
	Correct(ctx context.Context, text string) (string, error)
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithModel attaches the model collaborator. When nil (the default) only the
// rule strategy runs.
func WithModel(m Model) Option {
	return func(c *Corrector) {
		c.model = m
	}
}

// WithModelTimeout sets the hard ceiling for one model call. Default: 1s.
func WithModelTimeout(d time.Duration) Option {
	return func(c *Corrector) {
		c.timeout = d
	}
}

// WithMinBudget sets the minimum remaining pipeline budget required to
// attempt the model strategy at all. Default: 300ms.
func WithMinBudget(d time.Duration) Option {
	return func(c *Corrector) {
		c.minBudget = d
	}
}

// Corrector is the hybrid grammar correction stage. It is safe for
// concurrent use.
type Corrector struct {
	model     Model
	timeout   time.Duration
	minBudget time.Duration
}

// Compile-time interface check.
var _ polish.BudgetedStage = (*Corrector)(nil)

// New creates a [Corrector] with the supplied options.
func New(opts ...Option) *Corrector {
	c := &Corrector{
		timeout:   defaultModelTimeout,
		minBudget: defaultMinBudget,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name implements [polish.Stage].
func (c *Corrector) Name() string { return "grammar" }

// MinBudget implements [polish.BudgetedStage].
func (c *Corrector) MinBudget() time.Duration { return c.minBudget }

// ApplyFast implements [polish.BudgetedStage]: the pure rule strategy.
func (c *Corrector) ApplyFast(text string, _ tone.Mode) string {
	return CorrectRules(text)
}

// Apply implements [polish.Stage]. The model strategy runs first when a
// model is configured; any failure degrades to the rule strategy and is
// reported via [polish.ErrStageDegraded] so the orchestrator can mark the
// model sub-path as not applied while keeping the fallback output.
func (c *Corrector) Apply(ctx context.Context, text string, mode tone.Mode) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if c.model == nil {
		return CorrectRules(text), nil
	}

	corrected, err := c.correctWithModel(ctx, text)
	if err != nil {
		slog.Debug("grammar model unavailable, using rule fallback", "error", err)
		return CorrectRules(text), fmt.Errorf("%w: %v", polish.ErrStageDegraded, err)
	}
	return corrected, nil
}

// correctWithModel runs the model strategy under the configured timeout.
// No retry is attempted; an abandoned call stays abandoned for this run.
func (c *Corrector) correctWithModel(parent context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	out, err := c.model.Correct(ctx, text)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("grammar: model returned empty text")
	}
	return out, nil
}

// modelSystemPrompt keeps the model conservative: fix grammar only, never
// rewrite content.
const modelSystemPrompt = `You are a grammar correction engine for dictated text.
Fix grammar, article usage, verb agreement, and common speech-recognition errors.
Do NOT change the meaning, add content, or comment. Respond with ONLY the corrected text.`

// LLMModel adapts an [llm.Provider] to the [Model] contract, so the grammar
// stage can use any configured completion backend as its model strategy.
type LLMModel struct {
	provider    llm.Provider
	temperature float64
}

// Compile-time interface check.
var _ Model = (*LLMModel)(nil)

// NewLLMModel wraps provider as a grammar [Model].
func NewLLMModel(provider llm.Provider) *LLMModel {
	return &LLMModel{provider: provider, temperature: 0.1}
}

// Correct implements [Model].
func (m *LLMModel) Correct(ctx context.Context, text string) (string, error) {
	resp, err := m.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: modelSystemPrompt,
		Temperature:  m.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("grammar: model complete: %w", err)
	}
	return resp.Content, nil
}
