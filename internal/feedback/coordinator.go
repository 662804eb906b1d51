// Package feedback turns user verdicts on pipeline output into learning
// cache mutations and, for auto-improve requests, delegates to an external
// suggestion model with a deterministic fallback.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clarivox/clarivox/internal/learn"
	"github.com/clarivox/clarivox/internal/polish/tone"
	"github.com/clarivox/clarivox/pkg/provider/llm"
)

// MalformedFeedbackError reports user feedback that cannot be learned from.
// It is a terminal validation error: the request is rejected and no state
// changes.
type MalformedFeedbackError struct {
	Field  string
	Reason string
}

func (e *MalformedFeedbackError) Error() string {
	return fmt.Sprintf("feedback: malformed %s: %s", e.Field, e.Reason)
}

// SuggestionSource identifies what produced a [Suggestion].
type SuggestionSource string

const (
	// SourceModel means the external suggestion model produced the text.
	SourceModel SuggestionSource = "model"

	// SourceFallback means the deterministic rule tables produced the text
	// after the model was unavailable.
	SourceFallback SuggestionSource = "fallback"
)

// Suggestion is the outcome of an auto-improve request.
type Suggestion struct {
	// Text is the proposed correction. Empty when ManualRequired is true.
	Text string `json:"text"`

	// Source reports whether the model or the fallback produced Text.
	Source SuggestionSource `json:"source"`

	// ManualRequired is true when neither the model nor the fallback could
	// propose anything better than the rejected output.
	ManualRequired bool `json:"manual_required"`
}

// Coordinator validates feedback requests and applies them to the learning
// cache. Auto-improve requests go to the suggestion provider; every provider
// error is treated as recoverable and answered from the fallback tables
// without mutating cache state.
//
// Safe for concurrent use.
type Coordinator struct {
	cache          *learn.Cache
	suggester      llm.Provider
	suggestTimeout time.Duration
	logger         *slog.Logger
}

// CoordinatorOption configures a [Coordinator].
type CoordinatorOption func(*Coordinator)

// WithSuggester wires the model backend for auto-improve. Without it every
// auto-improve request is answered from the fallback tables.
func WithSuggester(p llm.Provider) CoordinatorOption {
	return func(c *Coordinator) { c.suggester = p }
}

// WithSuggestTimeout bounds one suggestion call. Defaults to 5s.
func WithSuggestTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.suggestTimeout = d
		}
	}
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates a coordinator over cache.
func NewCoordinator(cache *learn.Cache, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		cache:          cache,
		suggestTimeout: 5 * time.Second,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Approve records a positive verdict for mode.
func (c *Coordinator) Approve(mode tone.Mode) error {
	if !mode.IsValid() {
		return &MalformedFeedbackError{Field: "tone_mode", Reason: "unknown mode"}
	}
	c.cache.Approve(mode)
	return nil
}

// Reject records a negative verdict for mode.
func (c *Coordinator) Reject(mode tone.Mode) error {
	if !mode.IsValid() {
		return &MalformedFeedbackError{Field: "tone_mode", Reason: "unknown mode"}
	}
	c.cache.Reject(mode)
	return nil
}

// SubmitManual records a user-supplied correction of systemOutput. The
// correction feeds the exact-match store and the rule miner, and counts as a
// rejection of the original output.
func (c *Coordinator) SubmitManual(original, systemOutput, userCorrection string, mode tone.Mode) error {
	if !mode.IsValid() {
		return &MalformedFeedbackError{Field: "tone_mode", Reason: "unknown mode"}
	}
	if strings.TrimSpace(systemOutput) == "" {
		return &MalformedFeedbackError{Field: "system_output", Reason: "empty"}
	}
	correction := strings.TrimSpace(userCorrection)
	if correction == "" {
		return &MalformedFeedbackError{Field: "user_correction", Reason: "empty"}
	}
	if correction == strings.TrimSpace(systemOutput) {
		return &MalformedFeedbackError{Field: "user_correction", Reason: "identical to system output"}
	}

	c.cache.SubmitCorrection(original, systemOutput, correction, mode)
	c.cache.Reject(mode)
	return nil
}

// AutoImprove asks the suggestion model to propose a correction for a
// rejected output. Provider failure of any kind degrades to the fallback
// tables; cache state is never mutated here. The user must confirm the
// suggestion via [Coordinator.SubmitManual] before anything is learned.
func (c *Coordinator) AutoImprove(ctx context.Context, original, wrongOutput string, mode tone.Mode) (*Suggestion, error) {
	if !mode.IsValid() {
		return nil, &MalformedFeedbackError{Field: "tone_mode", Reason: "unknown mode"}
	}
	if strings.TrimSpace(wrongOutput) == "" {
		return nil, &MalformedFeedbackError{Field: "wrong_output", Reason: "empty"}
	}

	if c.suggester != nil {
		text, err := c.suggestFromModel(ctx, original, wrongOutput, mode)
		if err == nil {
			return &Suggestion{Text: text, Source: SourceModel}, nil
		}
		c.logger.Warn("suggestion model unavailable, using fallback",
			slog.String("error", err.Error()))
	}

	return fallbackSuggestion(wrongOutput, mode), nil
}

func (c *Coordinator) suggestFromModel(ctx context.Context, original, wrongOutput string, mode tone.Mode) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.suggestTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Original speech: %q\nSystem output the user rejected: %q\nTone mode: %s\n\nPropose a corrected version.",
		original, wrongOutput, mode)

	resp, err := c.suggester.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: suggestSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  0.2,
		MaxTokens:    512,
	})
	if err != nil {
		return "", fmt.Errorf("feedback: suggest: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("feedback: suggest: empty model response")
	}
	return text, nil
}

const suggestSystemPrompt = `You fix transcribed speech a user has rejected. ` +
	`Return only the corrected text, preserving the requested tone. ` +
	`Do not explain, quote, or add commentary.`
