package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or
// has an open breaker.
var ErrAllFailed = errors.New("resilience: all backends failed")

type groupEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// FallbackGroup wraps a primary and zero or more fallback instances of the
// same backend type. Each entry gets its own [Breaker]; entries are tried in
// registration order, skipping open breakers.
//
// Safe for concurrent use after registration is complete.
type FallbackGroup[T any] struct {
	entries     []groupEntry[T]
	breakerOpts []BreakerOption
	logger      *slog.Logger
}

// NewFallbackGroup creates a group with primary as the first entry.
// breakerOpts apply to every entry's breaker.
func NewFallbackGroup[T any](primaryName string, primary T, breakerOpts ...BreakerOption) *FallbackGroup[T] {
	g := &FallbackGroup[T]{
		breakerOpts: breakerOpts,
		logger:      slog.Default(),
	}
	g.Add(primaryName, primary)
	return g
}

// Add registers a fallback backend, tried after all earlier entries.
func (g *FallbackGroup[T]) Add(name string, value T) {
	g.entries = append(g.entries, groupEntry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(name, g.breakerOpts...),
	})
}

// Do tries fn against each entry in order until one succeeds. Returns
// [ErrAllFailed] wrapping the last error when all entries fail.
func (g *FallbackGroup[T]) Do(fn func(T) error) error {
	var lastErr error
	for i := range g.entries {
		entry := &g.entries[i]
		err := entry.breaker.Do(func() error {
			return fn(entry.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			g.logger.Debug("skipping backend, breaker open", slog.String("backend", entry.name))
		} else {
			g.logger.Warn("backend failed, trying next",
				slog.String("backend", entry.name),
				slog.String("error", err.Error()))
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// DoWithResult tries fn against each entry until one succeeds, returning its
// result. A package-level function because Go methods cannot introduce type
// parameters.
func DoWithResult[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		result R
		zero   R
	)
	err := g.Do(func(v T) error {
		var innerErr error
		result, innerErr = fn(v)
		return innerErr
	})
	if err != nil {
		return zero, err
	}
	return result, nil
}
