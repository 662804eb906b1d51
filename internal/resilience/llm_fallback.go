package resilience

import (
	"context"

	"github.com/clarivox/clarivox/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with automatic failover across
// multiple model backends. Each backend has its own breaker; when the
// primary fails or its breaker is open, the next healthy backend is tried.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface check.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] preferring primary.
func NewLLMFallback(primaryName string, primary llm.Provider, breakerOpts ...BreakerOption) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primaryName, primary, breakerOpts...),
	}
}

// AddFallback registers an additional backend, tried after the primary.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.Add(name, provider)
}

// Complete sends the request to the first healthy backend.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return DoWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
