package resilience

import (
	"context"

	"github.com/mockview/mockview/pkg/provider/llm"
)

// LLMFallback is an llm.Provider that fails over across several LLM
// backends, each behind its own breaker. The primary is always tried
// first; fallbacks follow in the order they were added.
type LLMFallback struct {
	chain *chain[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback builds a failover provider with primary as the first
// backend in the chain.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{chain: newChain(primary, primaryName, cfg)}
}

// AddFallback appends another backend to the chain.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.chain.add(name, provider)
}

// Complete asks the first healthy backend for a completion.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return attempt(f.chain, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
