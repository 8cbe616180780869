package resilience

import (
	"context"

	"github.com/mockview/mockview/pkg/provider/stt"
)

// STTFallback is an stt.Provider that fails over across several
// speech-to-text backends, each behind its own breaker.
type STTFallback struct {
	chain *chain[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback builds a failover provider with primary as the first
// backend in the chain.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{chain: newChain(primary, primaryName, cfg)}
}

// AddFallback appends another backend to the chain.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.chain.add(name, provider)
}

// Transcribe submits the clip to the first healthy backend. When the
// primary fails or its breaker refuses the call, the same clip goes to
// the next backend in the chain.
func (f *STTFallback) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (stt.Result, error) {
	return attempt(f.chain, func(p stt.Provider) (stt.Result, error) {
		return p.Transcribe(ctx, audio, opts)
	})
}
