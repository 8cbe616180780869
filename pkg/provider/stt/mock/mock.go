// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to feed controlled transcripts without a live
// transcription backend and to inspect which clips were submitted.
//
// Example:
//
//	p := &mock.Provider{Result: stt.Result{Text: "Tell me about yourself."}}
//	res, err := p.Transcribe(ctx, clip, stt.Options{})
package mock

import (
	"context"
	"sync"

	"github.com/mockview/mockview/pkg/provider/stt"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Audio is the clip passed to Transcribe.
	Audio []byte
	// Opts is the Options value passed to Transcribe.
	Opts stt.Options
}

// Provider is a mock implementation of stt.Provider. Zero values cause
// Transcribe to return an empty Result and nil error. Set Err to inject
// failures, or Fn for per-call behaviour.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Fn is nil.
	Result stt.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Fn, if non-nil, replaces the canned Result/Err behaviour entirely.
	Fn func(ctx context.Context, audio []byte, opts stt.Options) (stt.Result, error)

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns the configured response.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (stt.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, TranscribeCall{Audio: audio, Opts: opts})
	fn := p.Fn
	res, err := p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, audio, opts)
	}
	return res, err
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
