// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a remote or local transcription engine (e.g., the
// OpenAI audio API, a whisper-server instance, or in-process whisper.cpp) and
// exposes a uniform batch interface: the caller submits one complete audio
// clip per interview turn and awaits the transcript. There is no streaming —
// the recording contract produces one artifact per question, so partial
// transcripts have nothing to drive.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"time"
)

// Options carries per-request hints for a transcription call. The zero value
// is valid; providers fall back to their configured defaults.
type Options struct {
	// MIMEType describes the audio container (e.g., "audio/wav", "audio/webm").
	// Providers that only accept specific containers return an error for
	// unsupported types rather than guessing.
	MIMEType string

	// Language is the BCP-47 language hint (e.g., "en", "es"). Empty means
	// provider default or auto-detection.
	Language string

	// Prompt is optional context text that biases recognition towards expected
	// vocabulary (company names, role titles). Providers without prompt
	// support ignore it.
	Prompt string

	// SampleRate and Channels describe raw PCM input for providers that accept
	// headerless audio. Ignored when MIMEType identifies a self-describing
	// container.
	SampleRate int
	Channels   int
}

// Result is a completed transcription.
type Result struct {
	// Text is the transcribed speech. May be empty when the clip contained no
	// recognisable speech; callers decide whether that is an error.
	Text string

	// Language is the detected or assumed language, when the backend reports it.
	Language string

	// Duration is the audio duration, when the backend reports it.
	Duration time.Duration
}

// Provider is the abstraction over any batch transcription backend.
//
// Transcribe must respect context cancellation and return promptly when ctx
// is done. Implementations must be safe for concurrent use from multiple
// goroutines.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, opts Options) (Result, error)
}
