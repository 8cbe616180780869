// Package whisper provides local whisper.cpp-backed STT providers.
//
// Two variants are available: Provider talks to a running whisper-server
// binary (which exposes a REST API at POST /inference), and NativeProvider
// calls the whisper.cpp CGO bindings in-process. Both transcribe one complete
// audio clip per call.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	)
//	res, err := p.Transcribe(ctx, wavBytes, stt.Options{MIMEType: "audio/wav"})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mockview/mockview/pkg/audio"
	"github.com/mockview/mockview/pkg/provider/stt"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 60 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// ErrUnsupportedAudio is returned when a clip is neither a WAV container nor
// raw PCM with a declared sample rate. whisper-server only accepts WAV, and
// the provider will not guess at headerless audio parameters.
var ErrUnsupportedAudio = errors.New("whisper: unsupported audio format")

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with — this is the default.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the BCP-47 language code sent to the whisper.cpp server
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTimeout sets the HTTP timeout for a single inference request. Clips are
// bounded by the capture layer, so the default of 60s is generous.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
// It is safe for concurrent use; each Transcribe call is an independent
// request.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe submits one clip to the server and returns the transcript.
// WAV input is forwarded as-is; raw PCM is wrapped in a WAV container using
// opts.SampleRate and opts.Channels. Anything else yields ErrUnsupportedAudio.
func (p *Provider) Transcribe(ctx context.Context, clip []byte, opts stt.Options) (stt.Result, error) {
	wav, err := toWAV(clip, opts)
	if err != nil {
		return stt.Result{}, err
	}

	lang := opts.Language
	if lang == "" {
		lang = p.language
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: write wav data: %w", err)
	}
	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return stt.Result{}, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return stt.Result{}, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stt.Result{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return stt.Result{Text: result.Text, Language: lang}, nil
}

// toWAV normalises a clip to a WAV container for upload.
func toWAV(clip []byte, opts stt.Options) ([]byte, error) {
	if audio.IsWAV(clip) {
		return clip, nil
	}
	switch opts.MIMEType {
	case "", "audio/pcm", "audio/l16":
		if opts.SampleRate <= 0 {
			return nil, fmt.Errorf("%w: raw PCM without a sample rate", ErrUnsupportedAudio)
		}
		ch := opts.Channels
		if ch <= 0 {
			ch = 1
		}
		return audio.EncodeWAV(clip, opts.SampleRate, ch), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAudio, opts.MIMEType)
	}
}
