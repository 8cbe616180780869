package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// Browser microphone capture streams 48 kHz mono Opus at 20 ms frame size.
const (
	// CaptureSampleRate is the sample rate of decoded live-capture audio.
	CaptureSampleRate = 48000

	// CaptureChannels is the channel count of decoded live-capture audio.
	CaptureChannels = 1

	captureFrameMs = 20

	// captureFrameSize is the number of samples per channel per 20 ms frame.
	captureFrameSize = CaptureSampleRate * captureFrameMs / 1000 // 960
)

// OpusDecoder decodes a stream of Opus packets from a single capture
// connection into 16-bit little-endian PCM. Each connection needs its own
// decoder to maintain codec state correctly across consecutive frames.
// OpusDecoder is not safe for concurrent use.
type OpusDecoder struct {
	dec       *gopus.Decoder
	frameSize int
}

// NewOpusDecoder creates an Opus decoder for the given stream parameters.
// Zero values select the live-capture defaults (48 kHz mono).
func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	if sampleRate <= 0 {
		sampleRate = CaptureSampleRate
	}
	if channels <= 0 {
		channels = CaptureChannels
	}
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{
		dec:       dec,
		frameSize: sampleRate * captureFrameMs / 1000,
	}, nil
}

// Decode decodes a single Opus packet into interleaved PCM int16 samples and
// returns the result as little-endian bytes.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(packet, d.frameSize, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return int16sToBytes(pcm), nil
}
