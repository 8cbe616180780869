// Package audio provides the small set of PCM utilities the interview
// pipeline needs: WAV container encode/decode, energy measurement for
// silence gating, Opus frame decoding, and an utterance buffer for the
// live capture path.
//
// All audio in this package is 16-bit signed little-endian PCM.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// BitsPerSample is fixed at 16 for all PCM handled by this package.
const BitsPerSample = 16

// ErrNotWAV is returned by [DecodeWAV] when the input does not carry a
// RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE container")

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container. The returned byte slice is suitable for direct
// inclusion in a multipart form upload.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := BitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// IsWAV reports whether data begins with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WAVE"
}

// DecodeWAV extracts the raw PCM payload, sample rate, and channel count from
// a RIFF/WAV container. Only uncompressed 16-bit PCM is supported; compressed
// or float formats return an error. Sub-chunks other than "fmt " and "data"
// (LIST, fact, …) are skipped.
func DecodeWAV(data []byte) (pcm []byte, sampleRate, channels int, err error) {
	if !IsWAV(data) {
		return nil, 0, 0, ErrNotWAV
	}

	var (
		haveFmt bool
		bps     int
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("audio: fmt chunk too short (%d bytes)", size)
			}
			format := int(binary.LittleEndian.Uint16(data[body : body+2]))
			if format != 1 {
				return nil, 0, 0, fmt.Errorf("audio: unsupported WAV format %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bps = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if bps != BitsPerSample {
				return nil, 0, 0, fmt.Errorf("audio: unsupported bit depth %d (want %d)", bps, BitsPerSample)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, 0, 0, errors.New("audio: data chunk before fmt chunk")
			}
			return data[body : body+size], sampleRate, channels, nil
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		pos = body + size + size%2
	}

	return nil, 0, 0, errors.New("audio: no data chunk found")
}
