package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// pcmSine generates n samples of a loud square-ish waveform, useful as
// clearly-above-threshold speech audio in tests.
func pcmSine(n int, amplitude int16) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestEncodeDecodeWAVRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		samples    int
		sampleRate int
		channels   int
	}{
		{"mono 16k", 1600, 16000, 1},
		{"stereo 48k", 960, 48000, 2},
		{"empty payload", 0, 16000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := pcmSine(tt.samples, 8000)
			wav := EncodeWAV(pcm, tt.sampleRate, tt.channels)

			if !IsWAV(wav) {
				t.Fatal("EncodeWAV output not recognised by IsWAV")
			}
			if len(wav) != 44+len(pcm) {
				t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
			}

			got, rate, ch, err := DecodeWAV(wav)
			if err != nil {
				t.Fatalf("DecodeWAV: %v", err)
			}
			if rate != tt.sampleRate || ch != tt.channels {
				t.Errorf("decoded rate/channels = %d/%d, want %d/%d", rate, ch, tt.sampleRate, tt.channels)
			}
			if !bytes.Equal(got, pcm) {
				t.Error("decoded PCM differs from input")
			}
		})
	}
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	pcm := pcmSine(100, 1000)
	wav := EncodeWAV(pcm, 16000, 1)

	// Splice a LIST chunk between fmt and data.
	list := make([]byte, 8+4)
	copy(list[0:4], "LIST")
	binary.LittleEndian.PutUint32(list[4:8], 4)
	copy(list[8:], "INFO")

	spliced := append([]byte{}, wav[:36]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, wav[36:]...)
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	got, rate, ch, err := DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 || ch != 1 {
		t.Errorf("rate/channels = %d/%d, want 16000/1", rate, ch)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("decoded PCM differs from input")
	}
}

func TestDecodeWAVRejectsNonWAV(t *testing.T) {
	_, _, _, err := DecodeWAV([]byte("OggS this is not a wav file"))
	if !errors.Is(err, ErrNotWAV) {
		t.Fatalf("err = %v, want ErrNotWAV", err)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}

	silence := make([]byte, 320)
	if got := RMS(silence); got != 0 {
		t.Errorf("RMS(silence) = %v, want 0", got)
	}

	loud := pcmSine(160, 8000)
	if got := RMS(loud); got < 7999 || got > 8001 {
		t.Errorf("RMS(square wave 8000) = %v, want ~8000", got)
	}
}

func TestDurationMs(t *testing.T) {
	// 16 kHz mono: 32 bytes per ms.
	chunk := make([]byte, 320)
	if got := DurationMs(chunk, 16000, 1); got != 10 {
		t.Errorf("DurationMs = %d, want 10", got)
	}
	if got := DurationMs(chunk, 0, 1); got != 0 {
		t.Errorf("DurationMs with zero rate = %d, want 0", got)
	}
}
