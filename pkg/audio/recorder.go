package audio

// DefaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
// units) below which audio is considered silent. The maximum possible value
// for 16-bit audio is 32 767; 300 corresponds to near-silence.
const DefaultRMSThreshold = 300.0

// Recorder accumulates PCM chunks for a single utterance. Leading silence is
// discarded so that a capture that starts well before the speaker does not
// pad the clip; everything after the first speech chunk is kept, including
// trailing silence (the transcription engine handles it fine).
//
// Recorder is not safe for concurrent use; the capture connection that owns
// it writes from a single goroutine.
type Recorder struct {
	sampleRate int
	channels   int
	threshold  float64

	buf       []byte
	hadSpeech bool
}

// NewRecorder creates a Recorder for the given stream parameters. Zero
// values select the live-capture defaults (48 kHz mono, RMS threshold 300).
func NewRecorder(sampleRate, channels int, rmsThreshold float64) *Recorder {
	if sampleRate <= 0 {
		sampleRate = CaptureSampleRate
	}
	if channels <= 0 {
		channels = CaptureChannels
	}
	if rmsThreshold <= 0 {
		rmsThreshold = DefaultRMSThreshold
	}
	return &Recorder{
		sampleRate: sampleRate,
		channels:   channels,
		threshold:  rmsThreshold,
	}
}

// Write appends a PCM chunk to the current utterance. Chunks before the
// first speech chunk are discarded.
func (r *Recorder) Write(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	if !r.hadSpeech {
		if RMS(pcm) < r.threshold {
			return
		}
		r.hadSpeech = true
	}
	r.buf = append(r.buf, pcm...)
}

// HasSpeech reports whether any speech chunk has been buffered.
func (r *Recorder) HasSpeech() bool { return r.hadSpeech }

// Len returns the number of buffered PCM bytes.
func (r *Recorder) Len() int { return len(r.buf) }

// DurationMs returns the duration of the buffered audio in milliseconds.
func (r *Recorder) DurationMs() int {
	return DurationMs(r.buf, r.sampleRate, r.channels)
}

// WAV returns the buffered utterance wrapped in a RIFF/WAV container and
// resets the recorder for the next utterance. Returns nil when no speech
// was buffered.
func (r *Recorder) WAV() []byte {
	if !r.hadSpeech || len(r.buf) == 0 {
		r.Reset()
		return nil
	}
	wav := EncodeWAV(r.buf, r.sampleRate, r.channels)
	r.Reset()
	return wav
}

// Reset discards all buffered audio.
func (r *Recorder) Reset() {
	r.buf = nil
	r.hadSpeech = false
}
