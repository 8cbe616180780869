package interview

import (
	"errors"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		event Event
		want  State
		ok    bool
	}{
		{StateIdle, EventLoad, StateReady, true},
		{StateReady, EventBegin, StateActive, true},
		{StateActive, EventBegin, StateActive, true},
		{StateActive, EventCapture, StateCapturing, true},
		{StateActive, EventClipReady, StateTranscribing, true},
		{StateCapturing, EventClipReady, StateTranscribing, true},
		{StateCapturing, EventTurnFailed, StateActive, true},
		{StateTranscribing, EventTranscribed, StateGenerating, true},
		{StateTranscribing, EventTurnFailed, StateActive, true},
		{StateGenerating, EventTurnDone, StateActive, true},
		{StateGenerating, EventTurnFailed, StateActive, true},
		{StateActive, EventEnd, StateFinalizing, true},
		{StateGenerating, EventEnd, StateFinalizing, true},
		{StateFinalizing, EventFinalized, StateEnded, true},
		{StateFinalizing, EventRollback, StateActive, true},

		// Illegal pairs.
		{StateIdle, EventBegin, StateIdle, false},
		{StateReady, EventCapture, StateReady, false},
		{StateReady, EventEnd, StateReady, false},
		{StateEnded, EventBegin, StateEnded, false},
		{StateEnded, EventEnd, StateEnded, false},
		{StateActive, EventFinalized, StateActive, false},
	}

	for _, tt := range tests {
		got, err := Transition(tt.state, tt.event)
		if tt.ok {
			if err != nil {
				t.Errorf("Transition(%s, %s) error: %v", tt.state, tt.event, err)
			}
			if got != tt.want {
				t.Errorf("Transition(%s, %s) = %s, want %s", tt.state, tt.event, got, tt.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Transition(%s, %s) err = %v, want ErrInvalidTransition", tt.state, tt.event, err)
		}
	}
}

func TestStateRunning(t *testing.T) {
	t.Parallel()

	running := map[State]bool{
		StateIdle:         false,
		StateReady:        false,
		StateActive:       true,
		StateCapturing:    true,
		StateTranscribing: true,
		StateGenerating:   true,
		StateFinalizing:   false,
		StateEnded:        false,
	}
	for s, want := range running {
		if s.Running() != want {
			t.Errorf("%s.Running() = %v, want %v", s, s.Running(), want)
		}
	}
	if !StateEnded.Terminal() || StateActive.Terminal() {
		t.Error("Terminal() misclassifies states")
	}
}
