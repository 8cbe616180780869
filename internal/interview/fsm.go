package interview

import "fmt"

// State is the controller's lifecycle state. The recording cycle is modelled
// as three explicit sub-states (capturing, transcribing, generating) of a
// running session rather than a nested machine; StateActive is the running
// session with no turn in flight.
type State string

const (
	// StateIdle means no session has been loaded yet.
	StateIdle State = "idle"

	// StateReady means the session record is loaded but Begin has not run.
	// A ready session whose persisted remaining time is below the full
	// duration resumes rather than restarts.
	StateReady State = "ready"

	// StateActive means the session is running and no turn is in flight.
	StateActive State = "active"

	// StateCapturing means audio for the current turn is being recorded.
	StateCapturing State = "capturing"

	// StateTranscribing means the turn's clip is at the speech-to-text stage.
	StateTranscribing State = "transcribing"

	// StateGenerating means the candidate reply is being generated.
	StateGenerating State = "generating"

	// StateFinalizing means End is writing the completion record.
	StateFinalizing State = "finalizing"

	// StateEnded is terminal.
	StateEnded State = "ended"
)

// Running reports whether the session clock is counting down in s: the
// session is live, whether or not a turn is in flight.
func (s State) Running() bool {
	switch s {
	case StateActive, StateCapturing, StateTranscribing, StateGenerating:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s State) Terminal() bool { return s == StateEnded }

// Event is a controller occurrence that drives a state transition.
type Event string

const (
	EventLoad        Event = "load"         // session record loaded
	EventBegin       Event = "begin"        // Begin succeeded
	EventCapture     Event = "capture"      // StartTurn
	EventClipReady   Event = "clip-ready"   // capture finished, clip submitted
	EventTranscribed Event = "transcribed"  // question text appended
	EventTurnDone    Event = "turn-done"    // answer appended
	EventTurnFailed  Event = "turn-failed"  // any turn stage failed or cancelled
	EventEnd         Event = "end"          // End requested (manual or expiry)
	EventFinalized   Event = "finalized"    // completion write landed
	EventRollback    Event = "rollback"     // completion write failed
)

// transitions is the complete legal transition table. Anything absent is a
// controller bug surfaced as ErrInvalidTransition.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventLoad: StateReady,
	},
	StateReady: {
		EventBegin: StateActive,
	},
	StateActive: {
		EventBegin:     StateActive, // idempotent
		EventCapture:   StateCapturing,
		EventClipReady: StateTranscribing, // one-shot clip upload skips capture
		EventEnd:       StateFinalizing,
	},
	StateCapturing: {
		EventClipReady:  StateTranscribing,
		EventTurnFailed: StateActive,
		EventEnd:        StateFinalizing,
	},
	StateTranscribing: {
		EventTranscribed: StateGenerating,
		EventTurnFailed:  StateActive,
		EventEnd:         StateFinalizing,
	},
	StateGenerating: {
		EventTurnDone:   StateActive,
		EventTurnFailed: StateActive,
		EventEnd:        StateFinalizing,
	},
	StateFinalizing: {
		EventFinalized: StateEnded,
		EventRollback:  StateActive,
	},
	StateEnded: {},
}

// Transition returns the state reached by applying event in state, or
// ErrInvalidTransition when the pair is not in the table.
func Transition(state State, event Event) (State, error) {
	next, ok := transitions[state][event]
	if !ok {
		return state, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, state)
	}
	return next, nil
}
