package interview

import "errors"

// Error taxonomy for the session controller. Every public operation settles
// to a well-defined state and one of these sentinels (possibly wrapped with
// call-site detail), so transport layers can map errors without string
// matching.
var (
	// ErrPermissionDenied reports that audio capture was refused (the client
	// could not access a microphone). Recoverable; no ledger entry is written.
	ErrPermissionDenied = errors.New("interview: audio capture permission denied")

	// ErrTranscriptionFailed reports that the speech-to-text stage failed or
	// produced no usable text. The turn is aborted entirely: no question entry
	// is written.
	ErrTranscriptionFailed = errors.New("interview: transcription failed")

	// ErrGenerationFailed reports that reply generation failed after the
	// question was already appended. The question entry stays.
	ErrGenerationFailed = errors.New("interview: reply generation failed")

	// ErrEntitlementExhausted reports that the user has no interview credits
	// available. The session is left untouched.
	ErrEntitlementExhausted = errors.New("interview: no interview credits available")

	// ErrPersistenceFailed reports a non-fatal durable-write failure: the
	// session state is correct in memory but the store write did not land.
	ErrPersistenceFailed = errors.New("interview: persistence failed")

	// ErrFinalizationFailed reports that the atomic completion write failed.
	// The session rolls back to active and End may be retried.
	ErrFinalizationFailed = errors.New("interview: finalization failed")

	// ErrSessionEnded reports an operation on a session that already completed.
	ErrSessionEnded = errors.New("interview: session has ended")

	// ErrSessionNotActive reports an operation that requires a running session.
	ErrSessionNotActive = errors.New("interview: session is not active")

	// ErrTurnInFlight reports a second turn attempted while one is running.
	ErrTurnInFlight = errors.New("interview: a turn is already in flight")

	// ErrNoTurn reports a turn operation with no capture in progress.
	ErrNoTurn = errors.New("interview: no turn in progress")

	// ErrInvalidTransition reports a state-machine violation. Seeing it means
	// a controller bug, not a caller mistake.
	ErrInvalidTransition = errors.New("interview: invalid state transition")
)
