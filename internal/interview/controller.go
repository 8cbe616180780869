// Package interview implements the session engine: a state-machined
// controller that runs one timed mock-interview session end to end —
// recorded turns through transcription and reply generation, the in-memory
// chat ledger, the countdown with its latched warnings, and the atomic
// finalization that consumes an interview credit.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mockview/mockview/internal/entitlement"
	"github.com/mockview/mockview/internal/observe"
	"github.com/mockview/mockview/internal/store"
	"github.com/mockview/mockview/pkg/provider/stt"
	"github.com/mockview/mockview/pkg/types"
)

const (
	defaultPersistInterval = 30 * time.Second
	defaultHistoryWindow   = 10
)

// defaultWarnAt are the session warning thresholds: five minutes and one
// minute remaining.
var defaultWarnAt = []int{300, 60}

// Gate is the entitlement check consulted by Begin. Check returns an error
// wrapping entitlement.ErrExhausted when the user has no credits.
type Gate interface {
	Check(ctx context.Context, userID string) (store.Entitlement, error)
}

// GenerationRequest carries everything the reply generator needs for one
// exchange. Question holds the new input; History is the preceding window
// and never includes it.
type GenerationRequest struct {
	SessionID string
	Company   string
	Role      string
	CVSummary string

	Pipeline types.Pipeline
	Question string
	History  []types.Entry
}

// Generator produces the candidate's reply to an interviewer question, or
// the assistant reply in the freeform review chat.
type Generator interface {
	Reply(ctx context.Context, req GenerationRequest) (string, error)
}

// Persister is the slice of the durable store the controller writes to.
type Persister interface {
	store.Sessions
	store.ChatLog
}

// Corrector fixes transcription errors against session-known proper nouns
// (company name, role title) before text enters the ledger.
type Corrector interface {
	Correct(text string, entities []string) string
}

// NoticeKind discriminates controller notifications.
type NoticeKind string

const (
	// NoticeWarning fires when the countdown crosses a warning threshold.
	// Seconds carries the threshold.
	NoticeWarning NoticeKind = "warning"

	// NoticeResumed fires when Begin continues a partially consumed session.
	// Seconds carries the remaining time.
	NoticeResumed NoticeKind = "resumed"

	// NoticeEnded fires once when the session reaches its terminal state.
	NoticeEnded NoticeKind = "ended"
)

// Notice is a controller event pushed to the OnEvent callback.
type Notice struct {
	Kind      NoticeKind
	SessionID string
	Seconds   int
}

// TurnResult is the outcome of a completed recorded turn.
type TurnResult struct {
	Question types.Entry
	Answer   types.Entry
}

// Config assembles a Controller. Session and Durable come from the store;
// Gate, STT, Generator, and Store are required collaborators.
type Config struct {
	Session store.Session

	// Durable is the session's already-persisted ledger, reconciled into the
	// in-memory ledger on construction.
	Durable []types.Entry

	Gate      Gate
	STT       stt.Provider
	Generator Generator
	Store     Persister
	Corrector Corrector

	Logger  *slog.Logger
	Metrics *observe.Metrics

	// WarnAt are warning thresholds in seconds remaining. Defaults to 300/60.
	WarnAt []int

	// TickInterval is the countdown cadence. Zero disables the internal
	// clock; callers (tests) drive Tick themselves.
	TickInterval time.Duration

	// PersistInterval is the remaining-time write-through cadence. Defaults
	// to 30 s.
	PersistInterval time.Duration

	// HistoryWindow is how many ledger entries accompany each generation
	// request. Defaults to 10.
	HistoryWindow int

	// Language is the transcription language hint.
	Language string

	// OnEvent, when set, receives warnings, resume and end notices. Called
	// from controller goroutines; must not block.
	OnEvent func(Notice)
}

// Controller runs one interview session. All methods are safe for
// concurrent use; at most one recorded turn is in flight at a time.
type Controller struct {
	gate      Gate
	sttP      stt.Provider
	generator Generator
	store     Persister
	corrector Corrector
	logger    *slog.Logger
	metrics   *observe.Metrics

	warnAt          []int
	tickInterval    time.Duration
	persistInterval time.Duration
	historyWindow   int
	language        string
	onEvent         func(Notice)

	mu       sync.Mutex
	state    State
	session  store.Session
	ledger   *Ledger
	timer    *Timer
	turnDone chan struct{} // non-nil while a turn is in flight
	counted  bool          // active-sessions gauge incremented

	stopLoop context.CancelFunc
	loopDone chan struct{}
}

// NewController builds a controller for the given session in the ready
// state (or ended, when the session record is already completed).
func NewController(cfg Config) (*Controller, error) {
	switch {
	case cfg.Session.ID == "":
		return nil, errors.New("interview: config: session ID is required")
	case cfg.Gate == nil:
		return nil, errors.New("interview: config: entitlement gate is required")
	case cfg.STT == nil:
		return nil, errors.New("interview: config: stt provider is required")
	case cfg.Generator == nil:
		return nil, errors.New("interview: config: generator is required")
	case cfg.Store == nil:
		return nil, errors.New("interview: config: store is required")
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if len(cfg.WarnAt) == 0 {
		cfg.WarnAt = defaultWarnAt
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = defaultPersistInterval
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}

	c := &Controller{
		gate:            cfg.Gate,
		sttP:            cfg.STT,
		generator:       cfg.Generator,
		store:           cfg.Store,
		corrector:       cfg.Corrector,
		logger:          cfg.Logger.With("session_id", cfg.Session.ID),
		metrics:         cfg.Metrics,
		warnAt:          cfg.WarnAt,
		tickInterval:    cfg.TickInterval,
		persistInterval: cfg.PersistInterval,
		historyWindow:   cfg.HistoryWindow,
		language:        cfg.Language,
		onEvent:         cfg.OnEvent,
		state:           StateReady,
		session:         cfg.Session,
		ledger:          NewLedger(),
		timer:           NewTimer(cfg.Session.RemainingSeconds, cfg.WarnAt),
	}
	c.ledger.Reconcile(cfg.Durable)

	if cfg.Session.Status == store.StatusCompleted {
		c.state = StateEnded
	}
	return c, nil
}

// Begin starts or resumes the session. It is the single entitlement
// checkpoint: a user with no available credits is refused before any state
// changes. Idempotent while the session is running; refused once the time
// is consumed or the session completed.
func (c *Controller) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state.Terminal():
		return ErrSessionEnded
	case c.state.Running():
		return nil
	case c.state != StateReady:
		return fmt.Errorf("%w: cannot begin while %s", ErrSessionNotActive, c.state)
	}
	if c.timer.Expired() {
		return fmt.Errorf("%w: no time remaining", ErrSessionEnded)
	}

	if _, err := c.gate.Check(ctx, c.session.UserID); err != nil {
		if errors.Is(err, entitlement.ErrExhausted) {
			return fmt.Errorf("%w: %v", ErrEntitlementExhausted, err)
		}
		return fmt.Errorf("%w: entitlement check: %v", ErrPersistenceFailed, err)
	}

	if err := c.store.MarkActive(ctx, c.session.ID); err != nil {
		if errors.Is(err, store.ErrAlreadyCompleted) {
			c.state = StateEnded
			return ErrSessionEnded
		}
		return fmt.Errorf("%w: activate session: %v", ErrPersistenceFailed, err)
	}

	next, err := Transition(c.state, EventBegin)
	if err != nil {
		return err
	}
	c.state = next
	c.session.Status = store.StatusActive

	if !c.counted {
		c.counted = true
		c.metrics.ActiveSessions.Add(ctx, 1)
	}

	resumed := c.timer.Remaining() < c.session.DurationSeconds
	if resumed {
		c.logger.Info("resuming session", "remaining_seconds", c.timer.Remaining())
		c.notify(Notice{Kind: NoticeResumed, SessionID: c.session.ID, Seconds: c.timer.Remaining()})
	} else {
		c.logger.Info("session started", "duration_seconds", c.session.DurationSeconds)
	}

	if c.tickInterval > 0 {
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.stopLoop = cancel
		c.loopDone = make(chan struct{})
		go c.run(loopCtx, c.loopDone)
	}
	return nil
}

// StartTurn begins capturing audio for a new turn. The clip is delivered
// later via FinishTurn; CancelTurn abandons the capture. At most one turn
// may be in flight.
func (c *Controller) StartTurn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() || c.state == StateFinalizing {
		return ErrSessionEnded
	}
	if !c.state.Running() {
		return ErrSessionNotActive
	}
	if c.turnDone != nil {
		return ErrTurnInFlight
	}

	next, err := Transition(c.state, EventCapture)
	if err != nil {
		return err
	}
	c.state = next
	c.turnDone = make(chan struct{})
	return nil
}

// CancelTurn abandons an in-progress capture, for example when the client
// reports a microphone permission failure. No ledger entry is produced.
func (c *Controller) CancelTurn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCapturing {
		return ErrNoTurn
	}
	next, err := Transition(c.state, EventTurnFailed)
	if err != nil {
		return err
	}
	c.state = next
	close(c.turnDone)
	c.turnDone = nil
	return nil
}

// FinishTurn runs the recorded clip through the full turn pipeline:
// transcribe, correct, append the interviewer question, generate the
// candidate reply, append it. A turn may also be submitted as a one-shot
// clip without a prior StartTurn.
//
// The turn is all-or-nothing at the transcription stage: a failed or empty
// transcription writes nothing. A generation failure keeps the already
// appended question and returns ErrGenerationFailed.
func (c *Controller) FinishTurn(ctx context.Context, clip []byte, mimeType string) (TurnResult, error) {
	c.mu.Lock()
	if c.state.Terminal() || c.state == StateFinalizing {
		c.mu.Unlock()
		return TurnResult{}, ErrSessionEnded
	}
	if !c.state.Running() {
		c.mu.Unlock()
		return TurnResult{}, ErrSessionNotActive
	}
	if c.turnDone != nil && c.state != StateCapturing {
		c.mu.Unlock()
		return TurnResult{}, ErrTurnInFlight
	}

	next, err := Transition(c.state, EventClipReady)
	if err != nil {
		c.mu.Unlock()
		return TurnResult{}, err
	}
	c.state = next
	if c.turnDone == nil {
		c.turnDone = make(chan struct{})
	}
	req := c.generationRequestLocked(types.PipelineLiveQA)
	language := c.language
	c.mu.Unlock()

	turnStart := time.Now()

	// Stage 1: transcription. Aborting here leaves no trace in the ledger.
	sttStart := time.Now()
	res, err := c.sttP.Transcribe(ctx, clip, stt.Options{
		MIMEType: mimeType,
		Language: language,
		Prompt:   req.Company + " " + req.Role,
	})
	c.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	if err != nil {
		c.settleTurn(ctx, EventTurnFailed, types.PipelineLiveQA, "transcription_failed")
		return TurnResult{}, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	text := res.Text
	if c.corrector != nil {
		text = c.corrector.Correct(text, []string{req.Company, req.Role})
	}

	question, err := c.appendEntry(types.RoleInterviewer, text)
	if err != nil {
		c.settleTurn(ctx, EventTurnFailed, types.PipelineLiveQA, "empty_transcript")
		return TurnResult{}, fmt.Errorf("%w: no speech recognised", ErrTranscriptionFailed)
	}

	c.mu.Lock()
	if next, err := Transition(c.state, EventTranscribed); err == nil {
		c.state = next
	}
	c.mu.Unlock()

	// Stage 2: reply generation. The question survives a failure here.
	req.Question = question.Text
	llmStart := time.Now()
	reply, err := c.generator.Reply(ctx, req)
	c.metrics.LLMDuration.Record(ctx, time.Since(llmStart).Seconds())
	if err != nil {
		c.settleTurn(ctx, EventTurnFailed, types.PipelineLiveQA, "generation_failed")
		return TurnResult{Question: question}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	answer, err := c.appendEntry(types.RoleCandidate, reply)
	if err != nil {
		c.settleTurn(ctx, EventTurnFailed, types.PipelineLiveQA, "empty_reply")
		return TurnResult{Question: question}, fmt.Errorf("%w: empty reply", ErrGenerationFailed)
	}

	c.settleTurn(ctx, EventTurnDone, types.PipelineLiveQA, "ok")
	c.metrics.TurnDuration.Record(ctx, time.Since(turnStart).Seconds())
	return TurnResult{Question: question, Answer: answer}, nil
}

// Ask handles a typed message on the freeform review pipeline. It works
// both while the session runs and after it completed — post-completion
// messages write through to the durable ledger immediately instead of
// waiting for a flush that will never come.
func (c *Controller) Ask(ctx context.Context, text string) (types.Entry, error) {
	c.mu.Lock()
	if c.state == StateFinalizing {
		c.mu.Unlock()
		return types.Entry{}, fmt.Errorf("%w: session is finalizing", ErrSessionNotActive)
	}
	if !c.state.Running() && !c.state.Terminal() {
		c.mu.Unlock()
		return types.Entry{}, ErrSessionNotActive
	}
	ended := c.state.Terminal()
	req := c.generationRequestLocked(types.PipelineFreeform)
	c.mu.Unlock()

	question, err := c.ledger.Append(types.RoleUser, text)
	if err != nil {
		return types.Entry{}, fmt.Errorf("interview: ask: %w", err)
	}
	if ended {
		c.writeThrough(ctx, question)
	}

	req.Question = question.Text
	llmStart := time.Now()
	reply, err := c.generator.Reply(ctx, req)
	c.metrics.LLMDuration.Record(ctx, time.Since(llmStart).Seconds())
	if err != nil {
		c.metrics.RecordTurn(ctx, string(types.PipelineFreeform), "generation_failed")
		return types.Entry{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	answer, err := c.ledger.Append(types.RoleAI, reply)
	if err != nil {
		return types.Entry{}, fmt.Errorf("%w: empty reply", ErrGenerationFailed)
	}
	if ended {
		c.writeThrough(ctx, answer)
	}
	c.metrics.RecordTurn(ctx, string(types.PipelineFreeform), "ok")
	return answer, nil
}

// Tick consumes one second of session time. It fires latched warnings and,
// on expiry, runs the finalization path exactly once; no tick is consumed
// after the countdown reaches zero. Returns whether the session ended.
func (c *Controller) Tick(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if !c.state.Running() {
		c.mu.Unlock()
		return c.state.Terminal(), nil
	}
	warn, expired := c.timer.Tick()
	c.session.RemainingSeconds = c.timer.Remaining()
	id := c.session.ID
	c.mu.Unlock()

	if warn > 0 {
		c.logger.Info("session time warning", "seconds_remaining", warn)
		c.notify(Notice{Kind: NoticeWarning, SessionID: id, Seconds: warn})
	}
	if !expired {
		return false, nil
	}
	return true, c.End(ctx, false)
}

// End finalizes the session. Safe to call repeatedly and concurrently —
// only the first caller performs the completion write, later calls are
// no-ops. A turn that already submitted its clip is allowed to settle
// first, so no ledger entry is dropped; a capture still waiting for its
// clip is abandoned instead, since there is nothing to lose and waiting
// would block an expiry-driven end on the client.
//
// Finalization is a single logical unit: the completion write (status,
// final remaining time, credit consumption) is atomic; the ledger flush
// follows and its failure is non-fatal — the session stays completed and
// the loss is reported via ErrPersistenceFailed. A failed completion write
// rolls back to active and End may be retried.
func (c *Controller) End(ctx context.Context, manual bool) error {
	for {
		c.mu.Lock()
		if c.state.Terminal() {
			c.mu.Unlock()
			return nil
		}
		if c.state == StateReady {
			c.mu.Unlock()
			return ErrSessionNotActive
		}
		if c.state == StateCapturing {
			// No clip yet, so nothing can be dropped: abandon the capture.
			if c.turnDone != nil {
				close(c.turnDone)
				c.turnDone = nil
			}
			break
		}
		if c.turnDone == nil {
			break
		}
		done := c.turnDone
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer c.mu.Unlock()

	next, err := Transition(c.state, EventEnd)
	if err != nil {
		return err
	}
	c.state = next
	c.stopLoopLocked()

	// Stopping the loop cancelled the clock context — and on the expiry
	// path this very call arrived on it — so the completion write and the
	// flush run detached from ctx's cancellation.
	wctx := context.WithoutCancel(ctx)

	remaining := c.timer.Remaining()
	err = c.store.Finalize(wctx, c.session.ID, remaining)
	if err != nil && !errors.Is(err, store.ErrAlreadyCompleted) {
		c.state, _ = Transition(c.state, EventRollback)
		c.logger.Error("session finalization failed, rolled back to active", "error", err)
		c.restartLoopLocked()
		return fmt.Errorf("%w: %v", ErrFinalizationFailed, err)
	}

	c.state, _ = Transition(c.state, EventFinalized)
	c.session.Status = store.StatusCompleted
	c.session.RemainingSeconds = remaining

	cause := "expired"
	if manual {
		cause = "manual"
	}
	c.metrics.RecordSessionFinalized(ctx, cause)
	if c.counted {
		c.counted = false
		c.metrics.ActiveSessions.Add(ctx, -1)
	}
	c.logger.Info("session finalized", "cause", cause, "remaining_seconds", remaining)
	c.notify(Notice{Kind: NoticeEnded, SessionID: c.session.ID, Seconds: remaining})

	// Ledger flush after the completion write. Status is authoritative over
	// ledger completeness: a partial flush degrades the transcript but never
	// reopens the session.
	if flushErr := c.flushLocked(wctx); flushErr != nil {
		c.logger.Warn("ledger flush failed after finalization", "error", flushErr)
		return fmt.Errorf("%w: ledger flush: %v", ErrPersistenceFailed, flushErr)
	}
	return nil
}

// Suspend stops the controller's clock and persists the remaining time
// without completing the session, for graceful shutdown. The session can be
// resumed later by a fresh controller.
func (c *Controller) Suspend(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLoopLocked()
	if !c.state.Running() {
		return nil
	}
	if c.counted {
		c.counted = false
		c.metrics.ActiveSessions.Add(ctx, -1)
	}
	if err := c.store.SaveRemaining(ctx, c.session.ID, c.timer.Remaining()); err != nil {
		return fmt.Errorf("%w: save remaining: %v", ErrPersistenceFailed, err)
	}
	c.logger.Info("session suspended", "remaining_seconds", c.timer.Remaining())
	return nil
}

// Status returns the controller state and whether the session is running.
// This is the narrow read-only surface presentation layers consume.
func (c *Controller) Status() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.state.Running()
}

// Snapshot returns a copy of the session record (with the live remaining
// time) and the full ledger.
func (c *Controller) Snapshot() (store.Session, []types.Entry) {
	c.mu.Lock()
	sess := c.session
	sess.RemainingSeconds = c.timer.Remaining()
	c.mu.Unlock()
	return sess, c.ledger.Entries()
}

// Ledger exposes the session's chat ledger.
func (c *Controller) Ledger() *Ledger { return c.ledger }

// ─── internals ────────────────────────────────────────────────────────────

// run is the session clock: a 1 Hz tick plus the periodic remaining-time
// write-through that makes resume-after-crash possible. done is passed in
// rather than read from the struct so a rollback-restarted loop cannot
// close its successor's channel.
func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	tick := time.NewTicker(c.tickInterval)
	defer tick.Stop()
	persist := time.NewTicker(c.persistInterval)
	defer persist.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			ended, err := c.Tick(ctx)
			if err != nil {
				c.logger.Error("automatic session end failed", "error", err)
			}
			if ended {
				return
			}
		case <-persist.C:
			c.persistRemaining(ctx)
		}
	}
}

func (c *Controller) persistRemaining(ctx context.Context) {
	c.mu.Lock()
	if !c.state.Running() {
		c.mu.Unlock()
		return
	}
	id, remaining := c.session.ID, c.timer.Remaining()
	c.mu.Unlock()

	if err := c.store.SaveRemaining(ctx, id, remaining); err != nil {
		c.logger.Warn("periodic persist failed", "error", err)
	}
}

// settleTurn transitions out of the turn pipeline and releases the
// in-flight slot.
func (c *Controller) settleTurn(ctx context.Context, event Event, pipeline types.Pipeline, status string) {
	c.mu.Lock()
	if next, err := Transition(c.state, event); err == nil {
		c.state = next
	}
	if c.turnDone != nil {
		close(c.turnDone)
		c.turnDone = nil
	}
	c.mu.Unlock()
	c.metrics.RecordTurn(ctx, string(pipeline), status)
}

// appendEntry adds a ledger entry, rejecting blank text.
func (c *Controller) appendEntry(role types.Role, text string) (types.Entry, error) {
	return c.ledger.Append(role, text)
}

// writeThrough persists a single late-arriving entry immediately. Failures
// are logged, not surfaced: the entry stays in the in-memory ledger.
func (c *Controller) writeThrough(ctx context.Context, e types.Entry) {
	if err := c.store.AppendEntries(ctx, c.session.ID, []types.Entry{e}); err != nil {
		c.logger.Warn("late entry write-through failed", "entry_id", e.ID, "error", err)
		return
	}
	c.ledger.MarkFlushed(1)
}

// flushLocked writes every unflushed ledger entry durably.
func (c *Controller) flushLocked(ctx context.Context) error {
	pending := c.ledger.Unflushed()
	if len(pending) == 0 {
		return nil
	}
	if err := c.store.AppendEntries(ctx, c.session.ID, pending); err != nil {
		return err
	}
	c.ledger.MarkFlushed(len(pending))
	return nil
}

// generationRequestLocked snapshots the per-request generation inputs.
// Caller holds c.mu.
func (c *Controller) generationRequestLocked(pipeline types.Pipeline) GenerationRequest {
	return GenerationRequest{
		SessionID: c.session.ID,
		Company:   c.session.Company,
		Role:      c.session.Role,
		CVSummary: c.session.CVSummary,
		Pipeline:  pipeline,
		History:   c.ledger.Tail(c.historyWindow),
	}
}

func (c *Controller) stopLoopLocked() {
	if c.stopLoop != nil {
		c.stopLoop()
		c.stopLoop = nil
	}
}

func (c *Controller) restartLoopLocked() {
	if c.tickInterval <= 0 || !c.state.Running() {
		return
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	c.stopLoop = cancel
	c.loopDone = make(chan struct{})
	go c.run(loopCtx, c.loopDone)
}

func (c *Controller) notify(n Notice) {
	if c.onEvent != nil {
		c.onEvent(n)
	}
}
