// Package store defines the persistence contracts for interview sessions,
// chat ledgers, entitlements, and the résumé vector index.
//
// The canonical implementation lives in the postgres subpackage; a single
// *postgres.Store satisfies every interface here. Consumers depend on the
// narrow interface they need so tests can substitute in-memory fakes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mockview/mockview/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyCompleted is returned by Finalize when the session already
// reached the completed state. Callers treat it as a successful no-op so
// repeated end requests never double-charge.
var ErrAlreadyCompleted = errors.New("store: session already completed")

// SessionStatus is the durable lifecycle state of an interview session.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusActive     SessionStatus = "active"
	StatusCompleted  SessionStatus = "completed"
)

// Session is the durable record of one interview session.
type Session struct {
	ID     string
	UserID string

	// Company and Role describe the position being interviewed for. They
	// drive the candidate persona and transcript correction entities.
	Company string
	Role    string

	Status SessionStatus

	// RemainingSeconds is the last persisted remaining time. It is written
	// through periodically while the session runs and once at finalization,
	// so a crash loses at most one persist interval.
	RemainingSeconds int

	// DurationSeconds is the configured total session length.
	DurationSeconds int

	// CVSummary is the LLM-generated summary of the uploaded résumé, empty
	// until résumé ingestion completes.
	CVSummary string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entitlement is the per-user interview credit balance.
type Entitlement struct {
	UserID string
	Email  string

	// Available is the number of interviews the user may still complete.
	// Never negative.
	Available int

	// TotalGranted and TotalCompleted are monotonic lifetime counters.
	TotalGranted   int
	TotalCompleted int
}

// ResumeChunk is one embedded fragment of an uploaded résumé.
type ResumeChunk struct {
	ID        string
	SessionID string
	Content   string
	Embedding []float32

	// Seq preserves the chunk's position in the source document.
	Seq int
}

// ChunkResult pairs a retrieved chunk with its cosine distance from the
// query embedding (smaller is more similar).
type ChunkResult struct {
	Chunk    ResumeChunk
	Distance float64
}

// UpdateKind discriminates change notifications emitted by a Watcher.
type UpdateKind string

const (
	// UpdateSession signals a change to the session row (status, remaining
	// time, CV summary).
	UpdateSession UpdateKind = "session"

	// UpdateChat signals new chat ledger entries.
	UpdateChat UpdateKind = "chat"
)

// Update is a change notification for a single session.
type Update struct {
	SessionID string
	Kind      UpdateKind
}

// Sessions persists interview session records.
type Sessions interface {
	// CreateSession inserts a new session record. The session starts in
	// StatusNotStarted with RemainingSeconds equal to DurationSeconds.
	CreateSession(ctx context.Context, s Session) error

	// GetSession loads a session by ID. Returns ErrNotFound when absent.
	GetSession(ctx context.Context, id string) (Session, error)

	// MarkActive transitions the session to StatusActive. Idempotent; does
	// not touch completed sessions.
	MarkActive(ctx context.Context, id string) error

	// SaveRemaining writes through the current remaining time.
	SaveRemaining(ctx context.Context, id string, remainingSeconds int) error

	// SetCVSummary stores the generated résumé summary.
	SetCVSummary(ctx context.Context, id, summary string) error

	// Finalize atomically marks the session completed, records the final
	// remaining time, and consumes one entitlement credit for the session's
	// user — all in a single transaction. Returns ErrAlreadyCompleted when
	// the session was finalized before, without touching the credit again.
	Finalize(ctx context.Context, id string, remainingSeconds int) error
}

// ChatLog persists the per-session chat ledger.
type ChatLog interface {
	// AppendEntries appends entries to the session's durable ledger in
	// order. Entries whose (role, text) pair already exists for the session
	// are skipped, so replaying an unflushed tail after a crash or a late
	// turn result cannot produce duplicates.
	AppendEntries(ctx context.Context, sessionID string, entries []types.Entry) error

	// ListEntries returns the session's ledger in chronological order.
	ListEntries(ctx context.Context, sessionID string) ([]types.Entry, error)
}

// Entitlements persists per-user interview credits.
type Entitlements interface {
	// GetEntitlement loads a user's balance. Returns ErrNotFound when the
	// user has never been registered.
	GetEntitlement(ctx context.Context, userID string) (Entitlement, error)

	// EnsureUser registers a user with a zero balance if absent. Existing
	// rows are left untouched apart from the email, which is refreshed.
	EnsureUser(ctx context.Context, userID, email string) error

	// Grant adds n credits to the user's balance. n must be positive.
	Grant(ctx context.Context, userID string, n int) error
}

// ResumeIndex persists and searches embedded résumé chunks.
type ResumeIndex interface {
	// IndexChunks upserts the chunks for a session, replacing any existing
	// chunk with the same ID.
	IndexChunks(ctx context.Context, chunks []ResumeChunk) error

	// SearchChunks returns the topK chunks for the session closest to the
	// query embedding, ordered by ascending cosine distance.
	SearchChunks(ctx context.Context, sessionID string, embedding []float32, topK int) ([]ChunkResult, error)
}

// Watcher streams change notifications for a single session, backed by
// LISTEN/NOTIFY in the postgres implementation.
type Watcher interface {
	// Watch returns a channel of updates for sessionID. The channel is
	// closed when ctx is cancelled or the underlying connection is lost.
	Watch(ctx context.Context, sessionID string) (<-chan Update, error)
}
