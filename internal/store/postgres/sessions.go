package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/mockview/mockview/internal/store"
)

// CreateSession implements [store.Sessions].
func (s *Store) CreateSession(ctx context.Context, sess store.Session) error {
	const q = `
		INSERT INTO sessions
		    (id, user_id, company, role, status, remaining_seconds, duration_seconds, cv_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	status := sess.Status
	if status == "" {
		status = store.StatusNotStarted
	}
	remaining := sess.RemainingSeconds
	if remaining == 0 {
		remaining = sess.DurationSeconds
	}

	_, err := s.pool.Exec(ctx, q,
		sess.ID,
		sess.UserID,
		sess.Company,
		sess.Role,
		string(status),
		remaining,
		sess.DurationSeconds,
		sess.CVSummary,
	)
	if err != nil {
		return fmt.Errorf("sessions: create: %w", err)
	}
	return nil
}

// GetSession implements [store.Sessions].
func (s *Store) GetSession(ctx context.Context, id string) (store.Session, error) {
	const q = `
		SELECT id, user_id, company, role, status, remaining_seconds, duration_seconds,
		       cv_summary, created_at, updated_at
		FROM   sessions
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return store.Session{}, fmt.Errorf("sessions: get: %w", err)
	}
	sess, err := pgx.CollectOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Session{}, fmt.Errorf("sessions: get %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("sessions: get: %w", err)
	}
	return sess, nil
}

// MarkActive implements [store.Sessions]. Completed sessions are left alone.
func (s *Store) MarkActive(ctx context.Context, id string) error {
	const q = `
		UPDATE sessions
		SET    status = 'active', updated_at = now()
		WHERE  id = $1 AND status <> 'completed'`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("sessions: mark active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or already completed; disambiguate for the caller.
		if _, err := s.GetSession(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("sessions: mark active %q: %w", id, store.ErrAlreadyCompleted)
	}
	return nil
}

// SaveRemaining implements [store.Sessions].
func (s *Store) SaveRemaining(ctx context.Context, id string, remainingSeconds int) error {
	const q = `
		UPDATE sessions
		SET    remaining_seconds = $2, updated_at = now()
		WHERE  id = $1 AND status <> 'completed'`

	if _, err := s.pool.Exec(ctx, q, id, remainingSeconds); err != nil {
		return fmt.Errorf("sessions: save remaining: %w", err)
	}
	return nil
}

// SetCVSummary implements [store.Sessions].
func (s *Store) SetCVSummary(ctx context.Context, id, summary string) error {
	const q = `
		UPDATE sessions
		SET    cv_summary = $2, updated_at = now()
		WHERE  id = $1`

	if _, err := s.pool.Exec(ctx, q, id, summary); err != nil {
		return fmt.Errorf("sessions: set cv summary: %w", err)
	}
	return nil
}

// Finalize implements [store.Sessions]. The status flip and the credit
// decrement happen in one transaction: a session can only transition to
// completed once, and that single transition consumes exactly one credit.
func (s *Store) Finalize(ctx context.Context, id string, remainingSeconds int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sessions: finalize: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const complete = `
		UPDATE sessions
		SET    status = 'completed', remaining_seconds = $2, updated_at = now()
		WHERE  id = $1 AND status <> 'completed'
		RETURNING user_id`

	var userID string
	err = tx.QueryRow(ctx, complete, id, remainingSeconds).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Missing row and already-completed row both produce zero rows.
		if _, gerr := s.GetSession(ctx, id); gerr != nil {
			return gerr
		}
		return fmt.Errorf("sessions: finalize %q: %w", id, store.ErrAlreadyCompleted)
	}
	if err != nil {
		return fmt.Errorf("sessions: finalize: %w", err)
	}

	const consume = `
		UPDATE entitlements
		SET    available = available - 1, total_completed = total_completed + 1, updated_at = now()
		WHERE  user_id = $1 AND available > 0`

	tag, err := tx.Exec(ctx, consume, userID)
	if err != nil {
		return fmt.Errorf("sessions: finalize: consume credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// The balance never goes below zero. A session that somehow ran
		// without a credit still completes; the gap is logged, not fatal.
		slog.Warn("session finalized without an available credit",
			"session_id", id, "user_id", userID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("sessions: finalize: commit: %w", err)
	}
	return nil
}

// scanSession scans one sessions row.
func scanSession(row pgx.CollectableRow) (store.Session, error) {
	var (
		sess   store.Session
		status string
	)
	if err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.Company,
		&sess.Role,
		&status,
		&sess.RemainingSeconds,
		&sess.DurationSeconds,
		&sess.CVSummary,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	); err != nil {
		return store.Session{}, err
	}
	sess.Status = store.SessionStatus(status)
	return sess, nil
}
