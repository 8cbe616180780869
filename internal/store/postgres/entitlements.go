package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mockview/mockview/internal/store"
)

// GetEntitlement implements [store.Entitlements].
func (s *Store) GetEntitlement(ctx context.Context, userID string) (store.Entitlement, error) {
	const q = `
		SELECT user_id, email, available, total_granted, total_completed
		FROM   entitlements
		WHERE  user_id = $1`

	var e store.Entitlement
	err := s.pool.QueryRow(ctx, q, userID).Scan(
		&e.UserID,
		&e.Email,
		&e.Available,
		&e.TotalGranted,
		&e.TotalCompleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Entitlement{}, fmt.Errorf("entitlements: get %q: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return store.Entitlement{}, fmt.Errorf("entitlements: get: %w", err)
	}
	return e, nil
}

// EnsureUser implements [store.Entitlements]. An existing row keeps its
// balance; only the email is refreshed.
func (s *Store) EnsureUser(ctx context.Context, userID, email string) error {
	const q = `
		INSERT INTO entitlements (user_id, email)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
		    email = EXCLUDED.email, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, userID, email); err != nil {
		return fmt.Errorf("entitlements: ensure user: %w", err)
	}
	return nil
}

// Grant implements [store.Entitlements].
func (s *Store) Grant(ctx context.Context, userID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("entitlements: grant: count must be positive, got %d", n)
	}

	const q = `
		UPDATE entitlements
		SET    available = available + $2, total_granted = total_granted + $2, updated_at = now()
		WHERE  user_id = $1`

	tag, err := s.pool.Exec(ctx, q, userID, n)
	if err != nil {
		return fmt.Errorf("entitlements: grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entitlements: grant %q: %w", userID, store.ErrNotFound)
	}
	return nil
}
