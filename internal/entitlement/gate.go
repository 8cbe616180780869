// Package entitlement gates interview sessions on the user's credit
// balance and applies purchase grants.
//
// Credit consumption is not exposed here: a credit is consumed inside the
// store's Finalize transaction, atomically with the session's completion,
// so a crash between the two can never charge without completing.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mockview/mockview/internal/store"
)

// ErrExhausted is returned by Check when the user has no interview
// credits left.
var ErrExhausted = errors.New("entitlement: no interviews available")

// Gate answers whether a user may start an interview and credits
// purchases. It is safe for concurrent use.
type Gate struct {
	store  store.Entitlements
	logger *slog.Logger
}

// NewGate creates a Gate backed by the given entitlement store.
func NewGate(st store.Entitlements, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: st, logger: logger}
}

// Check loads the user's balance and verifies at least one interview
// credit is available. It returns the balance together with ErrExhausted
// when the balance is zero; an unknown user has no credits by definition
// and also gets ErrExhausted.
func (g *Gate) Check(ctx context.Context, userID string) (store.Entitlement, error) {
	ent, err := g.store.GetEntitlement(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Entitlement{}, fmt.Errorf("%w: user %q is not registered", ErrExhausted, userID)
	}
	if err != nil {
		return store.Entitlement{}, fmt.Errorf("entitlement: check %q: %w", userID, err)
	}
	if ent.Available <= 0 {
		return ent, fmt.Errorf("%w: user %q has used all granted interviews", ErrExhausted, userID)
	}
	return ent, nil
}

// Summary returns the user's current balance without gate semantics.
// Returns store.ErrNotFound for unknown users.
func (g *Gate) Summary(ctx context.Context, userID string) (store.Entitlement, error) {
	return g.store.GetEntitlement(ctx, userID)
}

// Register ensures the user exists with the given email, preserving any
// existing balance. New users start with zero credits.
func (g *Gate) Register(ctx context.Context, userID, email string) error {
	if err := g.store.EnsureUser(ctx, userID, email); err != nil {
		return fmt.Errorf("entitlement: register %q: %w", userID, err)
	}
	return nil
}

// Grant credits n interviews to the user, registering the user first if
// needed so a purchase webhook can never be lost to ordering.
func (g *Gate) Grant(ctx context.Context, userID, email string, n int) error {
	if n <= 0 {
		return fmt.Errorf("entitlement: grant: count must be positive, got %d", n)
	}
	if err := g.store.EnsureUser(ctx, userID, email); err != nil {
		return fmt.Errorf("entitlement: grant %q: ensure user: %w", userID, err)
	}
	if err := g.store.Grant(ctx, userID, n); err != nil {
		return fmt.Errorf("entitlement: grant %q: %w", userID, err)
	}
	g.logger.Info("granted interview credits", "user_id", userID, "count", n)
	return nil
}
