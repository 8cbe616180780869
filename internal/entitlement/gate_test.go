package entitlement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mockview/mockview/internal/entitlement"
	"github.com/mockview/mockview/internal/store"
)

// fakeEntitlements is an in-memory store.Entitlements for gate tests.
type fakeEntitlements struct {
	users map[string]*store.Entitlement

	grantErr error
}

func newFakeEntitlements() *fakeEntitlements {
	return &fakeEntitlements{users: map[string]*store.Entitlement{}}
}

func (f *fakeEntitlements) GetEntitlement(_ context.Context, userID string) (store.Entitlement, error) {
	e, ok := f.users[userID]
	if !ok {
		return store.Entitlement{}, store.ErrNotFound
	}
	return *e, nil
}

func (f *fakeEntitlements) EnsureUser(_ context.Context, userID, email string) error {
	if e, ok := f.users[userID]; ok {
		e.Email = email
		return nil
	}
	f.users[userID] = &store.Entitlement{UserID: userID, Email: email}
	return nil
}

func (f *fakeEntitlements) Grant(_ context.Context, userID string, n int) error {
	if f.grantErr != nil {
		return f.grantErr
	}
	e, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	e.Available += n
	e.TotalGranted += n
	return nil
}

var _ store.Entitlements = (*fakeEntitlements)(nil)

func TestCheck(t *testing.T) {
	t.Parallel()

	fake := newFakeEntitlements()
	fake.users["rich"] = &store.Entitlement{UserID: "rich", Available: 2}
	fake.users["broke"] = &store.Entitlement{UserID: "broke", Available: 0}
	gate := entitlement.NewGate(fake, nil)

	ent, err := gate.Check(context.Background(), "rich")
	if err != nil {
		t.Errorf("Check(rich) = %v, want nil", err)
	}
	if ent.Available != 2 {
		t.Errorf("available = %d, want 2", ent.Available)
	}
	if _, err := gate.Check(context.Background(), "broke"); !errors.Is(err, entitlement.ErrExhausted) {
		t.Errorf("Check(broke) = %v, want ErrExhausted", err)
	}
	if _, err := gate.Check(context.Background(), "stranger"); !errors.Is(err, entitlement.ErrExhausted) {
		t.Errorf("Check(stranger) = %v, want ErrExhausted", err)
	}
}

func TestGrantRegistersUnknownUser(t *testing.T) {
	t.Parallel()

	fake := newFakeEntitlements()
	gate := entitlement.NewGate(fake, nil)

	if err := gate.Grant(context.Background(), "new-user", "new@example.com", 3); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	ent, err := gate.Summary(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if ent.Available != 3 {
		t.Errorf("available = %d, want 3", ent.Available)
	}
	if ent.Email != "new@example.com" {
		t.Errorf("email = %q", ent.Email)
	}
}

func TestGrantRejectsNonPositiveCount(t *testing.T) {
	t.Parallel()

	gate := entitlement.NewGate(newFakeEntitlements(), nil)
	for _, n := range []int{0, -1} {
		if err := gate.Grant(context.Background(), "u", "u@example.com", n); err == nil {
			t.Errorf("Grant(%d) succeeded, want error", n)
		}
	}
}

func TestRegisterPreservesBalance(t *testing.T) {
	t.Parallel()

	fake := newFakeEntitlements()
	fake.users["u"] = &store.Entitlement{UserID: "u", Email: "old@example.com", Available: 5}
	gate := entitlement.NewGate(fake, nil)

	if err := gate.Register(context.Background(), "u", "new@example.com"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ent, _ := gate.Summary(context.Background(), "u")
	if ent.Available != 5 {
		t.Errorf("available = %d, want 5", ent.Available)
	}
	if ent.Email != "new@example.com" {
		t.Errorf("email = %q, want refreshed", ent.Email)
	}
}
