package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackendDown = errors.New("backend down")

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		_ = b.Do(func() error { return errBackendDown })
	}
}

func TestBreakerTripsAfterFailureStreak(t *testing.T) {
	t.Parallel()

	b := NewBreaker("llm", BreakerConfig{TripAfter: 3}, nil)
	failN(b, 2)
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state after 2 failures = %v, want closed", got)
	}

	failN(b, 1)
	if got := b.State(); got != BreakerTripped {
		t.Fatalf("state after 3 failures = %v, want tripped", got)
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("err = %v, want ErrBreakerOpen", err)
	}
	if called {
		t.Fatal("tripped breaker invoked the call")
	}
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	t.Parallel()

	b := NewBreaker("llm", BreakerConfig{TripAfter: 3}, nil)
	failN(b, 2)
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The streak restarted, so two more failures must not trip.
	failN(b, 2)
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestBreakerClosesAfterSuccessfulProbes(t *testing.T) {
	t.Parallel()

	b := NewBreaker("llm", BreakerConfig{
		TripAfter:  1,
		CoolOff:    10 * time.Millisecond,
		ProbeQuota: 2,
	}, nil)
	failN(b, 1)
	if got := b.State(); got != BreakerTripped {
		t.Fatalf("state = %v, want tripped", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := b.State(); got != BreakerProbing {
		t.Fatalf("state after cool-off = %v, want probing", got)
	}

	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe failed: %v", err)
		}
	}
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state after probes = %v, want closed", got)
	}
}

func TestBreakerReTripsOnFailedProbe(t *testing.T) {
	t.Parallel()

	b := NewBreaker("llm", BreakerConfig{
		TripAfter:  1,
		CoolOff:    10 * time.Millisecond,
		ProbeQuota: 3,
	}, nil)
	failN(b, 1)
	time.Sleep(20 * time.Millisecond)

	failN(b, 1) // the probe fails
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("err = %v, want ErrBreakerOpen", err)
	}
}

func TestBreakerReset(t *testing.T) {
	t.Parallel()

	b := NewBreaker("llm", BreakerConfig{TripAfter: 1}, nil)
	failN(b, 1)
	b.Reset()
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state = %v, want closed", got)
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBreakerStateString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state BreakerState
		want  string
	}{
		{BreakerClosed, "closed"},
		{BreakerTripped, "tripped"},
		{BreakerProbing, "probing"},
		{BreakerState(42), "invalid"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
