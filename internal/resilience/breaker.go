// Package resilience keeps flaky AI backends from dragging the interview
// pipeline down with them. A Breaker tracks the recent health of a single
// backend and refuses calls while it looks dead; the LLM and STT fallback
// wrappers string several backends together, each behind its own breaker,
// so an outage at the primary is routed around instead of retried into
// the ground.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned in place of a call while the breaker is
// refusing traffic to its backend.
var ErrBreakerOpen = errors.New("resilience: breaker open")

// BreakerState is the breaker's current disposition towards calls.
type BreakerState int

const (
	// BreakerClosed admits every call; the failure streak decides when
	// to trip.
	BreakerClosed BreakerState = iota

	// BreakerTripped refuses every call until the cool-off has elapsed.
	BreakerTripped

	// BreakerProbing admits a limited number of calls to find out
	// whether the backend has recovered.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerTripped:
		return "tripped"
	case BreakerProbing:
		return "probing"
	}
	return "invalid"
}

// BreakerConfig tunes a Breaker. The zero value gets the defaults noted
// on each field.
type BreakerConfig struct {
	// TripAfter is the consecutive-failure streak that trips the
	// breaker. Default 5.
	TripAfter int

	// CoolOff is how long a tripped breaker refuses calls before it
	// starts probing. Default 30s.
	CoolOff time.Duration

	// ProbeQuota is how many calls the probing state admits. That many
	// consecutive successes close the breaker; a single failure trips it
	// again. Default 3.
	ProbeQuota int
}

func (c *BreakerConfig) withDefaults() {
	if c.TripAfter <= 0 {
		c.TripAfter = 5
	}
	if c.CoolOff <= 0 {
		c.CoolOff = 30 * time.Second
	}
	if c.ProbeQuota <= 0 {
		c.ProbeQuota = 3
	}
}

// Breaker guards calls to one backend. Safe for concurrent use.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger

	mu        sync.Mutex
	state     BreakerState
	streak    int       // consecutive failures while closed
	trippedAt time.Time // when the breaker last tripped
	probes    int       // probes admitted since entering BreakerProbing
	probeOK   int       // successful probes in this probing round
}

// NewBreaker returns a closed Breaker guarding the named backend. A nil
// logger falls back to slog.Default.
func NewBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{name: name, cfg: cfg, logger: logger}
}

// Do runs call unless the breaker refuses it, and feeds the outcome back
// into the breaker.
func (b *Breaker) Do(call func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = call()
	b.settle(probe, err)
	return err
}

// admit decides whether a call may proceed and whether it counts as a
// probe. A tripped breaker whose cool-off has elapsed moves to probing
// here, on the first call that finds it expired.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerTripped {
		if time.Since(b.trippedAt) < b.cfg.CoolOff {
			return false, ErrBreakerOpen
		}
		b.state = BreakerProbing
		b.probes, b.probeOK = 0, 0
		b.logger.Info("breaker probing backend", "backend", b.name)
	}

	if b.state == BreakerProbing {
		if b.probes >= b.cfg.ProbeQuota {
			return false, ErrBreakerOpen
		}
		b.probes++
		return true, nil
	}
	return false, nil
}

// settle records the outcome of an admitted call.
func (b *Breaker) settle(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case err == nil && probe:
		b.probeOK++
		if b.probeOK >= b.cfg.ProbeQuota {
			b.state = BreakerClosed
			b.streak = 0
			b.logger.Info("breaker closed, backend recovered", "backend", b.name)
		}
	case err == nil:
		b.streak = 0
	case probe:
		// One bad probe is enough: back to refusing calls.
		b.trip()
	default:
		b.streak++
		if b.streak >= b.cfg.TripAfter {
			b.trip()
		}
	}
}

// trip moves the breaker to the refusing state. Caller holds b.mu.
func (b *Breaker) trip() {
	b.state = BreakerTripped
	b.trippedAt = time.Now()
	b.logger.Warn("breaker tripped",
		"backend", b.name,
		"cool_off", b.cfg.CoolOff,
	)
}

// State reports the breaker's disposition. A tripped breaker whose
// cool-off has elapsed reports BreakerProbing even though the internal
// move happens on the next Do.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerTripped && time.Since(b.trippedAt) >= b.cfg.CoolOff {
		return BreakerProbing
	}
	return b.state
}

// Reset forces the breaker closed and forgets all history.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.streak, b.probes, b.probeOK = 0, 0, 0
}
