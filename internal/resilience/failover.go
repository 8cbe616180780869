package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoBackend is returned by a failover chain when every backend either
// failed or was refused by its breaker.
var ErrNoBackend = errors.New("resilience: every backend failed")

// FallbackConfig configures a failover chain. Every backend added to the
// chain gets its own Breaker built from the Breaker field; the zero value
// uses the breaker defaults and slog.Default.
type FallbackConfig struct {
	Breaker BreakerConfig
	Logger  *slog.Logger
}

// chain tries same-typed backends in order until one answers. The order
// is fixed at add time: the primary first, fallbacks after it.
type chain[T any] struct {
	cfg   FallbackConfig
	links []link[T]
}

type link[T any] struct {
	name    string
	backend T
	guard   *Breaker
}

func newChain[T any](primary T, name string, cfg FallbackConfig) *chain[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &chain[T]{cfg: cfg}
	c.add(name, primary)
	return c
}

func (c *chain[T]) add(name string, backend T) {
	c.links = append(c.links, link[T]{
		name:    name,
		backend: backend,
		guard:   NewBreaker(name, c.cfg.Breaker, c.cfg.Logger),
	})
}

// attempt runs fn against each link in order until one succeeds. Links
// whose breaker refuses the call are skipped without invoking fn. Go has
// no method-level type parameters, hence the package function.
func attempt[T, R any](c *chain[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range c.links {
		l := &c.links[i]
		var out R
		err := l.guard.Do(func() error {
			var callErr error
			out, callErr = fn(l.backend)
			return callErr
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			c.cfg.Logger.Debug("backend refused by breaker", "backend", l.name)
		} else {
			c.cfg.Logger.Warn("backend failed, trying next in chain",
				"backend", l.name,
				"error", err,
			)
		}
	}
	var zero R
	return zero, fmt.Errorf("%w: last error: %v", ErrNoBackend, lastErr)
}
