package interview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mockview/mockview/internal/observe"
	"github.com/mockview/mockview/pkg/provider/stt"
)

// ManagerConfig carries the collaborators shared by every controller the
// manager creates.
type ManagerConfig struct {
	Gate      Gate
	STT       stt.Provider
	Generator Generator
	Store     Persister
	Corrector Corrector

	Logger  *slog.Logger
	Metrics *observe.Metrics

	WarnAt          []int
	TickInterval    time.Duration
	PersistInterval time.Duration
	HistoryWindow   int
	Language        string
	OnEvent         func(Notice)
}

// Manager owns at most one Controller per session ID. Different sessions
// run concurrently; a second lookup for the same ID always returns the
// existing controller, which is what prevents two controllers from racing
// one session's timer. (Two *clients* sharing one session still race on a
// single controller, and the one-credit/two-tabs race across *sessions* is
// an accepted gap.)
//
// Manager is safe for concurrent use.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewManager creates a Manager. The config's Gate, STT, Generator, and
// Store are required, checked lazily when the first controller is built.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:         cfg,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// Controller returns the controller for sessionID, loading the session
// record and its durable ledger from the store on first use. Returns
// store.ErrNotFound (wrapped) for unknown sessions.
func (m *Manager) Controller(ctx context.Context, sessionID string) (*Controller, error) {
	m.mu.Lock()
	if c, ok := m.controllers[sessionID]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	sess, err := m.cfg.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("interview: load session %q: %w", sessionID, err)
	}
	durable, err := m.cfg.Store.ListEntries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("interview: load ledger %q: %w", sessionID, err)
	}

	c, err := NewController(Config{
		Session:         sess,
		Durable:         durable,
		Gate:            m.cfg.Gate,
		STT:             m.cfg.STT,
		Generator:       m.cfg.Generator,
		Store:           m.cfg.Store,
		Corrector:       m.cfg.Corrector,
		Logger:          m.logger,
		Metrics:         m.cfg.Metrics,
		WarnAt:          m.cfg.WarnAt,
		TickInterval:    m.cfg.TickInterval,
		PersistInterval: m.cfg.PersistInterval,
		HistoryWindow:   m.cfg.HistoryWindow,
		Language:        m.cfg.Language,
		OnEvent:         m.cfg.OnEvent,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another goroutine may have loaded the same session meanwhile; theirs
	// wins so only one controller ever drives a session.
	if existing, ok := m.controllers[sessionID]; ok {
		return existing, nil
	}
	m.controllers[sessionID] = c
	return c, nil
}

// Evict drops the controller for sessionID, typically after it ended. The
// next lookup reloads from the store.
func (m *Manager) Evict(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.controllers, sessionID)
}

// Shutdown suspends every running controller, persisting remaining times
// so sessions can resume after a restart.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		controllers = append(controllers, c)
	}
	m.controllers = make(map[string]*Controller)
	m.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range controllers {
		g.Go(func() error { return c.Suspend(ctx) })
	}
	return g.Wait()
}
