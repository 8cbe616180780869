// Package app wires all Mockview subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order — draining requests, suspending live
// sessions so their remaining time survives the restart, and closing the
// store last.
//
// For testing, inject a fake store via [WithStore]. When no store is
// injected, New connects to PostgreSQL from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mockview/mockview/internal/candidate"
	"github.com/mockview/mockview/internal/config"
	"github.com/mockview/mockview/internal/entitlement"
	"github.com/mockview/mockview/internal/health"
	"github.com/mockview/mockview/internal/interview"
	"github.com/mockview/mockview/internal/observe"
	"github.com/mockview/mockview/internal/resilience"
	"github.com/mockview/mockview/internal/resume"
	"github.com/mockview/mockview/internal/server"
	"github.com/mockview/mockview/internal/store"
	"github.com/mockview/mockview/internal/store/postgres"
	"github.com/mockview/mockview/internal/transcript"
	"github.com/mockview/mockview/pkg/provider/embeddings"
	"github.com/mockview/mockview/pkg/provider/llm"
	"github.com/mockview/mockview/pkg/provider/stt"
)

// defaultEmbeddingDimensions matches OpenAI text-embedding-3-small.
const defaultEmbeddingDimensions = 1536

// Providers holds one interface value per provider slot. LLM and STT are
// required; a nil Embeddings disables résumé retrieval. Populated by
// main.go via the config registry.
type Providers struct {
	LLM        llm.Provider
	STT        stt.Provider
	Embeddings embeddings.Provider
}

// Store is the persistence surface the app wires together. A single
// *postgres.Store satisfies it.
type Store interface {
	store.Sessions
	store.ChatLog
	store.Entitlements
	store.ResumeIndex
	store.Watcher

	Ping(ctx context.Context) error
	Close()
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	logger    *slog.Logger
	metrics   *observe.Metrics

	db      Store
	gate    *entitlement.Gate
	manager *interview.Manager
	server  *server.Server

	// closers run in order during Shutdown, after the HTTP server and
	// session manager have drained.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of connecting to PostgreSQL.
func WithStore(s Store) Option {
	return func(a *App) { a.db = s }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates an App by wiring all subsystems together. The providers
// struct comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an llm provider is required")
	}
	if providers.STT == nil {
		return nil, errors.New("app: an stt provider is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	cfg.Session.Defaults()

	// Telemetry (observe.InitProvider) is main's job: the Prometheus
	// exporter registers process-global collectors.
	a.metrics = observe.DefaultMetrics()

	// ── 1. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Entitlement gate ──────────────────────────────────────────────
	a.gate = entitlement.NewGate(a.db, a.logger)

	// ── 3. Providers behind circuit breakers ─────────────────────────────
	llmProvider := resilience.NewLLMFallback(a.providers.LLM, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
	sttProvider := resilience.NewSTTFallback(a.providers.STT, cfg.Providers.STT.Name, resilience.FallbackConfig{})

	// ── 4. Generation + résumé pipeline ──────────────────────────────────
	genCfg := candidate.Config{
		LLM:     llmProvider,
		Logger:  a.logger,
		Metrics: a.metrics,
	}
	if a.providers.Embeddings != nil {
		genCfg.Embedder = a.providers.Embeddings
		genCfg.Index = a.db
	}
	generator, err := candidate.New(genCfg)
	if err != nil {
		return nil, fmt.Errorf("app: init generator: %w", err)
	}

	var ingestor server.Ingestor
	if a.providers.Embeddings != nil {
		ing, err := resume.NewIngestor(resume.IngestorConfig{
			Embedder: a.providers.Embeddings,
			Index:    a.db,
			Sessions: a.db,
			LLM:      llmProvider,
			Logger:   a.logger,
			Metrics:  a.metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("app: init resume ingestor: %w", err)
		}
		ingestor = ing
	} else {
		a.logger.Warn("no embeddings provider configured, résumé retrieval disabled")
	}

	// ── 5. Interview engine ──────────────────────────────────────────────
	a.manager = interview.NewManager(interview.ManagerConfig{
		Gate:            a.gate,
		STT:             sttProvider,
		Generator:       generator,
		Store:           a.db,
		Corrector:       transcript.New(),
		Logger:          a.logger,
		Metrics:         a.metrics,
		WarnAt:          cfg.Session.WarnThresholds,
		TickInterval:    time.Second,
		PersistInterval: time.Duration(cfg.Session.PersistIntervalSeconds) * time.Second,
		HistoryWindow:   cfg.Session.HistoryWindow,
		Language:        cfg.Session.Language,
		OnEvent:         a.handleNotice,
	})

	// ── 6. HTTP server ───────────────────────────────────────────────────
	srv, err := server.New(server.Config{
		Addr:                   cfg.Server.ListenAddr,
		Sessions:               a.manager,
		Store:                  a.db,
		Accounts:               a.gate,
		Ingestor:               ingestor,
		Watcher:                a.db,
		DefaultDurationSeconds: cfg.Session.DurationSeconds,
		WebhookSecret:          cfg.Billing.WebhookSecret,
		CreditsPerPurchase:     cfg.Billing.CreditsPerPurchase,
		Ready: []health.Checker{
			{Name: "database", Check: a.db.Ping},
		},
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}
	a.server = srv

	return a, nil
}

// initStore connects to PostgreSQL unless a store was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.db != nil {
		return nil
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		return errors.New("storage.postgres_dsn is required when no store is injected")
	}
	dims := a.cfg.Storage.EmbeddingDimensions
	if dims == 0 {
		dims = defaultEmbeddingDimensions
	}

	st, err := postgres.NewStore(ctx, dsn, dims)
	if err != nil {
		return err
	}
	a.db = st
	a.closers = append(a.closers, func() error {
		st.Close()
		return nil
	})
	return nil
}

// handleNotice forwards controller notices to the server's watch sockets.
// The indirection exists because the manager is built before the server.
func (a *App) handleNotice(n interview.Notice) {
	if a.server != nil {
		a.server.HandleNotice(n)
	}
}

// Run serves HTTP until ctx is cancelled or the listener fails. It returns
// ctx's error on cancellation so main can distinguish a clean stop.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if tls := a.cfg.Server.TLS; tls != nil {
			errCh <- a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
			return
		}
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown drains the HTTP server, suspends live sessions so their
// remaining time is persisted, then runs the closers. It respects the
// context deadline: when ctx expires, remaining closers are skipped.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down")

		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("http shutdown error", "error", err)
		}
		if err := a.manager.Shutdown(ctx); err != nil {
			a.logger.Warn("session suspend error", "error", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.logger.Warn("closer error", "index", i, "error", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}
