// Package server exposes the interview engine over HTTP: a JSON REST API
// for session lifecycle and billing, plus two WebSocket endpoints — one
// that streams live session updates to review clients, one that accepts
// Opus-encoded microphone audio for recorded turns.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mockview/mockview/internal/health"
	"github.com/mockview/mockview/internal/interview"
	"github.com/mockview/mockview/internal/observe"
	"github.com/mockview/mockview/internal/store"
)

// SessionService hands out the controller driving each session.
// *interview.Manager satisfies it.
type SessionService interface {
	Controller(ctx context.Context, sessionID string) (*interview.Controller, error)
	Evict(sessionID string)
}

// Accounts manages user registration and interview credits.
// *entitlement.Gate satisfies it.
type Accounts interface {
	Register(ctx context.Context, userID, email string) error
	Summary(ctx context.Context, userID string) (store.Entitlement, error)
	Grant(ctx context.Context, userID, email string, n int) error
}

// Ingestor indexes an uploaded résumé for a session. *resume.Ingestor
// satisfies it.
type Ingestor interface {
	Ingest(ctx context.Context, sessionID, resumeText string) (string, error)
}

// Config assembles a Server.
type Config struct {
	// Addr is the TCP listen address, e.g. ":8080".
	Addr string

	Sessions SessionService
	Store    store.Sessions
	Accounts Accounts

	// Ingestor handles résumé uploads on session creation. Optional;
	// without it resume_text is rejected.
	Ingestor Ingestor

	// Watcher feeds the session watch endpoint. Optional; without it the
	// watch socket only carries controller notices.
	Watcher store.Watcher

	// DefaultDurationSeconds is used when session creation omits a
	// duration. Defaults to 1200.
	DefaultDurationSeconds int

	// WebhookSecret verifies billing webhook signatures. When empty the
	// webhook endpoint rejects everything.
	WebhookSecret string

	// CreditsPerPurchase is granted per completed checkout when the
	// webhook payload carries no count. Defaults to 1.
	CreditsPerPurchase int

	// Ready lists readiness checks served on /readyz.
	Ready []health.Checker

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Server is the HTTP front end. Create with New, run with ListenAndServe,
// stop with Shutdown.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *observe.Metrics
	notices *noticeHub
	http    *http.Server
}

// New creates a Server. Sessions, Store, and Accounts are required.
func New(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("server: config: session service is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("server: config: session store is required")
	}
	if cfg.Accounts == nil {
		return nil, errors.New("server: config: accounts are required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DefaultDurationSeconds <= 0 {
		cfg.DefaultDurationSeconds = 1200
	}
	if cfg.CreditsPerPurchase <= 0 {
		cfg.CreditsPerPurchase = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		notices: newNoticeHub(),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the full route table wrapped in the observability
// middleware. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/users", s.handleRegisterUser)
	mux.HandleFunc("GET /v1/users/{userID}/entitlement", s.handleEntitlement)

	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /v1/sessions/{id}/start", s.handleStart)
	mux.HandleFunc("POST /v1/sessions/{id}/turn", s.handleTurn)
	mux.HandleFunc("POST /v1/sessions/{id}/turn/cancel", s.handleCancelTurn)
	mux.HandleFunc("POST /v1/sessions/{id}/message", s.handleMessage)
	mux.HandleFunc("POST /v1/sessions/{id}/end", s.handleEnd)
	mux.HandleFunc("GET /v1/sessions/{id}/watch", s.handleWatch)
	mux.HandleFunc("GET /v1/sessions/{id}/capture", s.handleCapture)

	mux.HandleFunc("POST /v1/billing/webhook", s.handleBillingWebhook)

	health.New(s.cfg.Ready...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// HandleNotice routes a controller notice to the watch sockets of its
// session. Wire it as the interview manager's OnEvent callback.
func (s *Server) HandleNotice(n interview.Notice) {
	s.notices.publish(n)
}

// ListenAndServe runs the server until Shutdown is called or the listener
// fails. http.ErrServerClosed is swallowed.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	}
	return nil
}

// ListenAndServeTLS is ListenAndServe with TLS.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	s.logger.Info("https server listening", "addr", s.cfg.Addr)
	if err := s.http.ListenAndServeTLS(certFile, keyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// ─── Notice hub ──────────────────────────────────────────────────────────────

// noticeHub fans controller notices out to the watch sockets subscribed to
// each session. Slow subscribers drop notices rather than block the
// controller. Safe for concurrent use.
type noticeHub struct {
	mu   sync.Mutex
	subs map[string]map[chan interview.Notice]struct{}
}

func newNoticeHub() *noticeHub {
	return &noticeHub{subs: make(map[string]map[chan interview.Notice]struct{})}
}

// subscribe registers a listener for sessionID. The returned cancel func
// must be called when the listener goes away.
func (h *noticeHub) subscribe(sessionID string) (<-chan interview.Notice, func()) {
	ch := make(chan interview.Notice, 8)

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan interview.Notice]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[sessionID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
	}
	return ch, cancel
}

func (h *noticeHub) publish(n interview.Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[n.SessionID] {
		select {
		case ch <- n:
		default:
		}
	}
}
