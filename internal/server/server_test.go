package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/mockview/mockview/internal/interview"
	"github.com/mockview/mockview/internal/server"
	"github.com/mockview/mockview/internal/store"
	"github.com/mockview/mockview/pkg/provider/stt"
	sttmock "github.com/mockview/mockview/pkg/provider/stt/mock"
	"github.com/mockview/mockview/pkg/types"
)

// ─── Fakes ───────────────────────────────────────────────────────────────────

// fakeStore is an in-memory interview.Persister.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]store.Session
	entries  map[string][]types.Entry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]store.Session),
		entries:  make(map[string][]types.Entry),
	}
}

func (f *fakeStore) add(s store.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

func (f *fakeStore) get(id string) store.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id]
}

func (f *fakeStore) CreateSession(_ context.Context, s store.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.ID]; ok {
		return fmt.Errorf("session %q exists", s.ID)
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) MarkActive(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if s.Status == store.StatusCompleted {
		return store.ErrAlreadyCompleted
	}
	s.Status = store.StatusActive
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) SaveRemaining(_ context.Context, id string, remaining int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	s.RemainingSeconds = remaining
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) SetCVSummary(_ context.Context, id, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	s.CVSummary = summary
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) Finalize(_ context.Context, id string, remaining int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if s.Status == store.StatusCompleted {
		return store.ErrAlreadyCompleted
	}
	s.Status = store.StatusCompleted
	s.RemainingSeconds = remaining
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) AppendEntries(_ context.Context, sessionID string, entries []types.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[sessionID] = append(f.entries[sessionID], entries...)
	return nil
}

func (f *fakeStore) ListEntries(_ context.Context, sessionID string) ([]types.Entry, error) {
	return f.entriesFor(sessionID), nil
}

func (f *fakeStore) entriesFor(sessionID string) []types.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Entry, len(f.entries[sessionID]))
	copy(out, f.entries[sessionID])
	return out
}

// fakeGate satisfies interview.Gate.
type fakeGate struct {
	mu        sync.Mutex
	available int
	err       error
}

func (f *fakeGate) Check(_ context.Context, userID string) (store.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return store.Entitlement{}, f.err
	}
	return store.Entitlement{UserID: userID, Available: f.available}, nil
}

// fakeGenerator satisfies interview.Generator.
type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (f *fakeGenerator) Reply(context.Context, interview.GenerationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reply, f.err
}

// grantCall records one Accounts.Grant invocation.
type grantCall struct {
	UserID string
	Email  string
	N      int
}

// fakeAccounts satisfies server.Accounts.
type fakeAccounts struct {
	mu         sync.Mutex
	registered map[string]string
	grants     []grantCall
	summaryErr error
}

func (f *fakeAccounts) Register(_ context.Context, userID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registered == nil {
		f.registered = make(map[string]string)
	}
	f.registered[userID] = email
	return nil
}

func (f *fakeAccounts) Summary(_ context.Context, userID string) (store.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return store.Entitlement{}, f.summaryErr
	}
	return store.Entitlement{UserID: userID, Email: f.registered[userID], Available: 1}, nil
}

func (f *fakeAccounts) Grant(_ context.Context, userID, email string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants = append(f.grants, grantCall{UserID: userID, Email: email, N: n})
	return nil
}

func (f *fakeAccounts) grantCalls() []grantCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]grantCall, len(f.grants))
	copy(out, f.grants)
	return out
}

// ingestCall records one Ingestor.Ingest invocation.
type ingestCall struct {
	SessionID string
	Text      string
}

type fakeIngestor struct {
	mu      sync.Mutex
	summary string
	err     error
	calls   []ingestCall
}

func (f *fakeIngestor) Ingest(_ context.Context, sessionID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ingestCall{SessionID: sessionID, Text: text})
	return f.summary, f.err
}

// fakeWatcher satisfies store.Watcher with a hand-fed channel.
type fakeWatcher struct {
	mu    sync.Mutex
	chans map[string]chan store.Update
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{chans: make(map[string]chan store.Update)}
}

func (f *fakeWatcher) Watch(_ context.Context, sessionID string) (<-chan store.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan store.Update, 16)
	f.chans[sessionID] = ch
	return ch, nil
}

func (f *fakeWatcher) push(u store.Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.chans[u.SessionID]; ok {
		ch <- u
	}
}

// ─── Harness ─────────────────────────────────────────────────────────────────

type fixture struct {
	srv      *server.Server
	ts       *httptest.Server
	store    *fakeStore
	gate     *fakeGate
	gen      *fakeGenerator
	stt      *sttmock.Provider
	accounts *fakeAccounts
	ingestor *fakeIngestor
	watcher  *fakeWatcher
}

func newFixture(t *testing.T, mut func(*server.Config)) *fixture {
	t.Helper()

	f := &fixture{
		store:    newFakeStore(),
		gate:     &fakeGate{available: 1},
		gen:      &fakeGenerator{reply: "I led the migration to event-driven ingestion."},
		stt:      &sttmock.Provider{Result: stt.Result{Text: "Tell me about a project you are proud of."}},
		accounts: &fakeAccounts{},
		ingestor: &fakeIngestor{summary: "Seasoned backend engineer."},
		watcher:  newFakeWatcher(),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := interview.NewManager(interview.ManagerConfig{
		Gate:      f.gate,
		STT:       f.stt,
		Generator: f.gen,
		Store:     f.store,
		Logger:    logger,
	})

	cfg := server.Config{
		Sessions:           mgr,
		Store:              f.store,
		Accounts:           f.accounts,
		Ingestor:           f.ingestor,
		Watcher:            f.watcher,
		WebhookSecret:      "test-webhook-secret",
		CreditsPerPurchase: 2,
		Logger:             logger,
	}
	if mut != nil {
		mut(&cfg)
	}

	srv, err := server.New(cfg)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	f.srv = srv
	f.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fixture) seedSession(id string) {
	f.store.add(store.Session{
		ID:               id,
		UserID:           "user-1",
		Company:          "Acme",
		Role:             "Backend Engineer",
		Status:           store.StatusNotStarted,
		RemainingSeconds: 1200,
		DurationSeconds:  1200,
	})
}

// do sends a request and decodes the JSON response into a generic map.
func (f *fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
		contentType = "audio/wav"
	default:
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var decoded map[string]any
	if len(bytes.TrimSpace(data)) > 0 && strings.Contains(resp.Header.Get("Content-Type"), "json") {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal response %q: %v", data, err)
		}
	}
	return resp.StatusCode, decoded
}

// errorCode digs the code out of the JSON error envelope.
func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	detail, ok := body["error"].(map[string]any)
	if !ok {
		keys := make([]string, 0, len(body))
		for k := range body {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		t.Fatalf("no error envelope, keys = %v", keys)
	}
	code, _ := detail["code"].(string)
	return code
}
