package server_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/mockview/mockview/internal/store"
)

func TestRegisterUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	status, body := f.do(t, http.MethodPost, "/v1/users", map[string]string{
		"user_id": "user-9", "email": "nine@example.com",
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["user_id"] != "user-9" {
		t.Errorf("user_id = %v", body["user_id"])
	}
	if f.accounts.registered["user-9"] != "nine@example.com" {
		t.Errorf("registered = %v", f.accounts.registered)
	}
}

func TestRegisterUserRequiresID(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	status, body := f.do(t, http.MethodPost, "/v1/users", map[string]string{"email": "x@example.com"})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
	if code := errorCode(t, body); code != "bad_request" {
		t.Errorf("code = %q", code)
	}
}

func TestEntitlementUnknownUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.accounts.summaryErr = store.ErrNotFound

	status, body := f.do(t, http.MethodGet, "/v1/users/nobody/entitlement", nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
	if code := errorCode(t, body); code != "not_found" {
		t.Errorf("code = %q", code)
	}
}

func TestCreateSessionIngestsResume(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	status, body := f.do(t, http.MethodPost, "/v1/sessions", map[string]any{
		"user_id":     "user-1",
		"company":     "Acme",
		"role":        "Backend Engineer",
		"resume_text": "Eight years of Go. Built the billing platform.",
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", status, body)
	}

	sess, ok := body["session"].(map[string]any)
	if !ok {
		t.Fatalf("no session in response: %v", body)
	}
	id, _ := sess["id"].(string)
	if id == "" {
		t.Fatal("empty session id")
	}
	if sess["status"] != string(store.StatusNotStarted) {
		t.Errorf("status = %v", sess["status"])
	}
	if sess["remaining_seconds"] != float64(1200) {
		t.Errorf("remaining = %v", sess["remaining_seconds"])
	}
	if body["resume_indexed"] != true {
		t.Error("resume not indexed")
	}
	if sess["cv_summary"] != "Seasoned backend engineer." {
		t.Errorf("cv_summary = %v", sess["cv_summary"])
	}

	if len(f.ingestor.calls) != 1 || f.ingestor.calls[0].SessionID != id {
		t.Errorf("ingest calls = %+v", f.ingestor.calls)
	}
	if got := f.store.get(id); got.Company != "Acme" {
		t.Errorf("stored session = %+v", got)
	}
}

func TestCreateSessionIngestFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.ingestor.err = errors.New("embedding quota exceeded")

	status, body := f.do(t, http.MethodPost, "/v1/sessions", map[string]any{
		"user_id":     "user-1",
		"company":     "Acme",
		"role":        "Backend Engineer",
		"resume_text": "Some résumé text.",
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["resume_indexed"] != false {
		t.Error("resume_indexed should be false on ingest failure")
	}
}

func TestCreateSessionValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	for name, req := range map[string]map[string]any{
		"missing user":    {"company": "Acme", "role": "SRE"},
		"missing company": {"user_id": "u", "role": "SRE"},
		"missing role":    {"user_id": "u", "company": "Acme"},
	} {
		status, _ := f.do(t, http.MethodPost, "/v1/sessions", req)
		if status != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, status)
		}
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.seedSession("sess-1")

	// Start.
	status, body := f.do(t, http.MethodPost, "/v1/sessions/sess-1/start", nil)
	if status != http.StatusOK {
		t.Fatalf("start: status = %d, body = %v", status, body)
	}
	if body["state"] != "active" {
		t.Errorf("state = %v", body["state"])
	}

	// One recorded turn, uploaded as a raw audio body.
	status, body = f.do(t, http.MethodPost, "/v1/sessions/sess-1/turn", []byte("RIFF-fake-clip"))
	if status != http.StatusOK {
		t.Fatalf("turn: status = %d, body = %v", status, body)
	}
	question := body["question"].(map[string]any)
	answer := body["answer"].(map[string]any)
	if question["role"] != "interviewer" || question["text"] != "Tell me about a project you are proud of." {
		t.Errorf("question = %v", question)
	}
	if answer["role"] != "candidate" {
		t.Errorf("answer = %v", answer)
	}

	// A freeform message while the session is running.
	status, body = f.do(t, http.MethodPost, "/v1/sessions/sess-1/message", map[string]string{
		"text": "Was that a strong answer?",
	})
	if status != http.StatusOK {
		t.Fatalf("message: status = %d, body = %v", status, body)
	}
	if body["role"] != "ai" {
		t.Errorf("reply role = %v", body["role"])
	}

	// End manually.
	status, body = f.do(t, http.MethodPost, "/v1/sessions/sess-1/end", nil)
	if status != http.StatusOK {
		t.Fatalf("end: status = %d, body = %v", status, body)
	}
	sess := body["session"].(map[string]any)
	if sess["status"] != string(store.StatusCompleted) {
		t.Errorf("final status = %v", sess["status"])
	}
	if entries := body["entries"].([]any); len(entries) != 4 {
		t.Errorf("entries = %d, want 4", len(entries))
	}
	if got := f.store.get("sess-1"); got.Status != store.StatusCompleted {
		t.Errorf("stored status = %v", got.Status)
	}
}

func TestStartWithoutCredits(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.seedSession("sess-1")
	f.gate.available = 0

	status, body := f.do(t, http.MethodPost, "/v1/sessions/sess-1/start", nil)
	if status != http.StatusPaymentRequired {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if code := errorCode(t, body); code != "entitlement_exhausted" {
		t.Errorf("code = %q", code)
	}
}

func TestTurnBeforeStart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.seedSession("sess-1")

	status, body := f.do(t, http.MethodPost, "/v1/sessions/sess-1/turn", []byte("clip"))
	if status != http.StatusConflict {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if code := errorCode(t, body); code != "session_not_active" {
		t.Errorf("code = %q", code)
	}
}

func TestTurnRejectsNonAudioBody(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.seedSession("sess-1")
	if status, _ := f.do(t, http.MethodPost, "/v1/sessions/sess-1/start", nil); status != http.StatusOK {
		t.Fatalf("start failed: %d", status)
	}

	status, _ := f.do(t, http.MethodPost, "/v1/sessions/sess-1/turn", map[string]string{"not": "audio"})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
}

func TestCancelTurnWithoutTurn(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.seedSession("sess-1")
	if status, _ := f.do(t, http.MethodPost, "/v1/sessions/sess-1/start", nil); status != http.StatusOK {
		t.Fatal("start failed")
	}

	status, _ := f.do(t, http.MethodPost, "/v1/sessions/sess-1/turn/cancel", nil)
	if status != http.StatusConflict {
		t.Fatalf("status = %d", status)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	for _, path := range []string{
		"/v1/sessions/nope",
		"/v1/sessions/nope/start",
		"/v1/sessions/nope/end",
	} {
		method := http.MethodPost
		if path == "/v1/sessions/nope" {
			method = http.MethodGet
		}
		status, body := f.do(t, method, path, nil)
		if status != http.StatusNotFound {
			t.Errorf("%s: status = %d, body = %v", path, status, body)
		}
	}
}

func TestMessageAfterCompletion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.seedSession("sess-1")
	if status, _ := f.do(t, http.MethodPost, "/v1/sessions/sess-1/start", nil); status != http.StatusOK {
		t.Fatal("start failed")
	}
	if status, _ := f.do(t, http.MethodPost, "/v1/sessions/sess-1/end", nil); status != http.StatusOK {
		t.Fatal("end failed")
	}

	status, body := f.do(t, http.MethodPost, "/v1/sessions/sess-1/message", map[string]string{
		"text": "What should I improve?",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	// Post-completion messages write through immediately.
	entries := f.store.entriesFor("sess-1")
	if len(entries) != 2 {
		t.Fatalf("durable entries = %d, want 2", len(entries))
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		status, _ := f.do(t, http.MethodGet, path, nil)
		if status != http.StatusOK {
			t.Errorf("%s: status = %d", path, status)
		}
	}
}
