package server_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/mockview/mockview/internal/server"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, f *fixture, payload map[string]any, signature string) (int, map[string]any) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/v1/billing/webhook", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}

	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, decoded
}

func TestWebhookGrantsCredits(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	payload := map[string]any{
		"event":   "checkout.completed",
		"user_id": "user-7",
		"email":   "seven@example.com",
		"credits": 3,
	}
	body, _ := json.Marshal(payload)

	status, resp := postWebhook(t, f, payload, signBody("test-webhook-secret", body))
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, resp)
	}
	grants := f.accounts.grantCalls()
	if len(grants) != 1 {
		t.Fatalf("grants = %+v", grants)
	}
	if g := grants[0]; g.UserID != "user-7" || g.Email != "seven@example.com" || g.N != 3 {
		t.Errorf("grant = %+v", g)
	}
}

func TestWebhookDefaultsCreditsPerPurchase(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil) // CreditsPerPurchase: 2
	payload := map[string]any{
		"event":   "checkout.completed",
		"user_id": "user-8",
	}
	body, _ := json.Marshal(payload)

	status, _ := postWebhook(t, f, payload, signBody("test-webhook-secret", body))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	grants := f.accounts.grantCalls()
	if len(grants) != 1 || grants[0].N != 2 {
		t.Errorf("grants = %+v", grants)
	}
}

func TestWebhookAcceptsPrefixedSignature(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	payload := map[string]any{"event": "checkout.completed", "user_id": "user-1"}
	body, _ := json.Marshal(payload)

	status, _ := postWebhook(t, f, payload, "sha256="+signBody("test-webhook-secret", body))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	payload := map[string]any{"event": "checkout.completed", "user_id": "user-1"}

	for name, sig := range map[string]string{
		"missing":      "",
		"wrong secret": signBody("other-secret", []byte(`{"event":"checkout.completed","user_id":"user-1"}`)),
		"not hex":      "zzzz",
	} {
		status, _ := postWebhook(t, f, payload, sig)
		if status != http.StatusForbidden {
			t.Errorf("%s: status = %d", name, status)
		}
	}
	if grants := f.accounts.grantCalls(); len(grants) != 0 {
		t.Errorf("grants = %+v", grants)
	}
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	payload := map[string]any{"event": "invoice.paid", "user_id": "user-1"}
	body, _ := json.Marshal(payload)

	status, resp := postWebhook(t, f, payload, signBody("test-webhook-secret", body))
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp["status"] != "ignored" {
		t.Errorf("response = %v", resp)
	}
	if grants := f.accounts.grantCalls(); len(grants) != 0 {
		t.Errorf("grants = %+v", grants)
	}
}

func TestWebhookDisabledWithoutSecret(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *server.Config) { cfg.WebhookSecret = "" })
	payload := map[string]any{"event": "checkout.completed", "user_id": "user-1"}
	body, _ := json.Marshal(payload)

	status, _ := postWebhook(t, f, payload, signBody("test-webhook-secret", body))
	if status != http.StatusForbidden {
		t.Fatalf("status = %d", status)
	}
}
