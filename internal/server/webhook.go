package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// signatureHeader carries the lowercase hex HMAC-SHA256 of the raw request
// body, keyed with the shared webhook secret. An optional "sha256=" prefix
// is accepted.
const signatureHeader = "X-Webhook-Signature"

// checkoutCompleted is the only billing event that grants credits; all
// other events are acknowledged and ignored so the payment provider does
// not retry them.
const checkoutCompleted = "checkout.completed"

type webhookPayload struct {
	Event   string `json:"event"`
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Credits int    `json:"credits"`
}

// handleBillingWebhook verifies the payment provider's signature and
// credits the purchasing user. The signature covers the raw body, so the
// body is read before any decoding.
func (s *Server) handleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebhookSecret == "" {
		writeJSON(w, http.StatusForbidden, errorBody{Error: errorDetail{
			Code: "forbidden", Message: "billing webhook is not configured",
		}})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeBadRequest(w, "reading body: "+err.Error())
		return
	}

	if !s.verifySignature(body, r.Header.Get(signatureHeader)) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: errorDetail{
			Code: "forbidden", Message: "invalid webhook signature",
		}})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if payload.Event != checkoutCompleted {
		s.logger.Debug("ignoring billing event", "event", payload.Event)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if strings.TrimSpace(payload.UserID) == "" {
		writeBadRequest(w, "user_id is required")
		return
	}

	credits := payload.Credits
	if credits <= 0 {
		credits = s.cfg.CreditsPerPurchase
	}

	if err := s.cfg.Accounts.Grant(r.Context(), payload.UserID, payload.Email, credits); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("billing webhook granted credits",
		"user_id", payload.UserID, "credits", credits)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) verifySignature(body []byte, header string) bool {
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	got, err := hex.DecodeString(header)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
