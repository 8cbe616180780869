package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mockview/mockview/internal/entitlement"
	"github.com/mockview/mockview/internal/interview"
	"github.com/mockview/mockview/internal/resume"
	"github.com/mockview/mockview/internal/store"
	"github.com/mockview/mockview/pkg/types"
)

// ─── Wire types ──────────────────────────────────────────────────────────────

type sessionJSON struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Company          string    `json:"company"`
	Role             string    `json:"role"`
	Status           string    `json:"status"`
	RemainingSeconds int       `json:"remaining_seconds"`
	DurationSeconds  int       `json:"duration_seconds"`
	CVSummary        string    `json:"cv_summary,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type entryJSON struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type entitlementJSON struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Available      int    `json:"available"`
	TotalGranted   int    `json:"total_granted"`
	TotalCompleted int    `json:"total_completed"`
}

func toSessionJSON(s store.Session) *sessionJSON {
	return &sessionJSON{
		ID:               s.ID,
		UserID:           s.UserID,
		Company:          s.Company,
		Role:             s.Role,
		Status:           string(s.Status),
		RemainingSeconds: s.RemainingSeconds,
		DurationSeconds:  s.DurationSeconds,
		CVSummary:        s.CVSummary,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func toEntryJSON(e types.Entry) entryJSON {
	return entryJSON{ID: e.ID, Role: string(e.Role), Text: e.Text, CreatedAt: e.CreatedAt}
}

func toEntriesJSON(entries []types.Entry) []entryJSON {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryJSON(e))
	}
	return out
}

func toEntitlementJSON(e store.Entitlement) entitlementJSON {
	return entitlementJSON{
		UserID:         e.UserID,
		Email:          e.Email,
		Available:      e.Available,
		TotalGranted:   e.TotalGranted,
		TotalCompleted: e.TotalCompleted,
	}
}

// ─── Responses ───────────────────────────────────────────────────────────────

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":{"code":"internal","message":"response encoding failed"}}`, http.StatusInternalServerError)
	}
}

// writeError maps a domain error onto an HTTP status and the JSON error
// envelope.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: err.Error()}})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: "bad_request", Message: msg}})
}

// classify maps engine errors onto HTTP semantics: refused preconditions
// become 402/403/409, bad turn input 400/422, provider trouble 502, and
// anything durable 500.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, interview.ErrEntitlementExhausted),
		errors.Is(err, entitlement.ErrExhausted):
		return http.StatusPaymentRequired, "entitlement_exhausted"
	case errors.Is(err, interview.ErrPermissionDenied):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, interview.ErrTurnInFlight):
		return http.StatusConflict, "turn_in_flight"
	case errors.Is(err, interview.ErrSessionEnded):
		return http.StatusConflict, "session_ended"
	case errors.Is(err, interview.ErrSessionNotActive):
		return http.StatusConflict, "session_not_active"
	case errors.Is(err, interview.ErrNoTurn),
		errors.Is(err, interview.ErrInvalidTransition):
		return http.StatusConflict, "conflict"
	case errors.Is(err, interview.ErrTranscriptionFailed):
		return http.StatusUnprocessableEntity, "transcription_failed"
	case errors.Is(err, interview.ErrGenerationFailed):
		return http.StatusBadGateway, "generation_failed"
	case errors.Is(err, resume.ErrEmptyResume):
		return http.StatusBadRequest, "empty_resume"
	case errors.Is(err, interview.ErrFinalizationFailed):
		return http.StatusInternalServerError, "finalization_failed"
	case errors.Is(err, interview.ErrPersistenceFailed):
		return http.StatusInternalServerError, "persistence_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
