package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mockview/mockview/internal/store"
)

// maxClipBytes caps a single recorded-turn upload. A 20-minute session
// never produces a clip anywhere near this.
const maxClipBytes = 25 << 20

// ─── Users ───────────────────────────────────────────────────────────────────

type registerUserRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeBadRequest(w, "user_id is required")
		return
	}

	if err := s.cfg.Accounts.Register(r.Context(), req.UserID, req.Email); err != nil {
		writeError(w, err)
		return
	}
	ent, err := s.cfg.Accounts.Summary(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntitlementJSON(ent))
}

func (s *Server) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	ent, err := s.cfg.Accounts.Summary(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntitlementJSON(ent))
}

// ─── Sessions ────────────────────────────────────────────────────────────────

type createSessionRequest struct {
	UserID          string `json:"user_id"`
	Company         string `json:"company"`
	Role            string `json:"role"`
	DurationSeconds int    `json:"duration_seconds"`
	ResumeText      string `json:"resume_text"`
}

type createSessionResponse struct {
	Session       *sessionJSON `json:"session"`
	ResumeIndexed bool         `json:"resume_indexed"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	switch {
	case strings.TrimSpace(req.UserID) == "":
		writeBadRequest(w, "user_id is required")
		return
	case strings.TrimSpace(req.Company) == "":
		writeBadRequest(w, "company is required")
		return
	case strings.TrimSpace(req.Role) == "":
		writeBadRequest(w, "role is required")
		return
	}
	if strings.TrimSpace(req.ResumeText) != "" && s.cfg.Ingestor == nil {
		writeBadRequest(w, "resume upload is not enabled")
		return
	}

	duration := req.DurationSeconds
	if duration <= 0 {
		duration = s.cfg.DefaultDurationSeconds
	}

	sess := store.Session{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		Company:          req.Company,
		Role:             req.Role,
		Status:           store.StatusNotStarted,
		RemainingSeconds: duration,
		DurationSeconds:  duration,
	}
	if err := s.cfg.Store.CreateSession(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}

	// Résumé ingestion is best-effort: the session is usable without it,
	// so an indexing failure degrades the persona instead of failing the
	// request.
	indexed := false
	if strings.TrimSpace(req.ResumeText) != "" {
		summary, err := s.cfg.Ingestor.Ingest(r.Context(), sess.ID, req.ResumeText)
		if err != nil {
			s.logger.Warn("résumé ingestion failed", "session_id", sess.ID, "error", err)
		} else {
			indexed = true
			sess.CVSummary = summary
		}
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		Session:       toSessionJSON(sess),
		ResumeIndexed: indexed,
	})
}

type sessionStateResponse struct {
	Session *sessionJSON `json:"session"`
	State   string       `json:"state"`
	Entries []entryJSON  `json:"entries,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.cfg.Sessions.Controller(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess, entries := ctrl.Snapshot()
	state, _ := ctrl.Status()
	writeJSON(w, http.StatusOK, sessionStateResponse{
		Session: toSessionJSON(sess),
		State:   string(state),
		Entries: toEntriesJSON(entries),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.cfg.Sessions.Controller(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ctrl.Begin(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	sess, _ := ctrl.Snapshot()
	state, _ := ctrl.Status()
	writeJSON(w, http.StatusOK, sessionStateResponse{
		Session: toSessionJSON(sess),
		State:   string(state),
	})
}

type turnResponse struct {
	Question entryJSON `json:"question"`
	Answer   entryJSON `json:"answer"`
}

// handleTurn accepts one recorded utterance — either a multipart form with
// an "audio" part or a raw audio body — and runs the full turn.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.cfg.Sessions.Controller(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	clip, mimeType, err := readClip(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(clip) == 0 {
		writeBadRequest(w, "empty audio clip")
		return
	}

	res, err := ctrl.FinishTurn(r.Context(), clip, mimeType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{
		Question: toEntryJSON(res.Question),
		Answer:   toEntryJSON(res.Answer),
	})
}

func (s *Server) handleCancelTurn(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.cfg.Sessions.Controller(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ctrl.CancelTurn(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeBadRequest(w, "text is required")
		return
	}

	ctrl, err := s.cfg.Sessions.Controller(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	reply, err := ctrl.Ask(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryJSON(reply))
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.cfg.Sessions.Controller(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ctrl.End(r.Context(), true); err != nil {
		writeError(w, err)
		return
	}
	sess, entries := ctrl.Snapshot()
	state, _ := ctrl.Status()
	writeJSON(w, http.StatusOK, sessionStateResponse{
		Session: toSessionJSON(sess),
		State:   string(state),
		Entries: toEntriesJSON(entries),
	})
}

// ─── Request helpers ─────────────────────────────────────────────────────────

// decodeJSON strictly decodes a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

// readClip extracts the uploaded audio and its MIME type, from either a
// multipart "audio" part or the raw request body.
func readClip(r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxClipBytes)

	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, "", errors.New("missing Content-Type")
	}

	if contentType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxClipBytes); err != nil {
			return nil, "", errors.New("invalid multipart body: " + err.Error())
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			return nil, "", errors.New(`multipart body needs an "audio" part`)
		}
		defer file.Close()
		clip, err := io.ReadAll(file)
		if err != nil {
			return nil, "", errors.New("reading audio part: " + err.Error())
		}
		partType := header.Header.Get("Content-Type")
		if partType == "" {
			partType = "audio/wav"
		}
		return clip, partType, nil
	}

	if !strings.HasPrefix(contentType, "audio/") {
		return nil, "", errors.New("body must be audio/* or multipart/form-data")
	}
	clip, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", errors.New("reading audio body: " + err.Error())
	}
	return clip, contentType, nil
}
