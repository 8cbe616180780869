package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/mockview/mockview/internal/interview"
	"github.com/mockview/mockview/internal/store"
	"github.com/mockview/mockview/pkg/audio"
)

// watchEvent is one frame pushed down a watch socket.
type watchEvent struct {
	Type    string       `json:"type"`
	Session *sessionJSON `json:"session,omitempty"`
	State   string       `json:"state,omitempty"`
	Entries []entryJSON  `json:"entries,omitempty"`
	Seconds int          `json:"seconds,omitempty"`
}

// captureEvent is one frame pushed down a capture socket.
type captureEvent struct {
	Type     string     `json:"type"`
	Question *entryJSON `json:"question,omitempty"`
	Answer   *entryJSON `json:"answer,omitempty"`
	Code     string     `json:"code,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// handleWatch streams session updates to a review client: an initial
// snapshot, then store change notifications and controller notices
// (time warnings, resume, end) as they happen.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ctrl, err := s.cfg.Sessions.Controller(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "watch closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client sends nothing meaningful; reading keeps the connection's
	// control frames flowing and detects the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	notices, unsubscribe := s.notices.subscribe(sessionID)
	defer unsubscribe()

	var updates <-chan store.Update
	if s.cfg.Watcher != nil {
		updates, err = s.cfg.Watcher.Watch(ctx, sessionID)
		if err != nil {
			s.logger.Warn("store watch unavailable, serving notices only",
				"session_id", sessionID, "error", err)
			updates = nil
		}
	}

	sess, entries := ctrl.Snapshot()
	state, _ := ctrl.Status()
	if err := wsjson.Write(ctx, conn, watchEvent{
		Type:    "snapshot",
		Session: toSessionJSON(sess),
		State:   string(state),
		Entries: toEntriesJSON(entries),
	}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case n, ok := <-notices:
			if !ok {
				return
			}
			ev := watchEvent{Type: string(n.Kind), Seconds: n.Seconds}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
			if n.Kind == interview.NoticeEnded {
				// One final snapshot so the client sees the completed
				// session and full transcript before the stream ends.
				sess, entries := ctrl.Snapshot()
				state, _ := ctrl.Status()
				_ = wsjson.Write(ctx, conn, watchEvent{
					Type:    "snapshot",
					Session: toSessionJSON(sess),
					State:   string(state),
					Entries: toEntriesJSON(entries),
				})
				conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}

		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			var ev watchEvent
			switch u.Kind {
			case store.UpdateChat:
				_, entries := ctrl.Snapshot()
				ev = watchEvent{Type: "chat", Entries: toEntriesJSON(entries)}
			default:
				sess, _ := ctrl.Snapshot()
				state, _ := ctrl.Status()
				ev = watchEvent{Type: "session", Session: toSessionJSON(sess), State: string(state)}
			}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

// handleCapture accepts live microphone audio for recorded turns: binary
// frames carry Opus packets, and the text commands "stop" and "cancel"
// close out the current utterance. Each completed utterance runs a full
// turn and the resulting question/answer pair is pushed back.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ctrl, err := s.cfg.Sessions.Controller(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "capture closed")

	dec, err := audio.NewOpusDecoder(audio.CaptureSampleRate, audio.CaptureChannels)
	if err != nil {
		s.logger.Error("opus decoder init failed", "session_id", sessionID, "error", err)
		conn.Close(websocket.StatusInternalError, "decoder unavailable")
		return
	}
	rec := audio.NewRecorder(audio.CaptureSampleRate, audio.CaptureChannels, audio.DefaultRMSThreshold)

	ctx := r.Context()
	capturing := false
	defer func() {
		// A connection dropped mid-utterance must not leave the session
		// stuck in the capturing state.
		if capturing {
			_ = ctrl.CancelTurn()
		}
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		switch typ {
		case websocket.MessageBinary:
			if !capturing {
				if err := ctrl.StartTurn(); err != nil {
					s.sendCaptureError(ctx, conn, err)
					continue
				}
				capturing = true
				rec.Reset()
			}
			pcm, err := dec.Decode(data)
			if err != nil {
				s.logger.Warn("dropping undecodable opus packet",
					"session_id", sessionID, "error", err)
				continue
			}
			rec.Write(pcm)

		case websocket.MessageText:
			switch cmd := strings.TrimSpace(string(data)); cmd {
			case "stop":
				if !capturing {
					continue
				}
				capturing = false
				clip := rec.WAV()
				if clip == nil {
					_ = ctrl.CancelTurn()
					_ = wsjson.Write(ctx, conn, captureEvent{Type: "discarded"})
					continue
				}
				res, err := ctrl.FinishTurn(ctx, clip, "audio/wav")
				if err != nil {
					s.sendCaptureError(ctx, conn, err)
					continue
				}
				q, a := toEntryJSON(res.Question), toEntryJSON(res.Answer)
				if err := wsjson.Write(ctx, conn, captureEvent{
					Type:     "turn",
					Question: &q,
					Answer:   &a,
				}); err != nil {
					return
				}

			case "cancel":
				if capturing {
					capturing = false
					rec.Reset()
					_ = ctrl.CancelTurn()
				}
				_ = wsjson.Write(ctx, conn, captureEvent{Type: "cancelled"})

			default:
				_ = wsjson.Write(ctx, conn, captureEvent{
					Type:    "error",
					Code:    "bad_request",
					Message: "unknown command " + cmd,
				})
			}
		}
	}
}

func (s *Server) sendCaptureError(ctx context.Context, conn *websocket.Conn, err error) {
	_, code := classify(err)
	_ = wsjson.Write(ctx, conn, captureEvent{Type: "error", Code: code, Message: err.Error()})
}
