// Package health serves the liveness and readiness probes.
//
// /healthz answers 200 whenever the process can serve HTTP at all.
// /readyz probes every registered dependency concurrently and answers
// 200 only when all of them pass; a failing dependency turns the reply
// into a 503 with the per-check verdicts in the body, so an operator can
// see which dependency is down without reading logs.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// probeDeadline bounds a single dependency probe. A probe slower than
// this counts as failed.
const probeDeadline = 5 * time.Second

// Checker is a named dependency probe. Check returns nil when the
// dependency is usable and must respect context cancellation.
type Checker struct {
	// Name labels the check in the /readyz body ("database", "providers").
	Name string

	// Check probes the dependency.
	Check func(ctx context.Context) error
}

// report is the probe response body.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the two probe endpoints. The checker list is fixed at
// construction, so Handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New builds a Handler that evaluates the given checkers on each
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz is the liveness probe. Always 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, report{Status: "ok"})
}

// Readyz is the readiness probe. All checkers run concurrently, each
// against its own probeDeadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	verdicts := make([]string, len(h.checkers))

	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), probeDeadline)
			defer cancel()
			if err := c.Check(ctx); err != nil {
				verdicts[i] = "fail: " + err.Error()
			} else {
				verdicts[i] = "ok"
			}
		}()
	}
	wg.Wait()

	res := report{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		res.Checks[c.Name] = verdicts[i]
		if verdicts[i] != "ok" {
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		}
	}
	writeReport(w, status, res)
}

func writeReport(w http.ResponseWriter, status int, res report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// The body is a map of small strings; encoding cannot realistically
	// fail, and the status line is already out if it somehow does.
	_ = json.NewEncoder(w).Encode(res)
}
