// Package health provides HTTP liveness and readiness handlers for the ops
// server.
//
//   - /healthz is a liveness probe; it returns 200 whenever the process can
//     serve HTTP.
//   - /readyz evaluates every registered [Checker] and returns 200 only when
//     all of them pass.
//
// Responses are JSON objects with a top-level "status" field ("ok" or
// "fail") and a "checks" map with one entry per named checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds how long a single readiness check may run.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. Check returns nil when the dependency
// is usable and an error describing the failure otherwise. Check must
// respect context cancellation.
type Checker struct {
	// Name labels the check in the JSON response (e.g. "stt", "archive").
	Name string

	Check func(ctx context.Context) error
}

// CheckFunc wraps a bare function as a [Checker].
func CheckFunc(name string, fn func(ctx context.Context) error) Checker {
	return Checker{Name: name, Check: fn}
}

type checkResult struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed"`
}

type response struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves the health endpoints. The checker list is fixed at
// construction time, which keeps the handler safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers, in order, on
// each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always reports ok. A process that answers HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz runs every checker with a [checkTimeout] deadline derived from the
// request context and reports 503 when any of them fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]checkResult, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		start := time.Now()
		err := c.Check(ctx)
		elapsed := time.Since(start)
		cancel()

		res := checkResult{Status: "ok", Elapsed: elapsed.Round(time.Microsecond).String()}
		if err != nil {
			res.Status = "fail"
			res.Error = err.Error()
			allOK = false
		}
		checks[c.Name] = res
	}

	out := response{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		out.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, out)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
