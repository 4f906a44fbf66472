// Package health serves liveness and readiness for auctiond. Readiness
// reports whether this replica hosts auction rooms or stands by for the
// lease, alongside dependency checks and live counters.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/draft-auction/internal/clock"
)

// Replica roles reported by readiness.
const (
	RoleHost    = "host"
	RoleStandby = "standby"
)

// checkTimeout bounds every dependency check of one readiness probe.
const checkTimeout = 5 * time.Second

// Status is the JSON body of both probes.
type Status struct {
	Status    string            `json:"status"`
	Role      string            `json:"role,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Gauges    map[string]int    `json:"gauges,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Checker is a named dependency check, e.g. the store or the catalog.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Gauge is a named value reported alongside readiness, e.g. live sessions.
type Gauge struct {
	Name  string
	Value func() int
}

// Handler provides HTTP health check endpoints.
type Handler struct {
	mu       sync.RWMutex
	ready    bool
	hosting  bool
	checkers []Checker
	gauges   []Gauge
	clock    clock.Clock
}

// NewHandler creates a new health handler with the given checkers.
func NewHandler(clk clock.Clock, checkers ...Checker) *Handler {
	return &Handler{checkers: checkers, clock: clk}
}

// AddGauge registers g for the readiness report.
func (h *Handler) AddGauge(g Gauge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gauges = append(h.gauges, g)
}

// SetReady marks the replica as started: config, store and catalog loaded.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// SetHosting records whether this replica currently hosts auction rooms.
func (h *Handler) SetHosting(hosting bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hosting = hosting
}

// Routes registers /healthz and /readyz on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.LivenessHandler())
	mux.HandleFunc("GET /readyz", h.ReadinessHandler())
}

// LivenessHandler returns HTTP 200 if the process is alive.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Status{
			Status:    "ok",
			Timestamp: h.now(),
		})
	}
}

// ReadinessHandler returns HTTP 200 once the replica has started and every
// checker passes. A standby replica is ready too; the role field tells it
// apart from the host.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		ready, hosting := h.ready, h.hosting
		checkers := h.checkers
		gauges := h.gauges
		h.mu.RUnlock()

		if !ready {
			writeJSON(w, http.StatusServiceUnavailable, Status{
				Status:    "not_ready",
				Timestamp: h.now(),
			})
			return
		}

		checks, allOK := runChecks(r.Context(), checkers)

		var values map[string]int
		if len(gauges) > 0 {
			values = make(map[string]int, len(gauges))
			for _, g := range gauges {
				values[g.Name] = g.Value()
			}
		}

		role := RoleStandby
		if hosting {
			role = RoleHost
		}
		status := "ready"
		code := http.StatusOK
		if !allOK {
			status = "not_ready"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, Status{
			Status:    status,
			Role:      role,
			Checks:    checks,
			Gauges:    values,
			Timestamp: h.now(),
		})
	}
}

// runChecks runs every checker concurrently under one deadline. A failing
// check does not cut the others short.
func runChecks(ctx context.Context, checkers []Checker) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	results := make([]error, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = c.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	checks := make(map[string]string, len(checkers))
	allOK := true
	for i, c := range checkers {
		if results[i] != nil {
			checks[c.Name] = results[i].Error()
			allOK = false
			continue
		}
		checks[c.Name] = "ok"
	}
	return checks, allOK
}

func (h *Handler) now() string {
	return h.clock.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
