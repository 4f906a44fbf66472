package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/health"
)

var testClk = clock.NewMock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

func TestLivenessHandler(t *testing.T) {
	h := health.NewHandler(testClk)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	h.LivenessHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	var s health.Status
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.Status != "ok" {
		t.Errorf("got status %q, want %q", s.Status, "ok")
	}
	if s.Timestamp != "2025-06-15T12:00:00Z" {
		t.Errorf("got timestamp %q", s.Timestamp)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		hosting    bool
		checkers   []health.Checker
		wantCode   int
		wantStatus string
		wantRole   string
	}{
		{
			name:       "not ready",
			ready:      false,
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
		},
		{
			name:       "standby replica",
			ready:      true,
			wantCode:   http.StatusOK,
			wantStatus: "ready",
			wantRole:   health.RoleStandby,
		},
		{
			name:    "hosting all checks pass",
			ready:   true,
			hosting: true,
			checkers: []health.Checker{
				{Name: "store", Check: func(ctx context.Context) error { return nil }},
				{Name: "catalog", Check: func(ctx context.Context) error { return nil }},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
			wantRole:   health.RoleHost,
		},
		{
			name:    "hosting but store down",
			ready:   true,
			hosting: true,
			checkers: []health.Checker{
				{Name: "store", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
			wantRole:   health.RoleHost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := health.NewHandler(testClk, tt.checkers...)
			h.SetReady(tt.ready)
			h.SetHosting(tt.hosting)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

			h.ReadinessHandler().ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("got status %d, want %d", rec.Code, tt.wantCode)
			}
			var s health.Status
			if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
				t.Fatal(err)
			}
			if s.Status != tt.wantStatus {
				t.Errorf("got status %q, want %q", s.Status, tt.wantStatus)
			}
			if s.Role != tt.wantRole {
				t.Errorf("got role %q, want %q", s.Role, tt.wantRole)
			}
		})
	}
}

func TestRoutes_ReportsGauges(t *testing.T) {
	h := health.NewHandler(testClk)
	h.AddGauge(health.Gauge{Name: "sessions", Value: func() int { return 3 }})
	h.SetReady(true)

	mux := http.NewServeMux()
	h.Routes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	var s health.Status
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.Gauges["sessions"] != 3 {
		t.Errorf("got gauges %v, want sessions=3", s.Gauges)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestReadinessHandler_ReportsEveryCheck(t *testing.T) {
	h := health.NewHandler(testClk,
		health.Checker{Name: "store", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
		health.Checker{Name: "catalog", Check: func(ctx context.Context) error { return nil }},
	)
	h.SetReady(true)

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var s health.Status
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.Checks["store"] != "connection refused" {
		t.Errorf("store check = %q", s.Checks["store"])
	}
	if s.Checks["catalog"] != "ok" {
		t.Errorf("catalog check = %q, want ok", s.Checks["catalog"])
	}
}

func TestReadinessHandler_ChecksShareDeadline(t *testing.T) {
	h := health.NewHandler(testClk, health.Checker{Name: "store", Check: func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	}})
	h.SetReady(true)

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusOK)
	}
}
