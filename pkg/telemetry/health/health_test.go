package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChecker_Liveness(t *testing.T) {
	checker := New(0)
	rec := httptest.NewRecorder()
	checker.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "ok" {
		t.Errorf("status = %q, want ok", status.Status)
	}
}

func TestChecker_Readiness(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]CheckFunc
		wantCode int
		want     string
	}{
		{
			name:     "no checks",
			checks:   nil,
			wantCode: http.StatusOK,
			want:     "ready",
		},
		{
			name: "all passing",
			checks: map[string]CheckFunc{
				"upstream_token": func(context.Context) error { return nil },
				"journal":        func(context.Context) error { return nil },
			},
			wantCode: http.StatusOK,
			want:     "ready",
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"upstream_token": func(context.Context) error { return errors.New("authentication refused") },
				"journal":        func(context.Context) error { return nil },
			},
			wantCode: http.StatusServiceUnavailable,
			want:     "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			rec := httptest.NewRecorder()
			checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var status Status
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatal(err)
			}
			if status.Status != tt.want {
				t.Errorf("status = %q, want %q", status.Status, tt.want)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d check results, want %d", len(status.Checks), len(tt.checks))
			}
		})
	}
}

func TestChecker_Timeout(t *testing.T) {
	checker := New(20 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	if status.Checks["slow"].Status != "failing" {
		t.Errorf("slow check status = %q, want failing", status.Checks["slow"].Status)
	}
}

func TestChecker_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	New(0).ReadinessHandler()(rec, httptest.NewRequest(http.MethodPost, "/ready", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestChecker_ListChecks(t *testing.T) {
	checker := New(0)
	checker.RegisterCheck("journal", nil)
	checker.RegisterCheck("upstream_token", nil)

	names := checker.ListChecks()
	if len(names) != 2 || names[0] != "journal" || names[1] != "upstream_token" {
		t.Errorf("ListChecks() = %v", names)
	}
}
