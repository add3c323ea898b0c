package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/connect/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	enabled := true
	return &config.MetricsConfig{
		Enabled:         &enabled,
		Namespace:       "test",
		DurationBuckets: []float64{0.1, 0.5, 1.0, 5.0},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
	if !collector.Enabled() {
		t.Error("expected collector to be enabled")
	}
}

func TestCollector_RecordRequest(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordRequest("GET", "stream", 200, 120*time.Millisecond, 4096)
	collector.RecordRequest("GET", "stream", 200, 80*time.Millisecond, 2048)
	collector.RecordRequest("POST", "forward", 0, 10*time.Millisecond, 0)

	if got := testutil.ToFloat64(collector.requestMetrics.requestsTotal.WithLabelValues("GET", "stream", "200")); got != 2 {
		t.Errorf("GET stream 200 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.requestMetrics.requestsTotal.WithLabelValues("POST", "forward", "error")); got != 1 {
		t.Errorf("POST forward error = %v, want 1", got)
	}
}

func TestCollector_UpstreamAndToken(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordUpstreamCall("GET", 401, 5*time.Millisecond)
	collector.RecordUpstreamCall("GET", 200, 5*time.Millisecond)
	collector.RecordTokenRenewal(true)
	collector.RecordTokenRenewal(false)

	um := collector.upstreamMetrics
	if got := testutil.ToFloat64(um.calls.WithLabelValues("GET", "401")); got != 1 {
		t.Errorf("401 calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(um.renewals.WithLabelValues("success")); got != 1 {
		t.Errorf("successful renewals = %v, want 1", got)
	}
	if got := testutil.ToFloat64(um.renewals.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed renewals = %v, want 1", got)
	}

	issued := time.Unix(1700000000, 0)
	collector.SetTokenTimes(issued, time.Time{})
	if got := testutil.ToFloat64(um.issued); got != 1700000000 {
		t.Errorf("issued gauge = %v", got)
	}
	if got := testutil.ToFloat64(um.expiry); got != 0 {
		t.Errorf("expiry gauge = %v, want 0 for unknown expiry", got)
	}
}

func TestCollector_Paging(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordPage(100)
	collector.RecordPage(0)
	collector.RecordStream(2, "complete")

	pm := collector.pagingMetrics
	if got := testutil.ToFloat64(pm.pages); got != 2 {
		t.Errorf("pages = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pm.entities); got != 100 {
		t.Errorf("entities = %v, want 100", got)
	}
	if got := testutil.ToFloat64(pm.streams.WithLabelValues("complete")); got != 1 {
		t.Errorf("complete streams = %v, want 1", got)
	}
}

func TestCollector_Journal(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordJournalWrite(true)
	collector.RecordJournalDrop()
	collector.RecordJournalPrune(12)

	jm := collector.journalMetrics
	if got := testutil.ToFloat64(jm.writes.WithLabelValues("success")); got != 1 {
		t.Errorf("writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(jm.dropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(jm.pruned); got != 12 {
		t.Errorf("pruned = %v, want 12", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	disabled := false
	registry := prometheus.NewRegistry()
	collector := NewCollector(&config.MetricsConfig{Enabled: &disabled}, registry)

	// Must not panic with nil sub-metrics.
	collector.RecordRequest("GET", "stream", 200, time.Millisecond, 10)
	collector.RecordUpstreamCall("GET", 200, time.Millisecond)
	collector.RecordTokenRenewal(true)
	collector.SetTokenTimes(time.Now(), time.Time{})
	collector.RecordPage(1)
	collector.RecordStream(1, "complete")
	collector.RecordJournalWrite(true)
	collector.RecordJournalDrop()
	collector.RecordJournalPrune(1)

	families, err := registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 0 {
		t.Errorf("expected no registered metrics, got %d", len(families))
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordUpstreamCall("GET", 200, time.Millisecond)

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "test_upstream_calls_total") {
		t.Errorf("expected upstream metric in exposition, got:\n%s", body)
	}
}
