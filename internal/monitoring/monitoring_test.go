package monitoring

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestSnapshotComputesAndResets(t *testing.T) {
	agg := New(Options{}, zerolog.Nop())

	agg.TrackAPICall(100*time.Millisecond, true, false)
	agg.TrackAPICall(150*time.Millisecond, false, false)
	agg.TrackAPICall(200*time.Millisecond, false, true)

	m := agg.Snapshot()
	if !almostEqual(m.ResponseTime, 150) {
		t.Errorf("responseTime = %f, want 150", m.ResponseTime)
	}
	if !almostEqual(m.CacheHitRate, 33.33) {
		t.Errorf("cacheHitRate = %f, want 33.33", m.CacheHitRate)
	}
	if !almostEqual(m.ErrorRate, 33.33) {
		t.Errorf("errorRate = %f, want 33.33", m.ErrorRate)
	}
	if m.APICalls != 3 {
		t.Errorf("apiCalls = %d, want 3", m.APICalls)
	}

	// Counters reset after the snapshot; an empty window is all zero.
	empty := agg.Snapshot()
	if empty.APICalls != 0 || empty.ResponseTime != 0 || empty.ErrorRate != 0 || empty.CacheHitRate != 0 {
		t.Fatalf("second window not reset: %+v", empty)
	}
}

func TestTrackCacheHitLeavesResponseTimeAlone(t *testing.T) {
	agg := New(Options{}, zerolog.Nop())

	agg.TrackAPICall(100*time.Millisecond, false, false)
	agg.TrackCacheHit()
	agg.TrackCacheHit()

	m := agg.Snapshot()
	if !almostEqual(m.ResponseTime, 100) {
		t.Errorf("cache hits must not dilute the latency mean, got %f", m.ResponseTime)
	}
	if !almostEqual(m.CacheHitRate, 66.67) {
		t.Errorf("cacheHitRate = %f, want 66.67", m.CacheHitRate)
	}
	if m.APICalls != 3 {
		t.Errorf("apiCalls = %d, want 3", m.APICalls)
	}
	if m.ErrorRate != 0 {
		t.Errorf("errorRate = %f, want 0", m.ErrorRate)
	}
}

func TestGetMetricsReportsPreviousWindow(t *testing.T) {
	agg := New(Options{}, zerolog.Nop())

	if got := agg.GetMetrics(); got.APICalls != 0 {
		t.Fatalf("expected zero metrics before first snapshot, got %+v", got)
	}

	agg.TrackAPICall(40*time.Millisecond, false, false)
	agg.Snapshot()

	// Calls after the snapshot do not show up until the next one.
	agg.TrackAPICall(999*time.Millisecond, false, true)
	got := agg.GetMetrics()
	if got.APICalls != 1 || !almostEqual(got.ResponseTime, 40) || got.ErrorRate != 0 {
		t.Fatalf("unexpected metrics: %+v", got)
	}
}

func TestErrorLogBoundedAndFiltered(t *testing.T) {
	agg := New(Options{MaxErrorEvents: 5}, zerolog.Nop())

	for i := 0; i < 8; i++ {
		sev := SeverityLow
		if i%2 == 0 {
			sev = SeverityHigh
		}
		agg.LogError(ErrorEvent{Code: "E", Message: "boom", Severity: sev})
	}

	all := agg.RecentErrors("")
	if len(all) != 5 {
		t.Fatalf("expected 5 retained events, got %d", len(all))
	}

	high := agg.RecentErrors(SeverityHigh)
	for _, e := range high {
		if e.Severity != SeverityHigh {
			t.Fatalf("filter leaked severity %s", e.Severity)
		}
	}
	if len(high)+len(agg.RecentErrors(SeverityLow)) != 5 {
		t.Fatal("severity filters do not partition the retained events")
	}
}

func TestCriticalHook(t *testing.T) {
	var hooked []ErrorEvent
	agg := New(Options{OnCritical: func(e ErrorEvent) { hooked = append(hooked, e) }}, zerolog.Nop())

	agg.LogError(ErrorEvent{Code: "WARN", Severity: SeverityMedium})
	agg.LogError(ErrorEvent{Code: "FATAL", Severity: SeverityCritical})

	if len(hooked) != 1 || hooked[0].Code != "FATAL" {
		t.Fatalf("expected one critical hook call, got %+v", hooked)
	}
	if hooked[0].Timestamp.IsZero() {
		t.Fatal("event timestamp not stamped")
	}
}

func TestHealthStatus(t *testing.T) {
	start := time.Date(2024, 10, 4, 10, 0, 0, 0, time.UTC)
	now := start.Add(90 * time.Second)
	agg := New(Options{
		StartTime: start,
		Version:   "1.2.3",
		Clock:     func() time.Time { return now },
	}, zerolog.Nop())

	h := agg.HealthStatus()
	if h.Status != "healthy" {
		t.Fatalf("expected healthy, got %s", h.Status)
	}
	if h.Uptime != 90 {
		t.Fatalf("uptime = %f, want 90", h.Uptime)
	}
	if h.Version != "1.2.3" {
		t.Fatalf("version = %s", h.Version)
	}
	if h.LastError != nil {
		t.Fatal("expected no last error")
	}

	// One failing call in a window of ten crosses the 5% bar.
	for i := 0; i < 9; i++ {
		agg.TrackAPICall(10*time.Millisecond, false, false)
	}
	agg.TrackAPICall(10*time.Millisecond, false, true)
	agg.Snapshot()
	agg.LogError(ErrorEvent{Code: "HTTP_500", Severity: SeverityHigh})

	h = agg.HealthStatus()
	if h.Status != "degraded" {
		t.Fatalf("expected degraded at 10%% error rate, got %s", h.Status)
	}
	if h.LastError == nil || h.LastError.Code != "HTTP_500" {
		t.Fatalf("expected last error HTTP_500, got %+v", h.LastError)
	}
}

func TestTransportRecordsOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	agg := New(Options{}, zerolog.Nop())
	client := &http.Client{Transport: NewTransport(nil, agg)}

	for _, path := range []string{"/ok", "/missing", "/boom"} {
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
	}

	m := agg.Snapshot()
	if m.APICalls != 3 {
		t.Fatalf("apiCalls = %d, want 3", m.APICalls)
	}
	if !almostEqual(m.ErrorRate, 66.67) {
		t.Fatalf("errorRate = %f, want 66.67", m.ErrorRate)
	}

	if got := agg.RecentErrors(SeverityHigh); len(got) != 1 || got[0].Code != "HTTP_500" {
		t.Fatalf("expected one high-severity HTTP_500 event, got %+v", got)
	}
	if got := agg.RecentErrors(SeverityMedium); len(got) != 1 || got[0].Code != "HTTP_404" {
		t.Fatalf("expected one medium-severity HTTP_404 event, got %+v", got)
	}
}

func TestTransportPassesThroughNetworkErrors(t *testing.T) {
	agg := New(Options{}, zerolog.Nop())
	client := &http.Client{Transport: NewTransport(nil, agg)}

	_, err := client.Get("http://127.0.0.1:1/unreachable")
	if err == nil {
		t.Fatal("expected connection error")
	}

	events := agg.RecentErrors("")
	if len(events) != 1 || events[0].Code != "TRANSPORT_ERROR" {
		t.Fatalf("expected one TRANSPORT_ERROR event, got %+v", events)
	}
	if m := agg.Snapshot(); m.ErrorRate != 100 {
		t.Fatalf("errorRate = %f, want 100", m.ErrorRate)
	}
}
