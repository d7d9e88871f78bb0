package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveEmbed(EmbedOK, time.Millisecond)
	m.SetModelState("ready", "idle", "ready")
	m.AddImport(1, 2)
	m.IncExport()
	m.AddBackfilled(3)
	m.ObserveJob("autosave", nil)
	m.ObserveHTTP("GET", "/health", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("nil metrics handler status = %d, want 404", rec.Code)
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveEmbed(EmbedOK, 10*time.Millisecond)
	m.ObserveEmbed(EmbedError, 0)
	m.ObserveEmbed(EmbedError, 0)
	m.AddImport(5, 1)
	m.IncExport()
	m.ObserveJob("autosave", errors.New("disk full"))

	if got := testutil.ToFloat64(m.embedCalls.WithLabelValues(EmbedError)); got != 2 {
		t.Errorf("embed errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.importEntities.WithLabelValues("imported")); got != 5 {
		t.Errorf("imported = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.exports); got != 1 {
		t.Errorf("exports = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("autosave", "error")); got != 1 {
		t.Errorf("job errors = %v, want 1", got)
	}

	m.ObserveHTTP("POST", "/api/save/import", 400, time.Millisecond)
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/save/import", "400")); got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}
}

func TestMetrics_ModelStateIsExclusive(t *testing.T) {
	m := NewMetrics()
	states := []string{"idle", "loading", "ready", "error"}

	m.SetModelState("loading", states...)
	m.SetModelState("ready", states...)

	for _, s := range states {
		want := 0.0
		if s == "ready" {
			want = 1
		}
		if got := testutil.ToFloat64(m.modelState.WithLabelValues(s)); got != want {
			t.Errorf("state %s = %v, want %v", s, got, want)
		}
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.IncExport()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "utsuwa_savefile_exports_total 1") {
		t.Errorf("exposition missing export counter:\n%s", body)
	}
}

func TestSetupTracing_DisabledIsNoop(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	_, span := StartSpan(context.Background(), "noop")
	EndSpan(span, errors.New("ignored by the no-op tracer"))
}
