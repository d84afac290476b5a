package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestMetrics_Exposition(t *testing.T) {
	m := New()
	m.ObserveRequest("/predict", 200)
	m.ObserveDetection("gun_shot", "CRITICAL")
	m.ObserveFailure("normalize", "validation")
	m.ObserveStage("extract", 20*time.Millisecond)
	m.ObserveBatch(3)
	m.ObserveLoad(errors.New("not yet"))
	m.ObserveLoad(nil)
	m.StreamConnected(1)

	body := scrape(t, m)
	for _, want := range []string{
		`ecosight_http_requests_total{code="200",route="/predict"} 1`,
		`ecosight_pipeline_detections_total{class="gun_shot",priority="CRITICAL"} 1`,
		`ecosight_pipeline_failures_total{kind="validation",stage="normalize"} 1`,
		`ecosight_pipeline_stage_duration_seconds_count{stage="extract"} 1`,
		`ecosight_pipeline_batch_size_sum 3`,
		`ecosight_models_load_attempts_total{result="error"} 1`,
		`ecosight_models_load_attempts_total{result="ok"} 1`,
		`ecosight_models_loaded 1`,
		`ecosight_stream_clients 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("/", 200)
	m.ObserveDetection("a", "LOW")
	m.ObserveFailure("s", "k")
	m.ObserveStage("s", time.Second)
	m.ObserveBatch(1)
	m.ObserveLoad(nil)
	m.StreamConnected(1)
	if m.Registry() != nil {
		t.Error("nil metrics should have nil registry")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
