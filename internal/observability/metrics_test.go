package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/lector/tts"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ tts.Metrics = (*Metrics)(nil)

func TestUtteranceCounters(t *testing.T) {
	m := NewMetrics("test")

	m.Dispatched()
	m.Dispatched()
	m.Cancelled()
	m.Failed()
	m.StaleEvent()

	tests := []struct {
		event string
		want  float64
	}{
		{"dispatched", 2},
		{"cancelled", 1},
		{"failed", 1},
		{"stale", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.Utterances.WithLabelValues(tt.event)); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.event, got, tt.want)
		}
	}
}

func TestIndependentRegistries(t *testing.T) {
	// Two instances with the same namespace must not collide.
	a := NewMetrics("lector")
	b := NewMetrics("lector")

	a.Dispatched()
	if got := testutil.ToFloat64(b.Utterances.WithLabelValues("dispatched")); got != 0 {
		t.Errorf("registries should be independent, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := NewMetrics("test")
	m.ObserveExtraction(http.StatusOK, 12*time.Millisecond)
	m.ObserveExtraction(http.StatusBadRequest, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`test_extract_requests_total{code="200"} 1`,
		`test_extract_requests_total{code="400"} 1`,
		"test_extract_latency_ms_count 2",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
