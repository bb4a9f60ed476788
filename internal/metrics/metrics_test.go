package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.FrameProcessed()
	m.FrameProcessed()
	m.HandoffDropped()
	m.OracleCall(OutcomeSuccess, 200*time.Millisecond)
	m.OracleCall(OutcomeFailure, time.Second)
	m.OracleCall(OutcomeIdle, 0)
	m.AlertTransition("intruder")
	m.SetTimers(3, 1, 7)

	if got := testutil.ToFloat64(m.framesProcessed); got != 2 {
		t.Errorf("Expected 2 frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.handoffDrops); got != 1 {
		t.Errorf("Expected 1 drop, got %v", got)
	}
	if got := testutil.ToFloat64(m.oracleCalls.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Errorf("Expected 1 failure, got %v", got)
	}
	if got := testutil.CollectAndCount(m.oracleLatency); got != 1 {
		t.Errorf("Expected one latency histogram, got %d", got)
	}
	if got := testutil.ToFloat64(m.timers.WithLabelValues("attention")); got != 7 {
		t.Errorf("Expected attention gauge 7, got %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.FrameProcessed()
	m.OracleCall(OutcomeSuccess, time.Second)
	m.SetViewers(3)
	m.SessionReset()
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.AlertTransition("absence")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `proctor_alert_transitions_total{kind="absence"} 1`) {
		t.Errorf("Expected transition counter in output, got:\n%s", rec.Body.String())
	}
}
