package observability

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/api/courses", "200", time.Millisecond)
	m.ObserveAggregateOperation("Training.Progression.CompleteSubject", "success", time.Millisecond)
	m.IncAggregateConflict("x")
	m.ObserveEmailSend("welcome", nil, time.Second)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("nil metrics should answer 503, got %d", rec.Code)
	}
}

func TestAggregateAndEmailSeries(t *testing.T) {
	m := newMetrics()
	m.ObserveAggregateOperation("Training.Progression.CompleteSubject", "success", 20*time.Millisecond)
	m.ObserveAggregateOperation("Training.Progression.CompleteSubject", "conflict", 5*time.Millisecond)
	m.IncAggregateConflict("Training.Progression.CompleteSubject")
	m.ObserveEmailSend("reminder", nil, 100*time.Millisecond)
	m.ObserveEmailSend("reminder", errors.New("503 from provider"), 100*time.Millisecond)
	m.ObserveAPI("POST", "/api/tasks/:id/complete", "500", 10*time.Millisecond)

	if got := m.aggregateOps.Value("Training.Progression.CompleteSubject", "conflict"); got != 1 {
		t.Fatalf("conflict ops: %v", got)
	}
	if got := m.aggregateLatency.Count("Training.Progression.CompleteSubject"); got != 2 {
		t.Fatalf("latency observations: %d", got)
	}
	if m.emailSent.Value("reminder") != 1 || m.emailFailed.Value("reminder") != 1 {
		t.Fatalf("email counters sent=%v failed=%v", m.emailSent.Value("reminder"), m.emailFailed.Value("reminder"))
	}
	if m.apiErrors.Value() != 1 {
		t.Fatalf("5xx counter: %v", m.apiErrors.Value())
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# TYPE th_aggregate_operations_total counter",
		`th_aggregate_conflicts_total{operation="Training.Progression.CompleteSubject"} 1`,
		`th_aggregate_operation_duration_seconds_bucket{operation="Training.Progression.CompleteSubject",le="+Inf"} 2`,
		`th_email_failed_total{kind="reminder"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q:\n%s", want, out)
		}
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"route"}, []string{"a\"b\\c\nd"})
	if got != `{route="a\"b\\c\nd"}` {
		t.Fatalf("escaped labels: %s", got)
	}
	if got := withLe("", "0.5"); got != `{le="0.5"}` {
		t.Fatalf("withLe empty: %s", got)
	}
	if got := labelString([]string{"a", "b"}, []string{"x"}); got != `{a="x",b="unknown"}` {
		t.Fatalf("missing values default: %s", got)
	}
}

func TestGaugeInflight(t *testing.T) {
	m := newMetrics()
	m.ApiInflightInc()
	m.ApiInflightInc()
	m.ApiInflightDec()
	if m.apiInflight.Value() != 1 {
		t.Fatalf("inflight: %v", m.apiInflight.Value())
	}
}

func TestParseHeaders(t *testing.T) {
	got := parseHeaders(" api-key = abc ,broken, =x,team=ops")
	if len(got) != 2 || got["api-key"] != "abc" || got["team"] != "ops" {
		t.Fatalf("headers: %+v", got)
	}
	if parseHeaders("") != nil {
		t.Fatalf("empty input should yield nil")
	}
	if clampRatio(0) != 0.1 || clampRatio(3) != 1 || clampRatio(0.25) != 0.25 {
		t.Fatalf("clampRatio")
	}
}

func TestCascadeClosures(t *testing.T) {
	m := newMetrics()
	op := "Training.Progression.CompleteSubject"
	m.AddCascadeClosures(op, "subject", 2)
	m.AddCascadeClosures(op, "course", 1)
	m.AddCascadeClosures(op, "enrollment", 0)
	if got := m.cascadeClosures.Value(op, "subject"); got != 2 {
		t.Fatalf("subject closures: %v", got)
	}
	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `th_cascade_closures_total{operation="Training.Progression.CompleteSubject",level="course"} 1`) {
		t.Fatalf("missing course series:\n%s", out)
	}
	if strings.Contains(out, `level="enrollment"`) {
		t.Fatalf("zero adds should not create a series:\n%s", out)
	}
}
