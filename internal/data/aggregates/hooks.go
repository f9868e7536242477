package aggregates

import (
	"strings"
	"time"

	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
	"github.com/yungbote/trainhub-backend/internal/observability"
)

// Hooks receives aggregate outcomes for metrics. ObserveCascade is called only after the
// transaction that produced the outcome has committed.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
	ObserveCascade(name string, out domainagg.CascadeOutcome)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration)  {}
func (noopHooks) IncConflict(string)                              {}
func (noopHooks) IncRetry(string)                                 {}
func (noopHooks) ObserveCascade(string, domainagg.CascadeOutcome) {}

type metricsHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks reports aggregate writes and cascade closures to metrics.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return &metricsHooks{metrics: metrics}
}

func (h *metricsHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.metrics.ObserveAggregateOperation(strings.TrimSpace(name), strings.TrimSpace(status), dur)
}

func (h *metricsHooks) IncConflict(name string) {
	h.metrics.IncAggregateConflict(strings.TrimSpace(name))
}

func (h *metricsHooks) IncRetry(name string) {
	h.metrics.IncAggregateRetry(strings.TrimSpace(name))
}

func (h *metricsHooks) ObserveCascade(name string, out domainagg.CascadeOutcome) {
	name = strings.TrimSpace(name)
	h.metrics.AddCascadeClosures(name, "subject", len(out.FinishedSubjectIDs))
	h.metrics.AddCascadeClosures(name, "enrollment", len(out.CompletedTraineeIDs))
	if out.CourseFinished {
		h.metrics.AddCascadeClosures(name, "course", 1)
	}
}
