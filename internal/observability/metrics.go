package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

// Metrics is the process-wide Prometheus registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiErrors   *Counter

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec
	cascadeClosures    *CounterVec

	emailSent    *CounterVec
	emailFailed  *CounterVec
	emailLatency *HistogramVec

	notifications    *CounterVec
	realtimeClients  *Gauge
	schedulerRuns    *CounterVec
	rateLimited      *CounterVec
	evidenceUploads  *CounterVec
	evidenceUploadSz *HistogramVec

	emailQueueDepth *GaugeVec
	pgStats         *GaugeVec
	redisUp         *Gauge
	redisPing       *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS")))
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Init builds the registry once. Returns nil when METRICS_ENABLED is off.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	latency := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	return &Metrics{
		apiRequests: NewCounterVec("th_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("th_api_request_duration_seconds", "API request latency in seconds.", []string{"method", "route"}, latency),
		apiInflight: NewGauge("th_api_inflight_requests", "In-flight API requests."),
		apiErrors:   NewCounter("th_api_server_errors_total", "API responses with a 5xx status."),

		aggregateOps:       NewCounterVec("th_aggregate_operations_total", "Aggregate writes by operation/status.", []string{"operation", "status"}),
		aggregateLatency:   NewHistogramVec("th_aggregate_operation_duration_seconds", "Aggregate write latency in seconds.", []string{"operation"}, latency),
		aggregateConflicts: NewCounterVec("th_aggregate_conflicts_total", "Aggregate writes rejected as conflicts.", []string{"operation"}),
		aggregateRetries:   NewCounterVec("th_aggregate_retryable_total", "Aggregate writes that failed with a retryable error.", []string{"operation"}),
		cascadeClosures:    NewCounterVec("th_cascade_closures_total", "Rows closed by the completion cascade by operation/level.", []string{"operation", "level"}),

		emailSent:    NewCounterVec("th_email_sent_total", "Emails delivered by kind.", []string{"kind"}),
		emailFailed:  NewCounterVec("th_email_failed_total", "Email delivery attempts that failed by kind.", []string{"kind"}),
		emailLatency: NewHistogramVec("th_email_send_duration_seconds", "Email provider call latency in seconds.", []string{"kind"}, []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30}),

		notifications:    NewCounterVec("th_notifications_total", "Notifications persisted by type.", []string{"type"}),
		realtimeClients:  NewGauge("th_realtime_clients", "Connected realtime (SSE) clients."),
		schedulerRuns:    NewCounterVec("th_scheduler_runs_total", "Scheduled job runs by job/status.", []string{"job", "status"}),
		rateLimited:      NewCounterVec("th_rate_limited_total", "Requests rejected by the rate limiter by scope.", []string{"scope"}),
		evidenceUploads:  NewCounterVec("th_evidence_uploads_total", "Evidence uploads by status.", []string{"status"}),
		evidenceUploadSz: NewHistogramVec("th_evidence_upload_bytes", "Evidence upload size in bytes.", nil, []float64{1 << 10, 1 << 14, 1 << 17, 1 << 20, 1 << 22, 1 << 24, 1 << 26}),

		emailQueueDepth: NewGaugeVec("th_email_queue_depth", "Email jobs by status.", []string{"status"}),
		pgStats:         NewGaugeVec("th_postgres_pool", "database/sql pool stats.", []string{"stat"}),
		redisUp:         NewGauge("th_redis_up", "1 when the last redis ping succeeded."),
		redisPing:       NewGauge("th_redis_ping_seconds", "Latency of the last redis ping."),
	}
}

func (m *Metrics) families() []family {
	return []family{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiErrors,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries, m.cascadeClosures,
		m.emailSent, m.emailFailed, m.emailLatency,
		m.notifications, m.realtimeClients, m.schedulerRuns, m.rateLimited,
		m.evidenceUploads, m.evidenceUploadSz,
		m.emailQueueDepth, m.pgStats, m.redisUp, m.redisPing,
	}
}

// StartServer exposes /metrics on a dedicated listener until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && log != nil {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, f := range m.families() {
		if err := f.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method = orDefault(method, "UNKNOWN")
	route = orDefault(route, "unknown")
	status = orDefault(status, "0")
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
	if strings.HasPrefix(status, "5") {
		m.apiErrors.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(name, status string, dur time.Duration) {
	if m == nil {
		return
	}
	name = orDefault(name, "unknown")
	m.aggregateOps.Inc(name, orDefault(status, "unknown"))
	m.aggregateLatency.Observe(dur.Seconds(), name)
}

func (m *Metrics) IncAggregateConflict(name string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(orDefault(name, "unknown"))
}

func (m *Metrics) IncAggregateRetry(name string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(orDefault(name, "unknown"))
}

// AddCascadeClosures counts subjects, enrollments or courses closed by a cascade.
func (m *Metrics) AddCascadeClosures(name, level string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cascadeClosures.Add(float64(n), orDefault(name, "unknown"), level)
}

func (m *Metrics) ObserveEmailSend(kind string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	kind = orDefault(kind, "generic")
	m.emailLatency.Observe(dur.Seconds(), kind)
	if err != nil {
		m.emailFailed.Inc(kind)
		return
	}
	m.emailSent.Inc(kind)
}

func (m *Metrics) IncNotification(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notifications.Add(float64(n), orDefault(kind, "unknown"))
}

func (m *Metrics) SetRealtimeClients(n int) {
	if m == nil {
		return
	}
	m.realtimeClients.Set(float64(n))
}

func (m *Metrics) IncSchedulerRun(job, status string) {
	if m == nil {
		return
	}
	m.schedulerRuns.Inc(orDefault(job, "unknown"), orDefault(status, "unknown"))
}

func (m *Metrics) IncRateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.Inc(orDefault(scope, "unknown"))
}

func (m *Metrics) ObserveEvidenceUpload(status string, size int64) {
	if m == nil {
		return
	}
	m.evidenceUploads.Inc(orDefault(status, "unknown"))
	if size > 0 {
		m.evidenceUploadSz.Observe(float64(size))
	}
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}
