package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	backupsCreated  prometheus.Counter
	backupsRestored prometheus.Counter
	conflictsFixed  prometheus.Counter
	orphansCleaned  prometheus.Counter
	rowsImported    prometheus.Counter
}

// NewMetricsService registers the engine's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	backupsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backups_created_total",
		Help: "Total snapshots captured",
	})

	backupsRestored := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backups_restored_total",
		Help: "Total snapshots applied successfully",
	})

	conflictsFixed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_conflicts_fixed_total",
		Help: "Total overlapping sessions repaired",
	})

	orphansCleaned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orphans_cleaned_total",
		Help: "Total orphaned records soft-deleted by cleanup",
	})

	rowsImported := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "csv_rows_imported_total",
		Help: "Total session rows imported from CSV",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, backupsCreated, backupsRestored,
		conflictsFixed, orphansCleaned, rowsImported, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		backupsCreated:  backupsCreated,
		backupsRestored: backupsRestored,
		conflictsFixed:  conflictsFixed,
		orphansCleaned:  orphansCleaned,
		rowsImported:    rowsImported,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one completed request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordBackupCreated counts a captured snapshot.
func (m *MetricsService) RecordBackupCreated() {
	if m == nil {
		return
	}
	m.backupsCreated.Inc()
}

// RecordBackupRestored counts a successfully applied snapshot.
func (m *MetricsService) RecordBackupRestored() {
	if m == nil {
		return
	}
	m.backupsRestored.Inc()
}

// RecordConflictsFixed counts repaired session overlaps.
func (m *MetricsService) RecordConflictsFixed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.conflictsFixed.Add(float64(n))
}

// RecordOrphansCleaned counts records removed by orphan cleanup.
func (m *MetricsService) RecordOrphansCleaned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.orphansCleaned.Add(float64(n))
}

// RecordRowsImported counts session rows imported from CSV.
func (m *MetricsService) RecordRowsImported(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsImported.Add(float64(n))
}
