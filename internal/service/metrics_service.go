package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	uploadsTotal    prometheus.Counter
	downloadsTotal  prometheus.Counter
	deletionsTotal  prometheus.Counter
	duplicatesTotal prometheus.Counter
	karmaGranted    prometheus.Counter
	karmaSpent      prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total catalog cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total catalog cache misses",
	})

	uploadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_uploaded_total",
		Help: "Total documents uploaded",
	})

	downloadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_downloaded_total",
		Help: "Total recorded document downloads",
	})

	deletionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_deleted_total",
		Help: "Total documents deleted",
	})

	duplicatesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_duplicates_rejected_total",
		Help: "Total uploads rejected as duplicate content",
	})

	karmaGranted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "karma_points_granted_total",
		Help: "Total karma points granted for uploads",
	})

	karmaSpent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "karma_points_spent_total",
		Help: "Total karma points spent on downloads",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		uploadsTotal, downloadsTotal, deletionsTotal, duplicatesTotal,
		karmaGranted, karmaSpent, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		uploadsTotal:    uploadsTotal,
		downloadsTotal:  downloadsTotal,
		deletionsTotal:  deletionsTotal,
		duplicatesTotal: duplicatesTotal,
		karmaGranted:    karmaGranted,
		karmaSpent:      karmaSpent,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a catalog cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordUpload counts a successful upload and the karma it granted.
func (m *MetricsService) RecordUpload(karmaReward int) {
	if m == nil {
		return
	}
	m.uploadsTotal.Inc()
	m.karmaGranted.Add(float64(karmaReward))
}

// RecordDownload counts a recorded download and the karma it cost.
func (m *MetricsService) RecordDownload(karmaCost int) {
	if m == nil {
		return
	}
	m.downloadsTotal.Inc()
	m.karmaSpent.Add(float64(karmaCost))
}

// RecordDeletion counts a document deletion.
func (m *MetricsService) RecordDeletion() {
	if m == nil {
		return
	}
	m.deletionsTotal.Inc()
}

// RecordDuplicateRejected counts an upload refused for duplicate content.
func (m *MetricsService) RecordDuplicateRejected() {
	if m == nil {
		return
	}
	m.duplicatesTotal.Inc()
}
