package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	unlockScanTotal prometheus.Counter
	unlockScanTime  prometheus.Histogram
	coursesUnlocked prometheus.Counter
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	emailsEnqueued  prometheus.Counter
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

	unlockScanTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unlock_scans_total",
		Help: "Total number of unlock scans executed",
	})

	unlockScanTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "unlock_scan_duration_seconds",
		Help:    "Duration of unlock scans in seconds",
		Buckets: prometheus.DefBuckets,
	})

	coursesUnlocked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courses_unlocked_total",
		Help: "Total number of courses published by the unlock scheduler",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	emailsEnqueued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_emails_enqueued_total",
		Help: "Total notification emails handed to the worker queue",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, unlockScanTotal, unlockScanTime, coursesUnlocked, cacheLatency, cacheHits, cacheMisses, emailsEnqueued, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		unlockScanTotal: unlockScanTotal,
		unlockScanTime:  unlockScanTime,
		coursesUnlocked: coursesUnlocked,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		emailsEnqueued:  emailsEnqueued,
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

// ObserveUnlockScan records the outcome of one unlock scan.
func (m *MetricsService) ObserveUnlockScan(unlocked int, duration time.Duration) {
	if m == nil {
		return
	}
	m.unlockScanTotal.Inc()
	m.unlockScanTime.Observe(duration.Seconds())
	m.coursesUnlocked.Add(float64(unlocked))
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordEmailEnqueued counts a notification email handed to the queue.
func (m *MetricsService) RecordEmailEnqueued() {
	if m == nil {
		return
	}
	m.emailsEnqueued.Inc()
}
