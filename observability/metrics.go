package observability

import (
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	journalMetricsOnce sync.Once
	journalRegistry    *JournalMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording API
// activity per module and route.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakeportal",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module, route and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakeportal",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, route and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stakeportal",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakeportal",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the HTTP
// status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// JournalMetrics tracks the operation journal kept by the portal daemon.
type JournalMetrics struct {
	appends  *prometheus.CounterVec
	failures prometheus.Counter
	height   prometheus.Gauge
}

// Journal returns the lazily registered journal metrics.
func Journal() *JournalMetrics {
	journalMetricsOnce.Do(func() {
		journalRegistry = &JournalMetrics{
			appends: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakeportal",
				Subsystem: "journal",
				Name:      "appends_total",
				Help:      "Journal entries appended segmented by event type.",
			}, []string{"type"}),
			failures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stakeportal",
				Subsystem: "journal",
				Name:      "append_failures_total",
				Help:      "Journal appends that failed to persist.",
			}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakeportal",
				Subsystem: "journal",
				Name:      "height",
				Help:      "Sequence number of the latest journal entry.",
			}),
		}
		prometheus.MustRegister(journalRegistry.appends, journalRegistry.failures, journalRegistry.height)
	})
	return journalRegistry
}

// RecordAppend counts a persisted entry and moves the height gauge.
func (m *JournalMetrics) RecordAppend(eventType string, seq int64) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.appends.WithLabelValues(eventType).Inc()
	m.height.Set(float64(seq))
}

// RecordFailure counts an entry that could not be persisted.
func (m *JournalMetrics) RecordFailure() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

// BigToFloat converts an amount for gauge export. Values outside float64 range
// report zero.
func BigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
