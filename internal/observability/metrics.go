// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Execution metrics
	AttemptsTotal   *prometheus.CounterVec
	SkippedTotal    *prometheus.CounterVec
	SpendTotal      prometheus.Counter
	TokensAcquired  prometheus.Counter
	SwapDuration    prometheus.Histogram
	RollingSpendWei prometheus.Gauge
	LastExecutionTS prometheus.Gauge

	// Circuit breaker metrics
	BreakerActive prometheus.Gauge
	BreakerTrips  *prometheus.CounterVec

	// Storage metrics
	RecordStoreErrors *prometheus.CounterVec

	// Health metrics
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "buyback_engine"
	}

	return &Metrics{
		AttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "attempts_total",
			Help:      "Total number of recorded execution attempts by outcome and reason",
		}, []string{"outcome", "reason"}),
		SkippedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "skipped_total",
			Help:      "Total number of benign no-op cycles by reason",
		}, []string{"reason"}),
		SpendTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "spend_wei_total",
			Help:      "Total revenue asset spent, in wei (float approximation)",
		}),
		TokensAcquired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "tokens_acquired_total",
			Help:      "Total target tokens acquired, in wei (float approximation)",
		}),
		SwapDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "swap_duration_seconds",
			Help:      "Duration of the atomic pull/swap step in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		RollingSpendWei: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "rolling_spend_wei",
			Help:      "Spend inside the trailing daily-cap window, in wei (float approximation)",
		}),
		LastExecutionTS: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "last_execution_timestamp",
			Help:      "Unix timestamp of the last successful execution",
		}),
		BreakerActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "active",
			Help:      "1 when the circuit breaker is open, 0 otherwise",
		}),
		BreakerTrips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "trips_total",
			Help:      "Total number of circuit breaker trips by reason",
		}, []string{"reason"}),
		RecordStoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "record_errors_total",
			Help:      "Total number of execution record store errors by store",
		}, []string{"store"}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAttempt increments the attempts counter.
func RecordAttempt(outcome, reason string) {
	DefaultMetrics.AttemptsTotal.WithLabelValues(outcome, reason).Inc()
}

// RecordSkip increments the no-op cycle counter.
func RecordSkip(reason string) {
	DefaultMetrics.SkippedTotal.WithLabelValues(reason).Inc()
}

// RecordSpend adds to the spend and acquisition counters.
func RecordSpend(amountInWei, amountOutWei float64) {
	DefaultMetrics.SpendTotal.Add(amountInWei)
	DefaultMetrics.TokensAcquired.Add(amountOutWei)
}

// ObserveSwapDuration records the atomic step latency.
func ObserveSwapDuration(seconds float64) {
	DefaultMetrics.SwapDuration.Observe(seconds)
}

// SetBreakerActive updates the breaker gauge.
func SetBreakerActive(active bool) {
	if active {
		DefaultMetrics.BreakerActive.Set(1)
	} else {
		DefaultMetrics.BreakerActive.Set(0)
	}
}

// RecordBreakerTrip increments the trip counter.
func RecordBreakerTrip(reason string) {
	DefaultMetrics.BreakerTrips.WithLabelValues(reason).Inc()
}

// RecordStoreError increments the store error counter.
func RecordStoreError(store string) {
	DefaultMetrics.RecordStoreErrors.WithLabelValues(store).Inc()
}
