package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "student_rooms"

// Metrics holds the watch loop's Prometheus collectors.
type Metrics struct {
	CyclesTotal         *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	MatchesLastCycle    prometheus.Gauge
	NewMatchesTotal     prometheus.Counter
	ProviderErrorsTotal *prometheus.CounterVec
	ProviderSkipped     *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	LedgerEntries       prometheus.Gauge
	LedgerFlushFailures prometheus.Counter
}

// NewMetrics registers the collectors on reg. A nil reg uses a private
// registry, so tests can build many monitors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "watch_cycles_total",
			Help:      "Watch cycles run, by outcome",
		}, []string{"outcome"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "watch_cycle_duration_seconds",
			Help:      "Duration of a watch cycle",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		MatchesLastCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "matches_last_cycle",
			Help:      "Matches found by the latest cycle",
		}),
		NewMatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "new_matches_total",
			Help:      "Matches not seen before",
		}),
		ProviderErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provider_errors_total",
			Help:      "Provider scan failures by kind",
		}, []string{"provider", "kind"}),
		ProviderSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provider_backoff_skips_total",
			Help:      "Cycles in which a provider was skipped while backing off",
		}, []string{"provider"}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by result",
		}, []string{"result"}),
		LedgerEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "ledger_entries",
			Help:      "Dedup keys in the ledger",
		}),
		LedgerFlushFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ledger_flush_failures_total",
			Help:      "Failed ledger flushes",
		}),
	}
}
