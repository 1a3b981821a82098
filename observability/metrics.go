package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records gateway activity against the collateral engine.
type EngineMetrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	liquidations prometheus.Counter
	staleReads   prometheus.Counter
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Engine returns the lazily-initialised metrics registry used to record
// engine operation activity.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "engine",
				Name:      "requests_total",
				Help:      "Total engine operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "dsc",
				Subsystem: "engine",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "engine",
				Name:      "liquidations_total",
				Help:      "Total successful liquidations.",
			}),
			staleReads: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "oracle",
				Name:      "stale_reads_total",
				Help:      "Total operations rejected because a price feed was stale.",
			}),
		}
		prometheus.MustRegister(
			engineRegistry.requests,
			engineRegistry.latency,
			engineRegistry.liquidations,
			engineRegistry.staleReads,
		)
	})
	return engineRegistry
}

// Observe records one operation with its outcome and duration.
func (m *EngineMetrics) Observe(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	op = strings.ToLower(strings.TrimSpace(op))
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	if op == "" {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordLiquidation counts one successful liquidation.
func (m *EngineMetrics) RecordLiquidation() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}

// RecordStaleRead counts one fail-closed oracle rejection.
func (m *EngineMetrics) RecordStaleRead() {
	if m == nil {
		return
	}
	m.staleReads.Inc()
}
