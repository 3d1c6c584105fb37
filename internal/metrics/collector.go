// internal/metrics/collector.go
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "solana_portfolio"

// Collector holds the portfolio metrics on a caller-provided registry.
type Collector struct {
	balanceResolutions *prometheus.CounterVec
	rpcLatency         *prometheus.HistogramVec
	rpcErrors          *prometheus.CounterVec
	quotePercentDiff   prometheus.Histogram
	quoteAlerts        prometheus.Counter
	activityEntries    *prometheus.GaugeVec
}

// NewCollector creates the metrics and registers them. A nil registerer
// leaves them unregistered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		balanceResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "balance_resolutions_total",
				Help:      "Balance resolutions by data source",
			},
			[]string{"source"},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method", "endpoint"},
		),
		rpcErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_errors_total",
				Help:      "Failed RPC requests",
			},
			[]string{"method", "endpoint"},
		),
		quotePercentDiff: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "quote_percent_diff",
				Help:      "Quoted output versus benchmark, in percent",
				Buckets:   prometheus.LinearBuckets(-10, 1, 21),
			},
		),
		quoteAlerts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_alerts_total",
				Help:      "Quotes worse than the configured tolerance",
			},
		),
		activityEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "activity_entries",
				Help:      "Entries in the last merged activity feed",
			},
			[]string{"source"},
		),
	}

	if reg == nil {
		return c, nil
	}
	for _, m := range []prometheus.Collector{
		c.balanceResolutions, c.rpcLatency, c.rpcErrors,
		c.quotePercentDiff, c.quoteAlerts, c.activityEntries,
	} {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return c, nil
}

// ObserveRPC records one RPC attempt.
func (c *Collector) ObserveRPC(method, endpoint string, latency time.Duration, err error) {
	c.rpcLatency.WithLabelValues(method, endpoint).Observe(latency.Seconds())
	if err != nil {
		c.rpcErrors.WithLabelValues(method, endpoint).Inc()
	}
}

// RecordResolution counts a balance resolution by its source.
func (c *Collector) RecordResolution(source string) {
	c.balanceResolutions.WithLabelValues(source).Inc()
}

// RecordQuote observes a percent discrepancy. Absent values are skipped.
func (c *Collector) RecordQuote(percentDiff float64, valid, alert bool) {
	if valid {
		c.quotePercentDiff.Observe(percentDiff)
	}
	if alert {
		c.quoteAlerts.Inc()
	}
}

// SetActivityCounts publishes the size of the merged feed per source.
func (c *Collector) SetActivityCounts(counts map[string]int) {
	c.activityEntries.Reset()
	for source, n := range counts {
		c.activityEntries.WithLabelValues(source).Set(float64(n))
	}
}
