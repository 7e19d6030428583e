package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector adapts Metrics to prometheus.Collector, exposing
// every counter without needing a separate prometheus metric object
// updated in parallel with the atomic one on the hot path.
type PrometheusCollector struct {
	m *Metrics

	pushesAttempted   *prometheus.Desc
	pushesFired       *prometheus.Desc
	pushesSuppressed  *prometheus.Desc
	bytesSent         *prometheus.Desc
	sendErrors        *prometheus.Desc
	gossipApplied     *prometheus.Desc
	gossipStale       *prometheus.Desc
	swapCount         *prometheus.Desc
	congestionLevel   *prometheus.Desc
	sessionsTotal     *prometheus.Desc
}

// NewPrometheusCollector wraps m for registration with a
// prometheus.Registerer.
func NewPrometheusCollector(m *Metrics) *PrometheusCollector {
	return &PrometheusCollector{
		m:                m,
		pushesAttempted:  prometheus.NewDesc("httpx_pushes_attempted_total", "Speculative push decisions attempted.", nil, nil),
		pushesFired:      prometheus.NewDesc("httpx_pushes_fired_total", "Speculative pushes that fired.", nil, nil),
		pushesSuppressed: prometheus.NewDesc("httpx_pushes_suppressed_total", "Speculative pushes suppressed, by reason.", []string{"reason"}, nil),
		bytesSent:        prometheus.NewDesc("httpx_bytes_sent_total", "Egress bytes submitted.", nil, nil),
		sendErrors:       prometheus.NewDesc("httpx_send_errors_total", "Egress send failures.", nil, nil),
		gossipApplied:    prometheus.NewDesc("httpx_gossip_deltas_applied_total", "Gossip intent deltas applied.", nil, nil),
		gossipStale:      prometheus.NewDesc("httpx_gossip_deltas_stale_total", "Gossip intent deltas discarded as stale.", nil, nil),
		swapCount:        prometheus.NewDesc("httpx_shadow_swaps_total", "Shadow-swap handshakes completed.", nil, nil),
		congestionLevel:  prometheus.NewDesc("httpx_congestion_level", "Current congestion controller level (0-2).", nil, nil),
		sessionsTotal:    prometheus.NewDesc("httpx_sessions_active", "Currently tracked peer sessions.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pushesAttempted
	ch <- c.pushesFired
	ch <- c.pushesSuppressed
	ch <- c.bytesSent
	ch <- c.sendErrors
	ch <- c.gossipApplied
	ch <- c.gossipStale
	ch <- c.swapCount
	ch <- c.congestionLevel
	ch <- c.sessionsTotal
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.pushesAttempted, prometheus.CounterValue, float64(s.PushesAttempted))
	ch <- prometheus.MustNewConstMetric(c.pushesFired, prometheus.CounterValue, float64(s.PushesFired))
	ch <- prometheus.MustNewConstMetric(c.pushesSuppressed, prometheus.CounterValue, float64(s.PushesSuppressedCredit), "credit_exhausted")
	ch <- prometheus.MustNewConstMetric(c.pushesSuppressed, prometheus.CounterValue, float64(s.PushesSuppressedCanceled), "pivot_cancelled")
	ch <- prometheus.MustNewConstMetric(c.bytesSent, prometheus.CounterValue, float64(s.BytesSent))
	ch <- prometheus.MustNewConstMetric(c.sendErrors, prometheus.CounterValue, float64(s.SendErrors))
	ch <- prometheus.MustNewConstMetric(c.gossipApplied, prometheus.CounterValue, float64(s.GossipDeltasApplied))
	ch <- prometheus.MustNewConstMetric(c.gossipStale, prometheus.CounterValue, float64(s.GossipDeltasStale))
	ch <- prometheus.MustNewConstMetric(c.swapCount, prometheus.CounterValue, float64(s.SwapCount))
	ch <- prometheus.MustNewConstMetric(c.congestionLevel, prometheus.GaugeValue, float64(s.CongestionLvl))
	ch <- prometheus.MustNewConstMetric(c.sessionsTotal, prometheus.GaugeValue, float64(s.SessionsTotal))
}

var _ prometheus.Collector = (*PrometheusCollector)(nil)
