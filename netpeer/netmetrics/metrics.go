// Package netmetrics exposes optional Prometheus instrumentation for a
// Server or Client: connection counts, ack/retry activity and RTT
// samples. It is deliberately decoupled from netpeer — a Recorder is
// nil-receiver safe, so an embedding application that doesn't want
// metrics can simply leave the field nil.
package netmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder wraps the gauges/counters/histograms a Server or Client reports
// through. Every method tolerates a nil receiver so callers can wire it
// in unconditionally: `conn.metrics.ObserveRTT(...)` costs nothing when
// metrics were never configured.
type Recorder struct {
	connections      prometheus.Gauge
	connectsTotal    prometheus.Counter
	disconnectsTotal *prometheus.CounterVec
	retriesTotal     prometheus.Counter
	retryExhausted   prometheus.Counter
	duplicatesTotal  prometheus.Counter
	rtt              prometheus.Histogram
}

// NewRecorder builds a Recorder whose metric names are prefixed with
// namespace (e.g. "reliudp_server" or "reliudp_client").
func NewRecorder(namespace string) *Recorder {
	return &Recorder{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of Connections currently tracked, regardless of handshake state.",
		}),
		connectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Total Connections that reached the Connected state.",
		}),
		disconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total Connections torn down, labeled by reason.",
		}, []string{"reason"}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total reliable-send retransmissions, including window-overflow forced ones.",
		}),
		retryExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_exhausted_total",
			Help:      "Total pending reliable sends given up on after maxAttempts.",
		}),
		duplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_total",
			Help:      "Total inbound reliable datagrams rejected by the duplicate filter.",
		}),
		rtt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rtt_milliseconds",
			Help:      "Heartbeat round-trip samples, in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// Collectors returns every metric so the embedding application can
// register them with its own prometheus.Registerer.
func (r *Recorder) Collectors() []prometheus.Collector {
	if r == nil {
		return nil
	}
	return []prometheus.Collector{
		r.connections,
		r.connectsTotal,
		r.disconnectsTotal,
		r.retriesTotal,
		r.retryExhausted,
		r.duplicatesTotal,
		r.rtt,
	}
}

func (r *Recorder) SetConnections(n int) {
	if r == nil {
		return
	}
	r.connections.Set(float64(n))
}

func (r *Recorder) IncConnects() {
	if r == nil {
		return
	}
	r.connectsTotal.Inc()
}

func (r *Recorder) IncDisconnects(reason string) {
	if r == nil {
		return
	}
	r.disconnectsTotal.WithLabelValues(reason).Inc()
}

func (r *Recorder) IncRetries() {
	if r == nil {
		return
	}
	r.retriesTotal.Inc()
}

func (r *Recorder) IncRetryExhausted() {
	if r == nil {
		return
	}
	r.retryExhausted.Inc()
}

func (r *Recorder) IncDuplicates() {
	if r == nil {
		return
	}
	r.duplicatesTotal.Inc()
}

func (r *Recorder) ObserveRTT(milliseconds int) {
	if r == nil {
		return
	}
	r.rtt.Observe(float64(milliseconds))
}
