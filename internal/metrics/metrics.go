package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mempool_scanner"

// Discard reasons for frames_discarded_total.
const (
	ReasonInvalidJSON = "invalid_json"
	ReasonRPCError    = "rpc_error"
	ReasonNoParams    = "no_params"
	ReasonEmptyResult = "empty_result"
	ReasonBadPayload  = "bad_payload"
	ReasonBadTx       = "bad_tx"
)

// Metrics groups the scanner's collectors. Construct with New so tests can use a
// private registry.
type Metrics struct {
	FramesReceived   prometheus.Counter
	FramesDiscarded  *prometheus.CounterVec
	TransactionsSeen prometheus.Counter
	SwapsDetected    prometheus.Counter
	BigSwaps         prometheus.Counter
	Alerts           *prometheus.CounterVec
	Connects         prometheus.Counter
	Reconnects       prometheus.Counter
	SinkDropped      *prometheus.CounterVec
	Connected        prometheus.Gauge
}

// New creates the collectors and registers them on reg when reg is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of frames read from the feed",
		}),
		FramesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_discarded_total",
			Help:      "Frames or transactions dropped without classification",
		}, []string{"reason"}),
		TransactionsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_seen_total",
			Help:      "Pending transactions decoded from notifications",
		}),
		SwapsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_detected_total",
			Help:      "Transactions classified as tracked swaps",
		}),
		BigSwaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "big_swaps_total",
			Help:      "Tracked swaps at or above the alert threshold",
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert delivery attempts by result",
		}, []string{"result"}),
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Successful feed connections",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Feed sessions that ended and were scheduled for reconnect",
		}),
		SinkDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_dropped_total",
			Help:      "Items dropped because a sink queue was full",
		}, []string{"sink"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while a feed connection is open",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.FramesReceived,
			m.FramesDiscarded,
			m.TransactionsSeen,
			m.SwapsDetected,
			m.BigSwaps,
			m.Alerts,
			m.Connects,
			m.Reconnects,
			m.SinkDropped,
			m.Connected,
		)
	}
	return m
}

// Discard counts one dropped frame or transaction.
func (m *Metrics) Discard(reason string) {
	m.FramesDiscarded.WithLabelValues(reason).Inc()
}
