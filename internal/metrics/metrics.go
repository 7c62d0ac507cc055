package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "position_relay"

// Metrics holds the relay's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsActive  prometheus.Gauge
	sessionsTotal   prometheus.Counter
	sessionsClosed  *prometheus.CounterVec
	framesReceived  *prometheus.CounterVec
	framesRejected  prometheus.Counter
	broadcastFrames prometheus.Counter
	broadcastFanout prometheus.Histogram
	storeClients    prometheus.Gauge
	journalRows     *prometheus.CounterVec
}

// New registers the relay collectors with reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live peer sessions",
		}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of accepted peer sessions",
		}),
		sessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Closed sessions by reason",
		}, []string{"reason"}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames by kind",
		}, []string{"kind"}),
		framesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Inbound frames that failed to decode",
		}),
		broadcastFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_frames_total",
			Help:      "Frames enqueued to peers by broadcast",
		}),
		broadcastFanout: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_fanout",
			Help:      "Recipients per broadcast update",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		storeClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_clients",
			Help:      "Endpoints held in the position store",
		}),
		journalRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_rows_total",
			Help:      "Journal rows by result",
		}, []string{"result"}),
	}
}

// SessionOpened records an accepted session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
	m.sessionsActive.Inc()
}

// SessionClosed records a closed session.
func (m *Metrics) SessionClosed(reason string) {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
	m.sessionsClosed.WithLabelValues(reason).Inc()
}

// FrameReceived counts an inbound frame of kind "handshake" or "position".
func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
}

// FrameRejected counts a frame that closed its session.
func (m *Metrics) FrameRejected() {
	if m == nil {
		return
	}
	m.framesRejected.Inc()
}

// Broadcast records one update fanned out to n sessions.
func (m *Metrics) Broadcast(n int) {
	if m == nil {
		return
	}
	m.broadcastFrames.Add(float64(n))
	m.broadcastFanout.Observe(float64(n))
}

// SetStoreClients records the store size.
func (m *Metrics) SetStoreClients(n int) {
	if m == nil {
		return
	}
	m.storeClients.Set(float64(n))
}

// JournalRows counts journal rows with result "inserted" or "failed".
func (m *Metrics) JournalRows(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.journalRows.WithLabelValues(result).Add(float64(n))
}
