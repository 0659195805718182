// Package metrics exposes Prometheus collectors for the drawing board.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "drawboard"

type Metrics struct {
	connections   prometheus.Gauge
	users         *prometheus.GaugeVec
	boards        prometheus.Gauge
	logLength     *prometheus.GaugeVec
	messages      *prometheus.CounterVec
	ignored       *prometheus.CounterVec
	slowDrops     prometheus.Counter
	wsErrors      *prometheus.CounterVec
	fillsReplayed prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of open WebSocket connections",
		}),
		users: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users",
			Help:      "Number of joined users per board",
		}, []string{"board"}),
		boards: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boards",
			Help:      "Number of live boards",
		}),
		logLength: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_instructions",
			Help:      "Number of instructions in each board's drawing log",
		}, []string{"board"}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Client messages applied by type",
		}, []string{"type"}),
		ignored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_ignored_total",
			Help:      "Client messages dropped without effect, by type and reason",
		}, []string{"type", "reason"}),
		slowDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_clients_dropped_total",
			Help:      "Clients disconnected because their outbox was full",
		}),
		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_errors_total",
			Help:      "WebSocket errors by type",
		}, []string{"type"}),
		fillsReplayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_fills_total",
			Help:      "Flood fills executed while rendering exports",
		}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) BoardOpened() {
	if m == nil {
		return
	}
	m.boards.Inc()
}

func (m *Metrics) BoardClosed(board string) {
	if m == nil {
		return
	}
	m.boards.Dec()
	m.users.DeleteLabelValues(board)
	m.logLength.DeleteLabelValues(board)
}

func (m *Metrics) SetUsers(board string, n int) {
	if m == nil {
		return
	}
	m.users.WithLabelValues(board).Set(float64(n))
}

func (m *Metrics) SetLogLength(board string, n int) {
	if m == nil {
		return
	}
	m.logLength.WithLabelValues(board).Set(float64(n))
}

func (m *Metrics) MessageApplied(msgType string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(msgType).Inc()
}

func (m *Metrics) MessageIgnored(msgType, reason string) {
	if m == nil {
		return
	}
	m.ignored.WithLabelValues(msgType, reason).Inc()
}

func (m *Metrics) SlowClientDropped() {
	if m == nil {
		return
	}
	m.slowDrops.Inc()
}

func (m *Metrics) WebSocketError(kind string) {
	if m == nil {
		return
	}
	m.wsErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) FillsReplayed(n int) {
	if m == nil {
		return
	}
	m.fillsReplayed.Add(float64(n))
}
