// Package metrics exposes Prometheus instrumentation for the simulator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketsim"

// Collector holds the simulator's metrics. The driver updates it inline;
// the API server serves it on /metrics.
type Collector struct {
	MessagesTotal *prometheus.CounterVec // L3 messages by msg_type
	OrdersTotal   *prometheus.CounterVec // submitted orders by side and type
	TradesTotal   prometheus.Counter
	TradeVolume   prometheus.Counter

	MidPrice   prometheus.Gauge
	BookOrders *prometheus.GaugeVec // resting orders by side
	BookVolume *prometheus.GaugeVec // resting quantity by side
	SessionDay prometheus.Gauge
}

// New creates and registers the collector on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "L3 messages emitted, by message type.",
		}, []string{"msg_type"}),
		OrdersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "orders_total",
			Help:      "Orders submitted to the book, by side and type.",
		}, []string{"side", "type"}),
		TradesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "book",
			Name:      "trades_total",
			Help:      "Trades produced by the matching loop.",
		}),
		TradeVolume: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "book",
			Name:      "trade_volume_total",
			Help:      "Total traded quantity.",
		}),
		MidPrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "mid_price",
			Help:      "Current target mid price of the stochastic process.",
		}),
		BookOrders: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "book",
			Name:      "resting_orders",
			Help:      "Resting order count, by side.",
		}, []string{"side"}),
		BookVolume: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "book",
			Name:      "resting_volume",
			Help:      "Resting quantity, by side.",
		}, []string{"side"}),
		SessionDay: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "session_day",
			Help:      "Zero-based index of the trading day in progress.",
		}),
	}
}
