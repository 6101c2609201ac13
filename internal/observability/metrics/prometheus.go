// Package metrics provides Prometheus metrics for the derivation engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	TicksTotal          *prometheus.CounterVec
	TickFailures        *prometheus.CounterVec
	TickDuration        *prometheus.HistogramVec
	OrdersMaterialized  prometheus.Counter
	OrdersCompleted     prometheus.Counter
	LedgersComputed     prometheus.Gauge
	PendingOrders       prometheus.Gauge
	ChaosScore          prometheus.Gauge
	ActiveAlerts        prometheus.Gauge
	EventsPublished     prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all metrics.
func New() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "derivation_ticks_total",
			Help: "Total derivation ticks executed",
		}, []string{"job"}),
		TickFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "derivation_tick_failures_total",
			Help: "Total derivation ticks that failed",
		}, []string{"job"}),
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "derivation_tick_duration_seconds",
			Help:    "Derivation tick duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"job"}),
		OrdersMaterialized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmacy_orders_materialized_total",
			Help: "Total pharmacy orders materialized from visits",
		}),
		OrdersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmacy_orders_completed_total",
			Help: "Total pharmacy orders completed at checkout",
		}),
		LedgersComputed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "billing_ledgers_current",
			Help: "Ledgers produced by the latest billing tick",
		}),
		PendingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pharmacy_orders_pending",
			Help: "Orders currently in the pending queue",
		}),
		ChaosScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "admin_chaos_score",
			Help: "Composite operational stress score (0-100)",
		}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "admin_active_alerts",
			Help: "Alerts raised by the latest metrics tick",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total derivation events published to the broker",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.TickFailures,
		m.TickDuration,
		m.OrdersMaterialized,
		m.OrdersCompleted,
		m.LedgersComputed,
		m.PendingOrders,
		m.ChaosScore,
		m.ActiveAlerts,
		m.EventsPublished,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
