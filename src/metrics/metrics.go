package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Confirmations counts confirm calls by outcome: inserted, replayed, rejected, failed.
	Confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_confirmations_total",
			Help: "Number of booking confirmations by outcome",
		},
		[]string{"outcome"},
	)

	ConfirmDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booking_confirm_duration_seconds",
			Help:    "Time taken to confirm a booking end to end",
			Buckets: prometheus.DefBuckets,
		},
	)

	TicketsRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_rendered_total",
			Help: "Number of ticket documents rendered by result",
		},
		[]string{"result"},
	)

	TicketsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_delivered_total",
			Help: "Number of ticket emails by result",
		},
		[]string{"result"},
	)

	GatewayOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_orders_total",
			Help: "Number of payment orders requested from the gateway by result",
		},
		[]string{"provider", "result"},
	)
)

var once sync.Once

func Register() {
	once.Do(func() {
		prometheus.MustRegister(Confirmations, ConfirmDuration, TicketsRendered, TicketsDelivered, GatewayOrders)
	})
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
