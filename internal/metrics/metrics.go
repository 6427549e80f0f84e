package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spacebook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		},
		[]string{"endpoint", "status"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking lifecycle events by outcome.",
		},
		[]string{"outcome"},
	)

	callbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_callbacks_total",
			Help:      "M-Pesa callbacks by reconciliation result.",
		},
		[]string{"result"},
	)

	mpesaRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mpesa_requests_total",
			Help:      "Outbound Daraja calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookings, callbacks, mpesaRequests)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string, status int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// IncBooking counts booking_created, payment_completed and payment_failed.
func IncBooking(outcome string) {
	bookings.WithLabelValues(outcome).Inc()
}

func IncCallback(result string) {
	callbacks.WithLabelValues(result).Inc()
}

// IncMPesa records one outbound provider call; outcome is "ok" or "error".
func IncMPesa(operation, outcome string) {
	mpesaRequests.WithLabelValues(operation, outcome).Inc()
}
