package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "car_service", Name: "bookings_created_total", Help: "Total number of bookings created"})
	BookingsCancelled  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "car_service", Name: "bookings_cancelled_total", Help: "Total number of bookings cancelled"})
	BookingsPaid       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "car_service", Name: "bookings_paid_total", Help: "Total number of bookings marked paid"})
	AssistantFallbacks = promauto.NewCounter(prometheus.CounterOpts{Namespace: "car_service", Name: "assistant_fallbacks_total", Help: "Bookings created with the fallback confirmation text"})

	Assignments = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "car_service", Name: "assignments_total", Help: "Assignment attempts by result"},
		[]string{"result"},
	)
	AssignLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "car_service", Name: "assign_latency_seconds", Help: "Assignment latency seconds"})

	DriversOnline       = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "car_service", Name: "drivers_online", Help: "Number of online drivers"})
	TrackingTasksActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "car_service", Name: "tracking_tasks_active", Help: "Running trip simulations"})
	ArrivalsTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "car_service", Name: "arrivals_total", Help: "Simulated trips that reached the drop-off"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "car_service", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "car_service",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
