package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "travelbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"endpoint", "status"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking lifecycle transitions by target status.",
		},
		[]string{"status"},
	)

	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment attempts by outcome.",
		},
		[]string{"result"},
	)

	allocationRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_allocation_retries_total",
			Help:      "ID allocator collisions that triggered a retry.",
		},
		[]string{"table"},
	)

	allocationFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_allocation_fallbacks_total",
			Help:      "Counter allocations served by the scan allocator.",
		},
		[]string{"table"},
	)

	sagaRollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_saga_rollbacks_total",
			Help:      "Registration saga rollbacks by failed step.",
		},
		[]string{"step"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Bookkeeping tasks by outcome.",
		},
		[]string{"result"},
	)

	reconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_rows_total",
			Help:      "Rows repaired by the reconciliation sweep.",
		},
		[]string{"kind"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingTransitions,
			payments,
			allocationRetries,
			allocationFallbacks,
			sagaRollbacks,
			syncTasks,
			reconciled,
		)
	})
}

func IncHTTP(endpoint string, status int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func IncBookingTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

func IncPayment(result string) {
	payments.WithLabelValues(result).Inc()
}

func IncAllocationRetry(table string) {
	allocationRetries.WithLabelValues(table).Inc()
}

func IncAllocationFallback(table string) {
	allocationFallbacks.WithLabelValues(table).Inc()
}

func IncSagaRollback(step string) {
	sagaRollbacks.WithLabelValues(step).Inc()
}

func IncSyncTask(result string) {
	syncTasks.WithLabelValues(result).Inc()
}

func AddReconciled(kind string, n int) {
	if n > 0 {
		reconciled.WithLabelValues(kind).Add(float64(n))
	}
}
