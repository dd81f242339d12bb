package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/api/v1/bookings", 201)
		IncPayment("success")
		IncSagaRollback("append_user")
		IncSyncTask("completed")
		IncAllocationFallback("Booking")
		AddReconciled("confirmed", 0)
	})

	before := testutil.ToFloat64(allocationRetries.WithLabelValues("Payment"))
	IncAllocationRetry("Payment")
	assert.Equal(t, before+1, testutil.ToFloat64(allocationRetries.WithLabelValues("Payment")))

	IncBookingTransition("confirmed")
	assert.GreaterOrEqual(t, testutil.ToFloat64(bookingTransitions.WithLabelValues("confirmed")), 1.0)
}
