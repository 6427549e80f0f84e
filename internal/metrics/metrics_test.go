package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/spaces", 200)
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(bookings.WithLabelValues("booking_created"))
	IncBooking("booking_created")
	assert.Equal(t, before+1, testutil.ToFloat64(bookings.WithLabelValues("booking_created")))

	before = testutil.ToFloat64(mpesaRequests.WithLabelValues("stk_push", "error"))
	IncMPesa("stk_push", "error")
	assert.Equal(t, before+1, testutil.ToFloat64(mpesaRequests.WithLabelValues("stk_push", "error")))

	before = testutil.ToFloat64(callbacks.WithLabelValues("unmatched"))
	IncCallback("unmatched")
	assert.Equal(t, before+1, testutil.ToFloat64(callbacks.WithLabelValues("unmatched")))
}
