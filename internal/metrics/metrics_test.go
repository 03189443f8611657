package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector("clinic")

	c.ObserveBooking("ok")
	c.ObserveBooking("ok")
	c.ObserveBooking("SLOT_ALREADY_TAKEN")
	c.ObserveTransition("CANCELLED")
	c.ObserveNotificationFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.BookingsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BookingsTotal.WithLabelValues("SLOT_ALREADY_TAKEN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TransitionsTotal.WithLabelValues("CANCELLED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NotificationFailures))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveBooking("ok")
		c.ObserveTransition("ATTENDED")
		c.ObserveNotificationFailure()
		c.ObserveReminder()
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("clinic")
	c.ObserveReminder()

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "clinic_notify_reminders_sent_total 1")
}

func TestServerRoutesMetrics(t *testing.T) {
	c := NewCollector("clinic")
	c.ObserveReminder()
	c.ObserveNotificationFailure()

	srv := c.Server(":9091")
	assert.Equal(t, ":9091", srv.Addr)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "clinic_notify_reminders_sent_total 1")
	assert.Contains(t, rr.Body.String(), "clinic_notify_failures_total 1")

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
