package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(NotificationsSkipped.WithLabelValues(SkipExisting))
	NotificationsSkipped.WithLabelValues(SkipExisting).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(NotificationsSkipped.WithLabelValues(SkipExisting)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	EscalationsTotal.WithLabelValues("warning").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alert_escalations_total")
}
