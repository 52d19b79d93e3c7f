package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlashr/discipline-engine/metrics"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	assert.NotPanics(t, func() {
		metrics.New()
		metrics.New()
	})
}

func TestMetrics_HandlerExposesCounters(t *testing.T) {
	m := metrics.New()
	m.EventsTotal.WithLabelValues("late_arrival").Inc()
	m.ReplaysTotal.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "discipline_tardiness_events_total")
	assert.Contains(t, string(body), "discipline_tardiness_replays_total")
}
