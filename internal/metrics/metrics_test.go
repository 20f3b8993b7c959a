package metrics_test

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/infosweep/internal/metrics"
)

func TestHandler_ExposesRegisteredCounters(t *testing.T) {
	metrics.EventsFetchedTotal.WithLabelValues("gist").Add(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "infosweep_events_fetched_total")
}

func TestQueueDepth_GaugeTracksSetValue(t *testing.T) {
	metrics.QueueDepth.WithLabelValues("raw").Set(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(metrics.QueueDepth.WithLabelValues("raw")))
}

func TestMatcherState_Gauge(t *testing.T) {
	metrics.MatcherState.Set(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MatcherState))
}
