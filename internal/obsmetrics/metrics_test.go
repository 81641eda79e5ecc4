package obsmetrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deepaucksharma/pidctl/internal/obsmetrics"
)

func TestRegistry_ExposesScrapedCounters(t *testing.T) {
	r := obsmetrics.NewRegistry()
	r.ObserveTick("pid-1", 0.05, 17.5)
	r.ObserveTickFailure("pid-1")
	r.ObserveDropped("pid-1")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, `pidctl_controller_ticks_total{controller_id="pid-1"} 1`)
	assert.Contains(t, body, `pidctl_controller_tick_failures_total{controller_id="pid-1"} 1`)
	assert.Contains(t, body, `pidctl_metrics_sink_dropped_total{controller_id="pid-1"} 1`)
	assert.True(t, strings.Contains(body, "pidctl_controller_output"))
}
