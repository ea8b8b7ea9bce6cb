package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsCount(t *testing.T) {
	c := New()
	c.ObserveLoad(nil)
	c.ObserveLoad(errors.New("boom"))
	c.ObserveLoad(nil)
	c.ObserveAlert(true)
	c.ObserveNotification("webhook", nil)
	c.ObserveContagionQuery()
	c.ObserveScenario(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.PortfolioLoads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PortfolioLoads.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AlertsEvaluated.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Notifications.WithLabelValues("webhook", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ContagionQueries))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ScenariosApplied.WithLabelValues("false")))
}

func TestNilCollectorsIsNoOp(t *testing.T) {
	var c *Collectors
	c.ObserveLoad(nil)
	c.ObserveAlert(false)
	c.ObserveNotification("slack", errors.New("x"))
	c.ObserveContagionQuery()
	c.ObserveScenario(true)
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.ObserveContagionQuery()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "creditpulse_contagion_queries_total 1"))
}
