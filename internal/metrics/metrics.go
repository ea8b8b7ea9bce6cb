// Package metrics holds the Prometheus collectors of the engine.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups every counter the engine exports. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	registry *prometheus.Registry

	PortfolioLoads   *prometheus.CounterVec
	AlertsEvaluated  *prometheus.CounterVec
	Notifications    *prometheus.CounterVec
	ContagionQueries prometheus.Counter
	ScenariosApplied *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		PortfolioLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditpulse_portfolio_loads_total",
			Help: "Portfolio loads by result.",
		}, []string{"result"}),
		AlertsEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditpulse_alerts_evaluated_total",
			Help: "Spread move evaluations by outcome.",
		}, []string{"abnormal"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditpulse_notifications_total",
			Help: "Notification deliveries by channel and result.",
		}, []string{"channel", "result"}),
		ContagionQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "creditpulse_contagion_queries_total",
			Help: "Contagion propagation and path queries.",
		}),
		ScenariosApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditpulse_scenarios_applied_total",
			Help: "Scenario applications by known/unknown preset.",
		}, []string{"known"}),
	}
	c.registry.MustRegister(
		c.PortfolioLoads,
		c.AlertsEvaluated,
		c.Notifications,
		c.ContagionQueries,
		c.ScenariosApplied,
	)
	return c
}

// Registry exposes the underlying registry for gathering.
func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveLoad counts one portfolio load.
func (c *Collectors) ObserveLoad(err error) {
	if c == nil {
		return
	}
	c.PortfolioLoads.WithLabelValues(result(err)).Inc()
}

// ObserveAlert counts one alert evaluation.
func (c *Collectors) ObserveAlert(abnormal bool) {
	if c == nil {
		return
	}
	c.AlertsEvaluated.WithLabelValues(strconv.FormatBool(abnormal)).Inc()
}

// ObserveNotification counts one delivery attempt on a channel.
func (c *Collectors) ObserveNotification(channel string, err error) {
	if c == nil {
		return
	}
	c.Notifications.WithLabelValues(channel, result(err)).Inc()
}

// ObserveContagionQuery counts one contagion query.
func (c *Collectors) ObserveContagionQuery() {
	if c == nil {
		return
	}
	c.ContagionQueries.Inc()
}

// ObserveScenario counts one scenario application.
func (c *Collectors) ObserveScenario(known bool) {
	if c == nil {
		return
	}
	c.ScenariosApplied.WithLabelValues(strconv.FormatBool(known)).Inc()
}
