// Package metrics holds the Prometheus collectors of the bot.
//
// Exposed series:
//   - rotabot_decisions_total{action}       decisions taken per cycle
//   - rotabot_orders_total{side,type}       orders sent to the exchange
//   - rotabot_portfolio_value_base          last post-cycle value in the base asset
//   - rotabot_value_regressions_total       cycles that ended worth less than they started
//   - rotabot_retries_total{op}             retried exchange calls
//   - rotabot_cycle_duration_seconds        wall time of each cycle
//
// Collectors are registered in init() and served at /metrics by cmd/rotabot
// when metrics.addr is set.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotabot_decisions_total",
			Help: "Decisions taken, by action",
		},
		[]string{"action"},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotabot_orders_total",
			Help: "Orders sent to the exchange",
		},
		[]string{"side", "type"}, // BUY|SELL, MARKET|LIMIT
	)

	portfolioValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rotabot_portfolio_value_base",
			Help: "Portfolio value in the base asset after the last cycle",
		},
	)

	valueRegressions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rotabot_value_regressions_total",
			Help: "Cycles whose closing value was below the opening value",
		},
	)

	retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotabot_retries_total",
			Help: "Exchange calls retried after a failure",
		},
		[]string{"op"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rotabot_cycle_duration_seconds",
			Help:    "Wall time of one cycle",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(decisions, orders, portfolioValue, valueRegressions)
	prometheus.MustRegister(retries, cycleDuration)
}

func IncDecision(action string)       { decisions.WithLabelValues(action).Inc() }
func IncOrder(side, orderType string) { orders.WithLabelValues(side, orderType).Inc() }
func SetPortfolioValue(v float64)     { portfolioValue.Set(v) }
func IncValueRegression()             { valueRegressions.Inc() }
func IncRetry(op string)              { retries.WithLabelValues(op).Inc() }
func ObserveCycle(seconds float64)    { cycleDuration.Observe(seconds) }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
