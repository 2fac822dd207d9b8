package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Execution metrics
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_engine_orders_total",
			Help: "Orders by role and terminal outcome",
		},
		[]string{"symbol", "role", "outcome"},
	)

	orderAmount = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trade_engine_order_amount",
			Help:    "Distribution of normalized order amounts",
			Buckets: prometheus.ExponentialBuckets(0.001, 10, 8),
		},
		[]string{"symbol"},
	)

	validationRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_engine_validation_rejections_total",
			Help: "Orders rejected locally by reason",
		},
		[]string{"reason"},
	)

	dependentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_engine_dependent_order_failures_total",
			Help: "Stop-loss or take-profit orders that failed after a successful primary",
		},
		[]string{"role"},
	)

	// Risk metrics
	riskAssessments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_engine_risk_assessments_total",
			Help: "Risk assessments by result",
		},
		[]string{"passed"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trade_engine_current_price",
			Help: "Last observed price of trading symbol",
		},
		[]string{"symbol"},
	)

	// Backtest metrics
	backtestRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trade_engine_backtest_runs_total",
			Help: "Completed backtest runs",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_engine_errors_total",
			Help: "Errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(ordersTotal)
	prometheus.MustRegister(orderAmount)
	prometheus.MustRegister(validationRejections)
	prometheus.MustRegister(dependentFailures)
	prometheus.MustRegister(riskAssessments)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(backtestRuns)
	prometheus.MustRegister(errorsTotal)
}

// Handler serves the Prometheus metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOrder records an order outcome; role is primary, stop_loss or take_profit
func RecordOrder(symbol, role, outcome string, amount float64) {
	ordersTotal.WithLabelValues(symbol, role, outcome).Inc()
	if amount > 0 {
		orderAmount.WithLabelValues(symbol).Observe(amount)
	}
}

// RecordRejection records a local validation rejection
func RecordRejection(reason string) {
	validationRejections.WithLabelValues(reason).Inc()
}

// RecordDependentFailure records a failed protective order
func RecordDependentFailure(role string) {
	dependentFailures.WithLabelValues(role).Inc()
}

// RecordRiskAssessment records the result of a risk sanity gate
func RecordRiskAssessment(passed bool) {
	label := "false"
	if passed {
		label = "true"
	}
	riskAssessments.WithLabelValues(label).Inc()
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// RecordBacktestRun counts a finished backtest
func RecordBacktestRun() {
	backtestRuns.Inc()
}

// RecordError records an error metric
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
