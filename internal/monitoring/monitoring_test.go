package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecordOrder tests the order counters
func TestRecordOrder(t *testing.T) {
	before := testutil.ToFloat64(ordersTotal.WithLabelValues("ETHUSDT", "primary", "filled"))
	RecordOrder("ETHUSDT", "primary", "filled", 0.5)
	RecordOrder("ETHUSDT", "primary", "filled", 0)
	assert.Equal(t, before+2, testutil.ToFloat64(ordersTotal.WithLabelValues("ETHUSDT", "primary", "filled")))
}

// TestRecordCounters tests rejection, dependent failure and risk counters
func TestRecordCounters(t *testing.T) {
	rej := testutil.ToFloat64(validationRejections.WithLabelValues("amount below minimum"))
	RecordRejection("amount below minimum")
	assert.Equal(t, rej+1, testutil.ToFloat64(validationRejections.WithLabelValues("amount below minimum")))

	dep := testutil.ToFloat64(dependentFailures.WithLabelValues("stop_loss"))
	RecordDependentFailure("stop_loss")
	assert.Equal(t, dep+1, testutil.ToFloat64(dependentFailures.WithLabelValues("stop_loss")))

	failed := testutil.ToFloat64(riskAssessments.WithLabelValues("false"))
	RecordRiskAssessment(false)
	assert.Equal(t, failed+1, testutil.ToFloat64(riskAssessments.WithLabelValues("false")))

	UpdatePrice("BTCUSDT", 42000)
	assert.Equal(t, 42000.0, testutil.ToFloat64(currentPrice.WithLabelValues("BTCUSDT")))

	runs := testutil.ToFloat64(backtestRuns)
	RecordBacktestRun()
	assert.Equal(t, runs+1, testutil.ToFloat64(backtestRuns))
}

// TestHandler tests that the metrics endpoint exposes registered series
func TestHandler(t *testing.T) {
	RecordError("CONNECTIVITY")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trade_engine_errors_total")
}

// TestHealthChecker tests the status transitions of the health endpoint
func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()

	_, code := h.Status()
	assert.Equal(t, http.StatusServiceUnavailable, code)

	h.SetConnected(true)
	h.RecordOrder(101.5)
	status, code := h.Status()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)

	h.RecordError("submit failed")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, 101.5, body.LastPrice)
	assert.Equal(t, []string{"submit failed"}, body.Errors)

	h.ClearErrors()
	status, _ = h.Status()
	assert.Equal(t, "healthy", status.Status)
}
