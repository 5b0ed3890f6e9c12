package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockMetrics_BusinessCounters(t *testing.T) {
	m := NewStockMetrics(prometheus.NewRegistry())

	m.RecordEditRejected(stock.EditOutcomeExceedsAvailable)
	m.RecordEditRejected(stock.EditOutcomeExceedsAvailable)
	m.RecordValidationRejected(stock.RejectReasonNoWarehouse)
	m.RecordStaleFetch()
	m.RecordTransportError("submit")
	m.RecordSubmission(stock.TransactionTypePickup)
	m.RecordAvailabilityMismatch("line")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.editRejected.WithLabelValues("EXCEEDS_AVAILABLE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationRejected.WithLabelValues("NO_WAREHOUSE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.staleFetches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transportErrors.WithLabelValues("submit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("pickup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mismatches.WithLabelValues("line")))
}

func TestStockMetrics_ObserveHTTPRequest(t *testing.T) {
	m := NewStockMetrics(prometheus.NewRegistry())

	m.ObserveHTTPRequest("POST", "/api/v1/drafts/:id/submit", 422, 15*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/v1/drafts/:id/submit", "422")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
}

func TestStockMetrics_Handler(t *testing.T) {
	m := NewStockMetrics(nil)
	m.RecordSubmission(stock.TransactionTypeDispatchPlan)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `stockflow_submissions_total{type="dispatch_plan"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestStockMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewStockMetrics(reg)
	assert.Panics(t, func() { NewStockMetrics(reg) })
}
