package stock

import (
	"github.com/erp/stockflow/internal/domain/stock"
)

// Backend operations reported to the metrics recorder
const (
	OperationPurchaseOrderLines = "purchase_order_lines"
	OperationReferenceLines     = "reference_lines"
	OperationAvailableQuantity  = "available_quantity"
	OperationSubmit             = "submit"
	OperationStockSummary       = "stock_summary"
)

// Mismatch sources reported to the metrics recorder
const (
	MismatchSourceLine    = "line"
	MismatchSourceSummary = "summary"
)

// MetricsRecorder receives business counters from the stock services
type MetricsRecorder interface {
	RecordEditRejected(outcome stock.EditOutcome)
	RecordValidationRejected(reason stock.RejectReason)
	RecordStaleFetch()
	RecordTransportError(operation string)
	RecordSubmission(txType stock.TransactionType)
	RecordAvailabilityMismatch(source string)
}

// NoopMetrics discards everything
type NoopMetrics struct{}

func (NoopMetrics) RecordEditRejected(stock.EditOutcome) {}
func (NoopMetrics) RecordValidationRejected(stock.RejectReason) {}
func (NoopMetrics) RecordStaleFetch() {}
func (NoopMetrics) RecordTransportError(string) {}
func (NoopMetrics) RecordSubmission(stock.TransactionType) {}
func (NoopMetrics) RecordAvailabilityMismatch(string) {}
