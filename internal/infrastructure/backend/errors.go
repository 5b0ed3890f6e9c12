package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/erp/stockflow/internal/domain/shared"
)

// Operation names used in errors, spans and metrics
const (
	OpPurchaseOrderLines = "purchase_order_lines"
	OpReferenceLines     = "reference_lines"
	OpAvailableQuantity  = "available_quantity"
	OpSubmitPickup       = "submit_pickup"
	OpSubmitOutward      = "submit_outward"
	OpStockSummary       = "stock_summary"
)

var genericMessages = map[string]string{
	OpPurchaseOrderLines: "Failed to load purchase order lines",
	OpReferenceLines:     "Failed to load reference document lines",
	OpAvailableQuantity:  "Failed to load available quantity",
	OpSubmitPickup:       "Failed to create pickup",
	OpSubmitOutward:      "Failed to create outward stock entry",
	OpStockSummary:       "Failed to load stock summary",
}

// TransportError is a failed call to the stock backend.
// StatusCode is zero when no response was received.
type TransportError struct {
	Operation  string
	StatusCode int
	Detail     string
	Err        error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	msg := e.Message()
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying network or decode error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, shared.ErrBackendFailure) match transport failures
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*shared.DomainError)
	return ok && t.Code == shared.ErrBackendFailure.Code
}

// Message returns the backend's detail when it sent one, otherwise a generic message
func (e *TransportError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if msg, ok := genericMessages[e.Operation]; ok {
		return msg
	}
	return shared.ErrBackendFailure.Message
}

// HTTPStatus maps the failure to the status stockflow answers with.
// Backend client errors pass through; everything else is a bad gateway.
func (e *TransportError) HTTPStatus() int {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}

// parseDetail extracts a human readable message from a backend error body.
// It understands a string or list "detail", an "error" string or object and a top level "message".
func parseDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var raw struct {
		Detail  json.RawMessage `json:"detail"`
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return ""
	}
	if s := rawString(raw.Detail); s != "" {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if len(raw.Detail) > 0 && json.Unmarshal(raw.Detail, &items) == nil && len(items) > 0 {
		return strings.TrimSpace(items[0].Msg)
	}
	if len(raw.Error) > 0 {
		if s := rawString(raw.Error); s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw.Error, &nested) == nil && nested.Message != "" {
			return strings.TrimSpace(nested.Message)
		}
	}
	return strings.TrimSpace(raw.Message)
}

func rawString(data json.RawMessage) string {
	var s string
	if len(data) == 0 || json.Unmarshal(data, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
