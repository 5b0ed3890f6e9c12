package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeDraftNotFound = "ERR_DRAFT_NOT_FOUND"
	ErrCodeDraftClosed   = "ERR_DRAFT_CLOSED"
	ErrCodeUnauthorized  = "ERR_UNAUTHORIZED"
)

// Business rule error codes
const (
	ErrCodeInvalidState           = "ERR_INVALID_STATE"
	ErrCodeInvalidTransactionType = "ERR_INVALID_TRANSACTION_TYPE"
	ErrCodeInvalidEntryType       = "ERR_INVALID_ENTRY_TYPE"
)

// Line edit rejection codes, one per editor outcome
const (
	ErrCodeExceedsAvailable = "ERR_EXCEEDS_AVAILABLE"
	ErrCodeLineNotFound     = "ERR_LINE_NOT_FOUND"
	ErrCodeNotAllowed       = "ERR_NOT_ALLOWED"
)

// Submit rejection codes, one per validator reason
const (
	ErrCodeNoReference              = "ERR_NO_REFERENCE"
	ErrCodeNoWarehouse              = "ERR_NO_WAREHOUSE"
	ErrCodeNoPositiveQuantity       = "ERR_NO_POSITIVE_QUANTITY"
	ErrCodeQuantityExceedsAvailable = "ERR_QUANTITY_EXCEEDS_AVAILABLE"
)

// Backend error codes
const (
	ErrCodeBackendUnavailable = "ERR_BACKEND_UNAVAILABLE"
	ErrCodeBackendRejected    = "ERR_BACKEND_REJECTED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeDraftNotFound: http.StatusNotFound,
	ErrCodeDraftClosed:   http.StatusConflict,
	ErrCodeUnauthorized:  http.StatusUnauthorized,

	ErrCodeInvalidState:           http.StatusUnprocessableEntity,
	ErrCodeInvalidTransactionType: http.StatusBadRequest,
	ErrCodeInvalidEntryType:       http.StatusBadRequest,

	ErrCodeExceedsAvailable: http.StatusUnprocessableEntity,
	ErrCodeLineNotFound:     http.StatusUnprocessableEntity,
	ErrCodeNotAllowed:       http.StatusUnprocessableEntity,

	ErrCodeNoReference:              http.StatusUnprocessableEntity,
	ErrCodeNoWarehouse:              http.StatusUnprocessableEntity,
	ErrCodeNoPositiveQuantity:       http.StatusUnprocessableEntity,
	ErrCodeQuantityExceedsAvailable: http.StatusUnprocessableEntity,

	ErrCodeBackendUnavailable: http.StatusBadGateway,
	ErrCodeBackendRejected:    http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to API error codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":                  ErrCodeNotFound,
	"INVALID_INPUT":              ErrCodeInvalidInput,
	"INVALID_STATE":              ErrCodeInvalidState,
	"UNAUTHORIZED":               ErrCodeUnauthorized,
	"DRAFT_NOT_FOUND":            ErrCodeDraftNotFound,
	"DRAFT_CLOSED":               ErrCodeDraftClosed,
	"INVALID_TRANSACTION_TYPE":   ErrCodeInvalidTransactionType,
	"INVALID_ENTRY_TYPE":         ErrCodeInvalidEntryType,
	"BACKEND_UNAVAILABLE":        ErrCodeBackendUnavailable,
	"EXCEEDS_AVAILABLE":          ErrCodeExceedsAvailable,
	"LINE_NOT_FOUND":             ErrCodeLineNotFound,
	"NOT_ALLOWED":                ErrCodeNotAllowed,
	"NO_REFERENCE":               ErrCodeNoReference,
	"NO_WAREHOUSE":               ErrCodeNoWarehouse,
	"NO_POSITIVE_QUANTITY":       ErrCodeNoPositiveQuantity,
	"QUANTITY_EXCEEDS_AVAILABLE": ErrCodeQuantityExceedsAvailable,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format or unknown pass through unchanged.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
