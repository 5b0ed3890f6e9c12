package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code,
// so wrapped or re-created errors still match the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound       = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput   = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState   = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrUnauthorized   = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrDraftNotFound  = NewDomainError("DRAFT_NOT_FOUND", "Transaction draft not found")
	ErrDraftClosed    = NewDomainError("DRAFT_CLOSED", "Transaction draft has already been submitted")
	ErrInvalidTxType  = NewDomainError("INVALID_TRANSACTION_TYPE", "Unknown transaction type")
	ErrBackendFailure = NewDomainError("BACKEND_UNAVAILABLE", "Stock backend request failed")
)
