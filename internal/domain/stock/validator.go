package stock

import (
	"fmt"
)

// RejectReason names why a submit attempt was rejected
type RejectReason string

const (
	RejectReasonNoReference              RejectReason = "NO_REFERENCE"
	RejectReasonNoWarehouse              RejectReason = "NO_WAREHOUSE"
	RejectReasonNoPositiveQuantity       RejectReason = "NO_POSITIVE_QUANTITY"
	RejectReasonQuantityExceedsAvailable RejectReason = "QUANTITY_EXCEEDS_AVAILABLE"
)

// SubmitState is the state of a single submit attempt
type SubmitState string

const (
	SubmitStateIdle       SubmitState = "idle"
	SubmitStateValidating SubmitState = "validating"
	SubmitStateValid      SubmitState = "valid"
	SubmitStateRejected   SubmitState = "rejected"
)

// IsTerminal returns true once the attempt has a verdict
func (s SubmitState) IsTerminal() bool {
	return s == SubmitStateValid || s == SubmitStateRejected
}

// ValidationError is the error form of a rejected verdict
type ValidationError struct {
	Reason    RejectReason `json:"reason"`
	LineIndex int          `json:"line_index"`
	ProductID string       `json:"product_id,omitempty"`
	Message   string       `json:"message"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// Verdict is the outcome of one submit attempt. It is bound to the editor revision it
// was computed for and carries the request only when State is valid.
type Verdict struct {
	State     SubmitState         `json:"state"`
	Reason    RejectReason        `json:"reason,omitempty"`
	LineIndex int                 `json:"line_index"`
	ProductID string              `json:"product_id,omitempty"`
	Message   string              `json:"message,omitempty"`
	Revision  uint64              `json:"revision"`
	Request   *TransactionRequest `json:"request,omitempty"`
}

// IsValid returns true if the attempt passed every check
func (v Verdict) IsValid() bool {
	return v.State == SubmitStateValid && v.Request != nil
}

// UsableFor reports whether the verdict may still be used to build a request for the editor.
// A verdict computed for an older revision is never usable.
func (v Verdict) UsableFor(editor *LineItemEditor) bool {
	return v.IsValid() && editor != nil && v.Revision == editor.Revision()
}

// Err returns a *ValidationError for rejected verdicts and nil otherwise
func (v Verdict) Err() error {
	if v.State != SubmitStateRejected {
		return nil
	}
	return &ValidationError{
		Reason:    v.Reason,
		LineIndex: v.LineIndex,
		ProductID: v.ProductID,
		Message:   v.Message,
	}
}

// SubmitAttempt runs the validator exactly once: Idle -> Validating -> {Valid, Rejected}.
// Once terminal, further runs return the same verdict; a new attempt is needed after edits.
type SubmitAttempt struct {
	state   SubmitState
	verdict Verdict
}

// NewSubmitAttempt creates an idle attempt
func NewSubmitAttempt() *SubmitAttempt {
	return &SubmitAttempt{state: SubmitStateIdle}
}

// State returns the current attempt state
func (a *SubmitAttempt) State() SubmitState {
	return a.state
}

// Run validates header and lines and records the verdict
func (a *SubmitAttempt) Run(header Header, editor *LineItemEditor) Verdict {
	if a.state.IsTerminal() {
		return a.verdict
	}
	a.state = SubmitStateValidating
	a.verdict = evaluate(header, editor)
	a.state = a.verdict.State
	return a.verdict
}

// SubmissionValidator is the last gate before a TransactionRequest reaches the transport
type SubmissionValidator struct{}

// NewSubmissionValidator creates a validator
func NewSubmissionValidator() SubmissionValidator {
	return SubmissionValidator{}
}

// Validate runs a fresh submit attempt
func (SubmissionValidator) Validate(header Header, editor *LineItemEditor) Verdict {
	return NewSubmitAttempt().Run(header, editor)
}

func evaluate(header Header, editor *LineItemEditor) Verdict {
	revision := editor.Revision()
	reject := func(reason RejectReason, index int, msg string) Verdict {
		return Verdict{
			State:     SubmitStateRejected,
			Reason:    reason,
			LineIndex: index,
			Message:   msg,
			Revision:  revision,
		}
	}

	txType := header.Type
	if txType.RequiresReference() && !header.References.SelectedFor(txType) {
		return reject(RejectReasonNoReference, -1,
			fmt.Sprintf("Select a reference document before submitting a %s", txType))
	}
	if txType.RequiresWarehouse() && header.WarehouseID == "" {
		return reject(RejectReasonNoWarehouse, -1, "Select a warehouse before submitting")
	}

	items := editor.Items()
	positive := make([]int, 0, len(items))
	for i, item := range items {
		if item.Quantity.IsPositive() {
			positive = append(positive, i)
		}
	}
	if len(positive) == 0 {
		return reject(RejectReasonNoPositiveQuantity, -1, "Enter a quantity greater than zero for at least one line")
	}

	lines := make([]RequestLine, 0, len(positive))
	for _, i := range positive {
		item := items[i]
		if txType.Bounded() && item.Quantity.Exceeds(item.Available) {
			v := reject(RejectReasonQuantityExceedsAvailable, i,
				fmt.Sprintf("Quantity %s for %s exceeds available quantity %s",
					item.Quantity.String(), item.Label(), item.Available.String()))
			v.ProductID = item.ProductID
			return v
		}
		lines = append(lines, item.toRequestLine())
	}

	return Verdict{
		State:     SubmitStateValid,
		LineIndex: -1,
		Revision:  revision,
		Request: &TransactionRequest{
			Header: header,
			Lines:  lines,
		},
	}
}
