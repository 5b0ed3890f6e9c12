package stock

import (
	"encoding/json"
	"fmt"

	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// EditOutcome describes how the editor handled a mutation request
type EditOutcome string

const (
	EditOutcomeAccepted         EditOutcome = "ACCEPTED"
	EditOutcomeExceedsAvailable EditOutcome = "EXCEEDS_AVAILABLE"
	EditOutcomeLineNotFound     EditOutcome = "LINE_NOT_FOUND"
	EditOutcomeNotAllowed       EditOutcome = "NOT_ALLOWED"
)

// EditResult is returned by every editor mutation. Rejections are values, not errors,
// and a rejected edit never changes state.
type EditResult struct {
	Outcome   EditOutcome          `json:"outcome"`
	Accepted  bool                 `json:"accepted"`
	LineIndex int                  `json:"line_index"`
	Quantity  valueobject.Quantity `json:"quantity"`
	Amount    decimal.Decimal      `json:"amount"`
	Available valueobject.Quantity `json:"available"`
	Warning   string               `json:"warning,omitempty"`
	Revision  uint64               `json:"revision"`
}

// LineItemEditor holds the ordered line set of one transaction draft and mediates every
// quantity edit through the line's availability bound.
// Each accepted mutation bumps the revision and marks the editor dirty.
// It is not safe for concurrent use; callers serialize access per draft.
type LineItemEditor struct {
	txType   TransactionType
	items    []LineItem
	revision uint64
	dirty    bool
}

// NewLineItemEditor creates an empty editor for the given transaction type
func NewLineItemEditor(txType TransactionType) *LineItemEditor {
	return &LineItemEditor{txType: txType}
}

// Type returns the transaction type the editor enforces bounds for
func (e *LineItemEditor) Type() TransactionType {
	return e.txType
}

// Items returns a copy of the current line set
func (e *LineItemEditor) Items() []LineItem {
	out := make([]LineItem, len(e.items))
	copy(out, e.items)
	return out
}

// Len returns the number of lines
func (e *LineItemEditor) Len() int {
	return len(e.items)
}

// Revision returns the mutation counter
func (e *LineItemEditor) Revision() uint64 {
	return e.revision
}

// Dirty reports whether the line set changed since the last successful validation
func (e *LineItemEditor) Dirty() bool {
	return e.dirty
}

// MarkValidated clears the dirty flag if rev is still the current revision
func (e *LineItemEditor) MarkValidated(rev uint64) {
	if rev == e.revision {
		e.dirty = false
	}
}

// SetQuantity parses raw and applies it to the line at index.
// Input that does not parse as a non-negative number is treated as zero.
func (e *LineItemEditor) SetQuantity(index int, raw string) EditResult {
	if index < 0 || index >= len(e.items) {
		return EditResult{
			Outcome:   EditOutcomeLineNotFound,
			LineIndex: index,
			Warning:   fmt.Sprintf("line %d does not exist", index),
			Revision:  e.revision,
		}
	}

	item := &e.items[index]
	q := valueobject.ParseQuantityInput(raw)

	if item.Bounded && q.Exceeds(item.Available) {
		return EditResult{
			Outcome:   EditOutcomeExceedsAvailable,
			LineIndex: index,
			Quantity:  item.Quantity,
			Amount:    item.Amount,
			Available: item.Available,
			Warning: fmt.Sprintf("Quantity %s for %s exceeds available quantity %s",
				q.String(), item.Label(), item.Available.String()),
			Revision: e.revision,
		}
	}

	item.Quantity = q
	item.Amount = q.Times(item.Rate)
	e.touch()

	return EditResult{
		Outcome:   EditOutcomeAccepted,
		Accepted:  true,
		LineIndex: index,
		Quantity:  item.Quantity,
		Amount:    item.Amount,
		Available: item.Available,
		Revision:  e.revision,
	}
}

// ReplaceLineSet swaps the whole sequence. Quantities entered against the previous
// reference set are discarded: every new line starts at zero.
func (e *LineItemEditor) ReplaceLineSet(items []LineItem) {
	next := make([]LineItem, len(items))
	for i, item := range items {
		item.Quantity = valueobject.ZeroQuantity()
		item.Amount = decimal.Zero
		next[i] = item
	}
	e.items = next
	e.touch()
}

// AppendLine adds a manual line. Only unbounded transaction types accept manual lines.
func (e *LineItemEditor) AppendLine(item LineItem) EditResult {
	if e.txType.Bounded() {
		return EditResult{
			Outcome:   EditOutcomeNotAllowed,
			LineIndex: len(e.items),
			Warning:   fmt.Sprintf("manual lines are not allowed for %s", e.txType),
			Revision:  e.revision,
		}
	}

	item.Bounded = false
	item.Amount = item.Quantity.Times(item.Rate)
	e.items = append(e.items, item)
	e.touch()

	return EditResult{
		Outcome:   EditOutcomeAccepted,
		Accepted:  true,
		LineIndex: len(e.items) - 1,
		Quantity:  item.Quantity,
		Amount:    item.Amount,
		Revision:  e.revision,
	}
}

// RemoveLine drops the line at index
func (e *LineItemEditor) RemoveLine(index int) EditResult {
	if index < 0 || index >= len(e.items) {
		return EditResult{
			Outcome:   EditOutcomeLineNotFound,
			LineIndex: index,
			Warning:   fmt.Sprintf("line %d does not exist", index),
			Revision:  e.revision,
		}
	}

	e.items = append(e.items[:index:index], e.items[index+1:]...)
	e.touch()

	return EditResult{
		Outcome:   EditOutcomeAccepted,
		Accepted:  true,
		LineIndex: index,
		Revision:  e.revision,
	}
}

// Reset empties the line set
func (e *LineItemEditor) Reset() {
	e.items = nil
	e.touch()
}

func (e *LineItemEditor) touch() {
	e.revision++
	e.dirty = true
}

type editorJSON struct {
	Type     TransactionType `json:"type"`
	Revision uint64          `json:"revision"`
	Dirty    bool            `json:"dirty"`
	Items    []LineItem      `json:"items"`
}

// MarshalJSON exposes the editor state for persistence and API responses
func (e *LineItemEditor) MarshalJSON() ([]byte, error) {
	items := e.items
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(editorJSON{
		Type:     e.txType,
		Revision: e.revision,
		Dirty:    e.dirty,
		Items:    items,
	})
}

// UnmarshalJSON restores a persisted editor
func (e *LineItemEditor) UnmarshalJSON(data []byte) error {
	var raw editorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.txType = raw.Type
	e.revision = raw.Revision
	e.dirty = raw.Dirty
	e.items = raw.Items
	return nil
}
