package stock

import (
	"encoding/json"

	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LedgerEntry is the read-only per (product, warehouse) quantity aggregate owned by the backend.
// All quantities are non-negative: missing or null fields decode to zero and negative
// upstream values are floored to zero before any arithmetic.
// AlreadyInwarded + InTransit <= POQuantity is expected but not enforced here.
type LedgerEntry struct {
	ProductID         string               `json:"product_id"`
	WarehouseID       string               `json:"warehouse_id,omitempty"`
	PIQuantity        valueobject.Quantity `json:"pi_quantity"`
	POQuantity        valueobject.Quantity `json:"po_quantity"`
	AlreadyInwarded   valueobject.Quantity `json:"already_inwarded"`
	InTransit         valueobject.Quantity `json:"in_transit"`
	AlreadyDispatched valueobject.Quantity `json:"already_dispatched"`
}

// LedgerFigures holds the raw upstream figures for NewLedgerEntry
type LedgerFigures struct {
	PIQuantity        decimal.Decimal
	POQuantity        decimal.Decimal
	AlreadyInwarded   decimal.Decimal
	InTransit         decimal.Decimal
	AlreadyDispatched decimal.Decimal
}

// NewLedgerEntry builds a ledger entry from raw figures, flooring negatives at zero
func NewLedgerEntry(productID, warehouseID string, f LedgerFigures) LedgerEntry {
	return LedgerEntry{
		ProductID:         productID,
		WarehouseID:       warehouseID,
		PIQuantity:        valueobject.FloorQuantity(f.PIQuantity),
		POQuantity:        valueobject.FloorQuantity(f.POQuantity),
		AlreadyInwarded:   valueobject.FloorQuantity(f.AlreadyInwarded),
		InTransit:         valueobject.FloorQuantity(f.InTransit),
		AlreadyDispatched: valueobject.FloorQuantity(f.AlreadyDispatched),
	}
}

type ledgerEntryJSON struct {
	ProductID         string              `json:"product_id"`
	WarehouseID       string              `json:"warehouse_id"`
	PIQuantity        decimal.NullDecimal `json:"pi_quantity"`
	POQuantity        decimal.NullDecimal `json:"po_quantity"`
	AlreadyInwarded   decimal.NullDecimal `json:"already_inwarded"`
	InTransit         decimal.NullDecimal `json:"in_transit"`
	AlreadyDispatched decimal.NullDecimal `json:"already_dispatched"`
}

// UnmarshalJSON decodes an upstream ledger record leniently: null, missing and negative
// quantities all become zero.
func (e *LedgerEntry) UnmarshalJSON(data []byte) error {
	var raw ledgerEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = NewLedgerEntry(raw.ProductID, raw.WarehouseID, LedgerFigures{
		PIQuantity:        nullToZero(raw.PIQuantity),
		POQuantity:        nullToZero(raw.POQuantity),
		AlreadyInwarded:   nullToZero(raw.AlreadyInwarded),
		InTransit:         nullToZero(raw.InTransit),
		AlreadyDispatched: nullToZero(raw.AlreadyDispatched),
	})
	return nil
}

func nullToZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// Availability is the derived, never persisted snapshot computed from a LedgerEntry.
// It is advisory: it goes stale as soon as another transaction posts elsewhere.
type Availability struct {
	ForPickup   valueobject.Quantity `json:"available_for_pickup"`
	ForDispatch valueobject.Quantity `json:"available_for_dispatch"`
}

// ComputeAvailability derives pickup and dispatch availability from a ledger entry.
//
//	available_for_pickup   = max(0, po_quantity - already_inwarded - in_transit)
//	available_for_dispatch = max(0, already_inwarded - already_dispatched)
//
// It is pure and never fails.
func ComputeAvailability(entry LedgerEntry) Availability {
	return Availability{
		ForPickup:   entry.POQuantity.SubtractFloor(entry.AlreadyInwarded).SubtractFloor(entry.InTransit),
		ForDispatch: entry.AlreadyInwarded.SubtractFloor(entry.AlreadyDispatched),
	}
}

// For returns the bound that applies to the given transaction type.
// The second result is false when the type is exempt from availability bounds.
func (a Availability) For(txType TransactionType) (valueobject.Quantity, bool) {
	switch txType {
	case TransactionTypePickup:
		return a.ForPickup, true
	case TransactionTypeDispatchPlan, TransactionTypeExportInvoice:
		return a.ForDispatch, true
	default:
		return valueobject.ZeroQuantity(), false
	}
}
