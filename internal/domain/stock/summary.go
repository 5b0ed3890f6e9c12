package stock

import (
	"encoding/json"
	"strings"

	"github.com/erp/stockflow/internal/domain/shared"
	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// EntryType selects which inward flow a stock summary covers
type EntryType string

const (
	EntryTypeRegular EntryType = "regular"
	EntryTypeDirect  EntryType = "direct"
)

// ParseEntryType parses an entry type; empty input selects regular entries
func ParseEntryType(s string) (EntryType, error) {
	switch EntryType(strings.ToLower(strings.TrimSpace(s))) {
	case "", EntryTypeRegular:
		return EntryTypeRegular, nil
	case EntryTypeDirect:
		return EntryTypeDirect, nil
	}
	return "", shared.NewDomainError("INVALID_ENTRY_TYPE", "entry_type must be regular or direct")
}

// SummaryRow is one per product and warehouse rollup from the backend stock summary
type SummaryRow struct {
	ProductID       string               `json:"product_id"`
	ProductName     string               `json:"product_name,omitempty"`
	SKU             string               `json:"sku,omitempty"`
	WarehouseID     string               `json:"warehouse_id,omitempty"`
	WarehouseName   string               `json:"warehouse_name,omitempty"`
	QuantityInward  valueobject.Quantity `json:"quantity_inward"`
	QuantityOutward valueobject.Quantity `json:"quantity_outward"`
	InTransit       valueobject.Quantity `json:"in_transit"`
	RemainingStock  valueobject.Quantity `json:"remaining_stock"`
	Status          string               `json:"status,omitempty"`
	AgeDays         int                  `json:"age_days"`
}

type summaryRowJSON struct {
	ProductID       string              `json:"product_id"`
	ProductName     string              `json:"product_name"`
	SKU             string              `json:"sku"`
	WarehouseID     string              `json:"warehouse_id"`
	WarehouseName   string              `json:"warehouse_name"`
	QuantityInward  decimal.NullDecimal `json:"quantity_inward"`
	QuantityOutward decimal.NullDecimal `json:"quantity_outward"`
	InTransit       decimal.NullDecimal `json:"in_transit"`
	RemainingStock  decimal.NullDecimal `json:"remaining_stock"`
	Status          string              `json:"status"`
	AgeDays         int                 `json:"age_days"`
}

// UnmarshalJSON decodes a backend row with the same leniency as LedgerEntry
func (r *SummaryRow) UnmarshalJSON(data []byte) error {
	var raw summaryRowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = SummaryRow{
		ProductID:       raw.ProductID,
		ProductName:     raw.ProductName,
		SKU:             raw.SKU,
		WarehouseID:     raw.WarehouseID,
		WarehouseName:   raw.WarehouseName,
		QuantityInward:  valueobject.FloorQuantity(nullToZero(raw.QuantityInward)),
		QuantityOutward: valueobject.FloorQuantity(nullToZero(raw.QuantityOutward)),
		InTransit:       valueobject.FloorQuantity(nullToZero(raw.InTransit)),
		RemainingStock:  valueobject.FloorQuantity(nullToZero(raw.RemainingStock)),
		Status:          raw.Status,
		AgeDays:         raw.AgeDays,
	}
	return nil
}

// ReconciledRow is a summary row with the client mirror alongside the backend figure
type ReconciledRow struct {
	SummaryRow
	AvailableForDispatch valueobject.Quantity `json:"available_for_dispatch"`
	Discrepancy          bool                 `json:"discrepancy"`
	Difference           decimal.Decimal      `json:"difference"`
}

// Reconcile mirrors available_for_dispatch = max(0, inward - outward) for a summary row
// and flags rows where the backend's remaining stock disagrees. The backend figure is
// never overwritten.
func Reconcile(row SummaryRow) ReconciledRow {
	mirror := ComputeAvailability(LedgerEntry{
		ProductID:         row.ProductID,
		WarehouseID:       row.WarehouseID,
		AlreadyInwarded:   row.QuantityInward,
		AlreadyDispatched: row.QuantityOutward,
	}).ForDispatch

	diff := row.RemainingStock.Decimal().Sub(mirror.Decimal())
	return ReconciledRow{
		SummaryRow:           row,
		AvailableForDispatch: mirror,
		Discrepancy:          !diff.IsZero(),
		Difference:           diff,
	}
}

// ReconcileAll reconciles every row, preserving order
func ReconcileAll(rows []SummaryRow) []ReconciledRow {
	out := make([]ReconciledRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, Reconcile(row))
	}
	return out
}
