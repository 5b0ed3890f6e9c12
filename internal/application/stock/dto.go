package stock

import (
	"time"

	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateDraftInput holds the header fields for a new draft
type CreateDraftInput struct {
	Type        string
	Date        string
	CompanyID   string
	WarehouseID string
	Notes       string
}

// SelectReferencesInput holds a new reference selection for a draft
type SelectReferencesInput struct {
	References  stock.References
	WarehouseID string
}

// AddLineInput holds a manual line for a direct export draft
type AddLineInput struct {
	ProductID   string
	ProductName string
	SKU         string
	Rate        decimal.Decimal
	Quantity    string
}

// SubmitResult is returned for an accepted submission
type SubmitResult struct {
	DraftID uuid.UUID                 `json:"draft_id"`
	Receipt *stock.SubmitReceipt      `json:"receipt"`
	Request *stock.TransactionRequest `json:"request"`
}

// AvailabilityResult pairs a ledger entry with its computed availability
type AvailabilityResult struct {
	Ledger       stock.LedgerEntry  `json:"ledger"`
	Availability stock.Availability `json:"availability"`
}

// ProductAvailability is the backend's dispatch availability for one product
type ProductAvailability struct {
	ProductID         string               `json:"product_id"`
	WarehouseID       string               `json:"warehouse_id"`
	AvailableQuantity valueobject.Quantity `json:"available_quantity"`
	Source            string               `json:"source"`
	FetchedAt         time.Time            `json:"fetched_at"`
}

// StockSummaryResult is the reconciled stock summary
type StockSummaryResult struct {
	EntryType     stock.EntryType       `json:"entry_type"`
	Rows          []stock.ReconciledRow `json:"rows"`
	Discrepancies int                   `json:"discrepancies"`
}
