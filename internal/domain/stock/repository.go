package stock

import (
	"context"
	"time"

	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ReferenceQuery selects the source lines for an outward draft
type ReferenceQuery struct {
	Type        TransactionType
	References  References
	WarehouseID string
}

// PurchaseOrderLines is a purchase order with its per-line ledger stats
type PurchaseOrderLines struct {
	POID        string       `json:"po_id"`
	POVoucherNo string       `json:"po_voucher_no"`
	PODate      string       `json:"po_date,omitempty"`
	Supplier    string       `json:"supplier,omitempty"`
	Lines       []SourceLine `json:"line_items"`
}

// SubmitReceipt is what the backend returned for an accepted transaction
type SubmitReceipt struct {
	ID          string    `json:"id,omitempty"`
	VoucherNo   string    `json:"voucher_no,omitempty"`
	Message     string    `json:"message,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// StockGateway is the transport to the backend that owns the ledger.
// Implementations return a transport error on network or backend failure.
type StockGateway interface {
	// PurchaseOrderLines fetches a PO with per-line stats, including the backend's available_for_pickup
	PurchaseOrderLines(ctx context.Context, voucherNo string) (*PurchaseOrderLines, error)

	// ReferenceLines fetches the source lines for PI, dispatch plan or inward invoice references
	ReferenceLines(ctx context.Context, query ReferenceQuery) ([]SourceLine, error)

	// AvailableQuantity fetches the backend's available quantity for dispatch
	AvailableQuantity(ctx context.Context, productID, warehouseID string) (valueobject.Quantity, error)

	// SubmitPickup posts a pickup transaction
	SubmitPickup(ctx context.Context, req TransactionRequest) (*SubmitReceipt, error)

	// SubmitOutward posts an outward stock transaction
	SubmitOutward(ctx context.Context, req TransactionRequest) (*SubmitReceipt, error)

	// StockSummary fetches per product and warehouse rollups
	StockSummary(ctx context.Context, entryType EntryType) ([]SummaryRow, error)
}

// DraftRepository persists transaction drafts
type DraftRepository interface {
	// Save creates or updates a draft
	Save(ctx context.Context, draft *Draft) error

	// FindByID finds a draft by ID, returning shared.ErrDraftNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Draft, error)

	// Delete removes a draft
	Delete(ctx context.Context, id uuid.UUID) error
}
