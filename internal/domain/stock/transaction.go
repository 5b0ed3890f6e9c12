package stock

import (
	"strings"

	"github.com/erp/stockflow/internal/domain/shared"
	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// TransactionType identifies the kind of stock movement a draft will create
type TransactionType string

const (
	TransactionTypePickup        TransactionType = "pickup"
	TransactionTypeDispatchPlan  TransactionType = "dispatch_plan"
	TransactionTypeExportInvoice TransactionType = "export_invoice"
	TransactionTypeDirectExport  TransactionType = "direct_export"
)

// AllTransactionTypes returns all supported transaction types
func AllTransactionTypes() []TransactionType {
	return []TransactionType{
		TransactionTypePickup,
		TransactionTypeDispatchPlan,
		TransactionTypeExportInvoice,
		TransactionTypeDirectExport,
	}
}

// ParseTransactionType parses a transaction type name
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.ErrInvalidTxType
	}
	return t, nil
}

// IsValid returns true if the transaction type is known
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypePickup, TransactionTypeDispatchPlan, TransactionTypeExportInvoice, TransactionTypeDirectExport:
		return true
	}
	return false
}

// String returns the string representation
func (t TransactionType) String() string {
	return string(t)
}

// Bounded reports whether line quantities are capped by availability.
// Direct exports have no upstream reference and are exempt.
func (t TransactionType) Bounded() bool {
	return t.IsValid() && t != TransactionTypeDirectExport
}

// RequiresReference reports whether an upstream document must be selected before submit
func (t TransactionType) RequiresReference() bool {
	return t.Bounded()
}

// RequiresWarehouse reports whether the transaction moves stock out of a warehouse
func (t TransactionType) RequiresWarehouse() bool {
	return t.IsValid() && t != TransactionTypePickup
}

// IsOutward reports whether the transaction is posted to the outward stock endpoint
func (t TransactionType) IsOutward() bool {
	return t.RequiresWarehouse()
}

// References holds the upstream documents a draft is sourced from
type References struct {
	POID             string   `json:"po_id,omitempty"`
	POVoucherNo      string   `json:"po_voucher_no,omitempty"`
	PIIDs            []string `json:"pi_ids,omitempty"`
	DispatchPlanID   string   `json:"dispatch_plan_id,omitempty"`
	InwardInvoiceIDs []string `json:"inward_invoice_ids,omitempty"`
}

// Normalize trims identifiers and drops blanks and duplicates
func (r References) Normalize() References {
	return References{
		POID:             strings.TrimSpace(r.POID),
		POVoucherNo:      strings.TrimSpace(r.POVoucherNo),
		PIIDs:            normalizeIDs(r.PIIDs),
		DispatchPlanID:   strings.TrimSpace(r.DispatchPlanID),
		InwardInvoiceIDs: normalizeIDs(r.InwardInvoiceIDs),
	}
}

// SelectedFor reports whether the references satisfy the given transaction type
func (r References) SelectedFor(t TransactionType) bool {
	switch t {
	case TransactionTypePickup:
		return r.POID != "" || r.POVoucherNo != ""
	case TransactionTypeDispatchPlan:
		return len(r.PIIDs) > 0 || len(r.InwardInvoiceIDs) > 0
	case TransactionTypeExportInvoice:
		return r.DispatchPlanID != "" || len(r.InwardInvoiceIDs) > 0
	case TransactionTypeDirectExport:
		return true
	}
	return false
}

// IsEmpty returns true if no reference is selected at all
func (r References) IsEmpty() bool {
	return r.POID == "" && r.POVoucherNo == "" && len(r.PIIDs) == 0 &&
		r.DispatchPlanID == "" && len(r.InwardInvoiceIDs) == 0
}

func normalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Header is the transaction header shared by drafts and outbound requests
type Header struct {
	Type        TransactionType `json:"type"`
	Date        string          `json:"date"`
	References  References      `json:"references"`
	WarehouseID string          `json:"warehouse_id,omitempty"`
	CompanyID   string          `json:"company_id,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// RequestLine is one body line of an outbound transaction request
type RequestLine struct {
	ProductID   string               `json:"product_id"`
	ProductName string               `json:"product_name"`
	SKU         string               `json:"sku"`
	Quantity    valueobject.Quantity `json:"quantity"`
	Rate        decimal.Decimal      `json:"rate"`
	Amount      decimal.Decimal      `json:"amount"`
}

// TransactionRequest is the validated payload handed to the transport.
// Body lines all carry a positive quantity.
type TransactionRequest struct {
	Header
	Lines []RequestLine `json:"line_items"`
}
