package stock

import (
	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// SourceLine is a product line as returned by the backend for a selected reference document.
// ServerAvailable is set when the backend pre-computes the availability figure itself.
type SourceLine struct {
	ProductID       string                `json:"product_id"`
	ProductName     string                `json:"product_name"`
	SKU             string                `json:"sku"`
	Rate            decimal.Decimal       `json:"rate"`
	Ledger          LedgerEntry           `json:"ledger"`
	ServerAvailable *valueobject.Quantity `json:"server_available,omitempty"`
}

// LineItem is one editable line of a transaction draft.
// Quantity stays within [0, Available] for bounded transaction types and
// Amount always equals Quantity x Rate.
type LineItem struct {
	ProductID       string                `json:"product_id"`
	ProductName     string                `json:"product_name"`
	SKU             string                `json:"sku"`
	Rate            decimal.Decimal       `json:"rate"`
	Quantity        valueobject.Quantity  `json:"quantity"`
	Amount          decimal.Decimal       `json:"amount"`
	Available       valueobject.Quantity  `json:"available"`
	ClientAvailable valueobject.Quantity  `json:"client_available"`
	ServerAvailable *valueobject.Quantity `json:"server_available,omitempty"`
	Ledger          LedgerEntry           `json:"ledger"`
	Bounded         bool                  `json:"bounded"`
}

// NewLineItem builds a zero-quantity line from a backend source line.
// The client mirror is always computed; when the backend supplied its own figure
// that figure becomes the bound.
func NewLineItem(src SourceLine, txType TransactionType) LineItem {
	mirror, bounded := ComputeAvailability(src.Ledger).For(txType)

	item := LineItem{
		ProductID:       src.ProductID,
		ProductName:     src.ProductName,
		SKU:             src.SKU,
		Rate:            src.Rate,
		Quantity:        valueobject.ZeroQuantity(),
		Amount:          decimal.Zero,
		Available:       mirror,
		ClientAvailable: mirror,
		Ledger:          src.Ledger,
		Bounded:         bounded,
	}
	if src.ServerAvailable != nil && bounded {
		server := *src.ServerAvailable
		item.ServerAvailable = &server
		item.Available = server
	}
	return item
}

// NewManualLineItem builds an unbounded line entered by hand on a direct export
func NewManualLineItem(productID, productName, sku string, rate decimal.Decimal, quantity valueobject.Quantity) LineItem {
	return LineItem{
		ProductID:   productID,
		ProductName: productName,
		SKU:         sku,
		Rate:        rate,
		Quantity:    quantity,
		Amount:      quantity.Times(rate),
		Ledger:      LedgerEntry{ProductID: productID},
		Bounded:     false,
	}
}

// HasMismatch reports whether the backend figure disagrees with the client mirror
func (l LineItem) HasMismatch() bool {
	return l.ServerAvailable != nil && !l.ServerAvailable.Equals(l.ClientAvailable)
}

// Label returns the most human-friendly identifier for the line
func (l LineItem) Label() string {
	switch {
	case l.SKU != "":
		return l.SKU
	case l.ProductName != "":
		return l.ProductName
	default:
		return l.ProductID
	}
}

func (l LineItem) toRequestLine() RequestLine {
	return RequestLine{
		ProductID:   l.ProductID,
		ProductName: l.ProductName,
		SKU:         l.SKU,
		Quantity:    l.Quantity,
		Rate:        l.Rate,
		Amount:      l.Quantity.Times(l.Rate),
	}
}
