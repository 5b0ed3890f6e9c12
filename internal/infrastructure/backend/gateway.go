package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/erp/stockflow/internal/domain/shared"
	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/shopspring/decimal"
)

// Gateway implements stock.StockGateway over the backend REST API
type Gateway struct {
	client *Client
	now    func() time.Time
}

var _ stock.StockGateway = (*Gateway)(nil)

// NewGateway creates a gateway on top of client
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client, now: time.Now}
}

// sourceLineJSON carries the product fields of a backend line. Ledger figures are decoded
// from the same object into stock.LedgerEntry.
type sourceLineJSON struct {
	ProductID          string              `json:"product_id"`
	ProductName        string              `json:"product_name"`
	SKU                string              `json:"sku"`
	Rate               decimal.NullDecimal `json:"rate"`
	AvailableForPickup decimal.NullDecimal `json:"available_for_pickup"`
}

type purchaseOrderJSON struct {
	POID        flexString        `json:"po_id"`
	POVoucherNo string            `json:"po_voucher_no"`
	PODate      string            `json:"po_date"`
	Supplier    string            `json:"supplier"`
	Lines       []json.RawMessage `json:"line_items"`
}

// PurchaseOrderLines fetches a PO by voucher number with its per-line ledger stats
func (g *Gateway) PurchaseOrderLines(ctx context.Context, voucherNo string) (*stock.PurchaseOrderLines, error) {
	query := url.Values{"voucher_no": {voucherNo}}
	resp, err := g.client.Get(ctx, OpPurchaseOrderLines, "/pos/lines-with-stats", query)
	if err != nil {
		return nil, err
	}

	var raw purchaseOrderJSON
	if err := decodeData(resp, &raw); err != nil {
		return nil, decodeError(OpPurchaseOrderLines, resp, err)
	}

	lines, err := decodeSourceLines(raw.Lines, "", true)
	if err != nil {
		return nil, decodeError(OpPurchaseOrderLines, resp, err)
	}
	voucher := raw.POVoucherNo
	if voucher == "" {
		voucher = voucherNo
	}
	return &stock.PurchaseOrderLines{
		POID:        string(raw.POID),
		POVoucherNo: voucher,
		PODate:      raw.PODate,
		Supplier:    raw.Supplier,
		Lines:       lines,
	}, nil
}

// ReferenceLines fetches the source lines for PI, dispatch plan or inward invoice references
func (g *Gateway) ReferenceLines(ctx context.Context, q stock.ReferenceQuery) ([]stock.SourceLine, error) {
	query := url.Values{"type": {q.Type.String()}}
	if len(q.References.PIIDs) > 0 {
		query.Set("pi_ids", strings.Join(q.References.PIIDs, ","))
	}
	if q.References.DispatchPlanID != "" {
		query.Set("dispatch_plan_id", q.References.DispatchPlanID)
	}
	if len(q.References.InwardInvoiceIDs) > 0 {
		query.Set("inward_invoice_ids", strings.Join(q.References.InwardInvoiceIDs, ","))
	}
	if q.WarehouseID != "" {
		query.Set("warehouse_id", q.WarehouseID)
	}

	resp, err := g.client.Get(ctx, OpReferenceLines, "/outward-stock/reference-lines", query)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := decodeList(resp, "line_items", &raw); err != nil {
		return nil, decodeError(OpReferenceLines, resp, err)
	}
	lines, err := decodeSourceLines(raw, q.WarehouseID, false)
	if err != nil {
		return nil, decodeError(OpReferenceLines, resp, err)
	}
	return lines, nil
}

// AvailableQuantity fetches the backend's available quantity for dispatch of one product
func (g *Gateway) AvailableQuantity(ctx context.Context, productID, warehouseID string) (valueobject.Quantity, error) {
	segment, err := pathSegment(productID)
	if err != nil {
		return valueobject.ZeroQuantity(), err
	}
	path := "/outward-stock/available-quantity/" + segment
	query := url.Values{}
	if warehouseID != "" {
		query.Set("warehouse_id", warehouseID)
	}

	resp, err := g.client.Get(ctx, OpAvailableQuantity, path, query)
	if err != nil {
		return valueobject.ZeroQuantity(), err
	}

	var raw struct {
		AvailableQuantity decimal.NullDecimal `json:"available_quantity"`
	}
	if err := decodeData(resp, &raw); err != nil {
		return valueobject.ZeroQuantity(), decodeError(OpAvailableQuantity, resp, err)
	}
	if !raw.AvailableQuantity.Valid {
		return valueobject.ZeroQuantity(), decodeError(OpAvailableQuantity, resp,
			fmt.Errorf("response has no available_quantity"))
	}
	return valueobject.FloorQuantity(raw.AvailableQuantity.Decimal), nil
}

type pickupLineJSON struct {
	ProductID   string               `json:"product_id"`
	ProductName string               `json:"product_name"`
	SKU         string               `json:"sku"`
	Quantity    valueobject.Quantity `json:"quantity"`
	Rate        decimal.Decimal      `json:"rate"`
}

type pickupRequestJSON struct {
	POID       string           `json:"po_id"`
	PickupDate string           `json:"pickup_date"`
	Notes      string           `json:"notes,omitempty"`
	Lines      []pickupLineJSON `json:"line_items"`
}

// SubmitPickup posts a pickup against the PO the draft was sourced from
func (g *Gateway) SubmitPickup(ctx context.Context, req stock.TransactionRequest) (*stock.SubmitReceipt, error) {
	body := pickupRequestJSON{
		POID:       req.References.POID,
		PickupDate: req.Date,
		Notes:      req.Notes,
		Lines:      make([]pickupLineJSON, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		body.Lines = append(body.Lines, pickupLineJSON{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			SKU:         l.SKU,
			Quantity:    l.Quantity,
			Rate:        l.Rate,
		})
	}

	resp, err := g.client.Post(ctx, OpSubmitPickup, "/pickups", body)
	if err != nil {
		return nil, err
	}
	return g.receipt(resp), nil
}

// SubmitOutward posts an outward stock transaction
func (g *Gateway) SubmitOutward(ctx context.Context, req stock.TransactionRequest) (*stock.SubmitReceipt, error) {
	resp, err := g.client.Post(ctx, OpSubmitOutward, "/outward-stock", req)
	if err != nil {
		return nil, err
	}
	return g.receipt(resp), nil
}

// StockSummary fetches per product and warehouse rollups
func (g *Gateway) StockSummary(ctx context.Context, entryType stock.EntryType) ([]stock.SummaryRow, error) {
	query := url.Values{"entry_type": {string(entryType)}}
	resp, err := g.client.Get(ctx, OpStockSummary, "/stock-summary", query)
	if err != nil {
		return nil, err
	}

	var rows []stock.SummaryRow
	if err := decodeList(resp, "rows", &rows); err != nil {
		return nil, decodeError(OpStockSummary, resp, err)
	}
	return rows, nil
}

// receipt builds a receipt from a creation response. An unparseable body still counts
// as accepted: the backend answered 2xx.
func (g *Gateway) receipt(resp *Response) *stock.SubmitReceipt {
	var raw struct {
		ID        flexString `json:"id"`
		VoucherNo string     `json:"voucher_no"`
		PickupNo  string     `json:"pickup_no"`
		Message   string     `json:"message"`
	}
	_ = decodeData(resp, &raw)

	voucher := raw.VoucherNo
	if voucher == "" {
		voucher = raw.PickupNo
	}
	return &stock.SubmitReceipt{
		ID:          string(raw.ID),
		VoucherNo:   voucher,
		Message:     raw.Message,
		SubmittedAt: g.now().UTC(),
	}
}

func decodeSourceLines(raw []json.RawMessage, warehouseID string, pickup bool) ([]stock.SourceLine, error) {
	lines := make([]stock.SourceLine, 0, len(raw))
	for i, data := range raw {
		var product sourceLineJSON
		if err := json.Unmarshal(data, &product); err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		var ledger stock.LedgerEntry
		if err := json.Unmarshal(data, &ledger); err != nil {
			return nil, fmt.Errorf("line %d ledger: %w", i, err)
		}
		if ledger.WarehouseID == "" {
			ledger.WarehouseID = warehouseID
		}

		line := stock.SourceLine{
			ProductID:   product.ProductID,
			ProductName: product.ProductName,
			SKU:         product.SKU,
			Rate:        nullDecimal(product.Rate),
			Ledger:      ledger,
		}
		if pickup && product.AvailableForPickup.Valid {
			q := valueobject.FloorQuantity(product.AvailableForPickup.Decimal)
			line.ServerAvailable = &q
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// decodeData decodes the response body, unwrapping a {"success", "data"} envelope when present
func decodeData(resp *Response, v any) error {
	return json.Unmarshal(unwrapEnvelope(resp.Body), v)
}

// decodeList decodes a JSON array that may also arrive as an object keyed by field
func decodeList(resp *Response, field string, v any) error {
	data := unwrapEnvelope(resp.Body)
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "{") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		inner, ok := obj[field]
		if !ok {
			return fmt.Errorf("response has no %q list", field)
		}
		data = inner
	}
	return json.Unmarshal(data, v)
}

func unwrapEnvelope(body []byte) []byte {
	var env struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Success != nil && len(env.Data) > 0 {
		return env.Data
	}
	return body
}

func decodeError(op string, resp *Response, err error) *TransportError {
	return &TransportError{
		Operation:  op,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("decoding response: %w", err),
	}
}

func nullDecimal(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// pathSegment escapes id as a single path segment. Dot segments are rejected since
// joining would clean them away and address a different route.
func pathSegment(id string) (string, error) {
	if id == "" || id == "." || id == ".." {
		return "", fmt.Errorf("path segment %q: %w", id, shared.ErrInvalidInput)
	}
	return url.PathEscape(id), nil
}
