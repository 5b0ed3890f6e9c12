package handler

import (
	"encoding/json"
	"strconv"

	stockapp "github.com/erp/stockflow/internal/application/stock"
	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/erp/stockflow/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DraftHandler handles transaction draft endpoints
type DraftHandler struct {
	BaseHandler
	draftService *stockapp.DraftService
}

// NewDraftHandler creates a new DraftHandler
func NewDraftHandler(draftService *stockapp.DraftService) *DraftHandler {
	return &DraftHandler{
		draftService: draftService,
	}
}

// CreateDraftRequest represents a request to open a transaction draft
// @Description Request body for opening a draft
type CreateDraftRequest struct {
	Type        string `json:"type" binding:"required" example:"dispatch_plan"`
	Date        string `json:"date" binding:"omitempty,datetime=2006-01-02" example:"2026-03-01"`
	CompanyID   string `json:"company_id" binding:"max=64" example:"c-1"`
	WarehouseID string `json:"warehouse_id" binding:"max=64" example:"wh-1"`
	Notes       string `json:"notes" binding:"max=2000" example:"Urgent"`
}

// ReferencesRequest is the upstream document selection of a draft
type ReferencesRequest struct {
	POID             string   `json:"po_id" example:"9c7e"`
	POVoucherNo      string   `json:"po_voucher_no" example:"PO-100"`
	PIIDs            []string `json:"pi_ids" example:"pi-1,pi-2"`
	DispatchPlanID   string   `json:"dispatch_plan_id" example:"dp-1"`
	InwardInvoiceIDs []string `json:"inward_invoice_ids" example:"ii-1"`
}

// SelectReferencesRequest replaces the references of a draft
// @Description Request body for selecting reference documents
type SelectReferencesRequest struct {
	References  ReferencesRequest `json:"references"`
	WarehouseID string            `json:"warehouse_id" binding:"max=64" example:"wh-1"`
}

// SetQuantityRequest carries the raw quantity input for one line. Value may be a JSON
// string or number; anything unparseable is treated as zero.
type SetQuantityRequest struct {
	Value json.RawMessage `json:"value" swaggertype:"string" example:"12"`
}

// AddLineRequest is a manual line for a direct export draft
// @Description Request body for adding a manual line
type AddLineRequest struct {
	ProductID   string          `json:"product_id" binding:"required,max=64" example:"p-1"`
	ProductName string          `json:"product_name" binding:"max=255" example:"Cotton yarn"`
	SKU         string          `json:"sku" binding:"max=64" example:"CY-30"`
	Rate        decimal.Decimal `json:"rate" swaggertype:"string" example:"4.20"`
	Quantity    json.RawMessage `json:"quantity" swaggertype:"string" example:"5"`
}

// Create godoc
// @ID           createDraft
// @Summary      Open a transaction draft
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        request body CreateDraftRequest true "Draft header"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Router       /drafts [post]
func (h *DraftHandler) Create(c *gin.Context) {
	var req CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	draft, err := h.draftService.Create(c.Request.Context(), stockapp.CreateDraftInput{
		Type:        req.Type,
		Date:        req.Date,
		CompanyID:   req.CompanyID,
		WarehouseID: req.WarehouseID,
		Notes:       req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, draft)
}

// Get godoc
// @ID           getDraft
// @Summary      Get a transaction draft
// @Tags         drafts
// @Produce      json
// @Param        id path string true "Draft ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /drafts/{id} [get]
func (h *DraftHandler) Get(c *gin.Context) {
	id, ok := parseDraftID(c)
	if !ok {
		h.BadRequest(c, "Invalid draft ID format")
		return
	}

	draft, err := h.draftService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, draft)
}

// Delete discards a draft
// @Router /drafts/{id} [delete]
func (h *DraftHandler) Delete(c *gin.Context) {
	id, ok := parseDraftID(c)
	if !ok {
		h.BadRequest(c, "Invalid draft ID format")
		return
	}

	if err := h.draftService.Discard(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// SelectReferences godoc
// @ID           selectDraftReferences
// @Summary      Select reference documents
// @Description  Fetches the source lines for the selection and replaces the draft's lines.
// @Description  Every quantity is reset to zero. A backend failure leaves the draft unchanged.
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        id path string true "Draft ID" format(uuid)
// @Param        request body SelectReferencesRequest true "Reference selection"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /drafts/{id}/references [put]
func (h *DraftHandler) SelectReferences(c *gin.Context) {
	id, ok := parseDraftID(c)
	if !ok {
		h.BadRequest(c, "Invalid draft ID format")
		return
	}

	var req SelectReferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	ctx := logger.WithDraftID(c.Request.Context(), id.String())
	draft, err := h.draftService.SelectReferences(ctx, id, stockapp.SelectReferencesInput{
		References: stock.References{
			POID:             req.References.POID,
			POVoucherNo:      req.References.POVoucherNo,
			PIIDs:            req.References.PIIDs,
			DispatchPlanID:   req.References.DispatchPlanID,
			InwardInvoiceIDs: req.References.InwardInvoiceIDs,
		},
		WarehouseID: req.WarehouseID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, draft)
}

// SetQuantity godoc
// @ID           setDraftLineQuantity
// @Summary      Set a line quantity
// @Description  Returns the EditResult. A rejected edit answers 422 and leaves the line unchanged.
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        id path string true "Draft ID" format(uuid)
// @Param        index path int true "Line index"
// @Param        request body SetQuantityRequest true "Raw quantity"
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /drafts/{id}/lines/{index}/quantity [put]
func (h *DraftHandler) SetQuantity(c *gin.Context) {
	id, ok := parseDraftID(c)
	if !ok {
		h.BadRequest(c, "Invalid draft ID format")
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.BadRequest(c, "Invalid line index")
		return
	}

	var req SetQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.draftService.SetQuantity(c.Request.Context(), id, index, rawInput(req.Value))
	h.respondEdit(c, result, err)
}

// AddLine appends a manual line to a direct export draft
// @Router /drafts/{id}/lines [post]
func (h *DraftHandler) AddLine(c *gin.Context) {
	id, ok := parseDraftID(c)
	if !ok {
		h.BadRequest(c, "Invalid draft ID format")
		return
	}

	var req AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.draftService.AddDirectLine(c.Request.Context(), id, stockapp.AddLineInput{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		SKU:         req.SKU,
		Rate:        req.Rate,
		Quantity:    rawInput(req.Quantity),
	})
	h.respondEdit(c, result, err)
}

// RemoveLine drops a line from a direct export draft
// @Router /drafts/{id}/lines/{index} [delete]
func (h *DraftHandler) RemoveLine(c *gin.Context) {
	id, ok := parseDraftID(c)
	if !ok {
		h.BadRequest(c, "Invalid draft ID format")
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.BadRequest(c, "Invalid line index")
		return
	}

	result, err := h.draftService.RemoveLine(c.Request.Context(), id, index)
	h.respondEdit(c, result, err)
}

// Validate godoc
// @ID           validateDraft
// @Summary      Validate a draft without submitting
// @Description  Always 200 for an open draft; the verdict state tells whether it would be accepted.
// @Tags         drafts
// @Produce      json
// @Param        id path string true "Draft ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /drafts/{id}/validate [post]
func (h *DraftHandler) Validate(c *gin.Context) {
	id, ok := parseDraftID(c)
	if !ok {
		h.BadRequest(c, "Invalid draft ID format")
		return
	}

	verdict, err := h.draftService.Validate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, verdict)
}

// Submit godoc
// @ID           submitDraft
// @Summary      Submit a draft
// @Description  Validates the draft and sends it to the backend. Rejections answer 422 with the
// @Description  reason and nothing is sent; backend failures answer 502 and the draft is kept.
// @Tags         drafts
// @Produce      json
// @Param        id path string true "Draft ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /drafts/{id}/submit [post]
func (h *DraftHandler) Submit(c *gin.Context) {
	id, ok := parseDraftID(c)
	if !ok {
		h.BadRequest(c, "Invalid draft ID format")
		return
	}

	ctx := logger.WithDraftID(c.Request.Context(), id.String())
	result, err := h.draftService.Submit(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

func (h *DraftHandler) respondEdit(c *gin.Context, result *stock.EditResult, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !result.Accepted {
		h.EditRejected(c, result)
		return
	}
	h.Success(c, result)
}
