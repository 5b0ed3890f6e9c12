package handler

import (
	stockapp "github.com/erp/stockflow/internal/application/stock"
	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/gin-gonic/gin"
)

// AvailabilityHandler handles availability and stock summary endpoints
type AvailabilityHandler struct {
	BaseHandler
	availabilityService *stockapp.AvailabilityService
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(availabilityService *stockapp.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{
		availabilityService: availabilityService,
	}
}

// ComputeAvailabilityRequest holds ledger entries to compute availability for.
// Missing, null or negative figures count as zero.
type ComputeAvailabilityRequest struct {
	Entries []stock.LedgerEntry `json:"entries" binding:"required,max=1000"`
}

// Compute godoc
// @ID           computeAvailability
// @Summary      Compute availability for ledger entries
// @Description  Mirrors the backend formulas: pickup = max(0, po - inwarded - in transit),
// @Description  dispatch = max(0, inwarded - dispatched).
// @Tags         availability
// @Accept       json
// @Produce      json
// @Param        request body ComputeAvailabilityRequest true "Ledger entries"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Router       /availability/compute [post]
func (h *AvailabilityHandler) Compute(c *gin.Context) {
	var req ComputeAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	h.Success(c, h.availabilityService.Compute(req.Entries))
}

// Product godoc
// @ID           getProductAvailability
// @Summary      Get the backend's available quantity for dispatch
// @Tags         availability
// @Produce      json
// @Param        product_id path string true "Product ID"
// @Param        warehouse_id query string true "Warehouse ID"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /availability/products/{product_id} [get]
func (h *AvailabilityHandler) Product(c *gin.Context) {
	result, err := h.availabilityService.ProductAvailability(
		c.Request.Context(),
		c.Param("product_id"),
		c.Query("warehouse_id"),
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// StockSummary godoc
// @ID           getStockSummary
// @Summary      Get the reconciled stock summary
// @Description  Rows whose remaining stock disagrees with inward minus outward are flagged.
// @Tags         availability
// @Produce      json
// @Param        entry_type query string false "Entry type" Enums(regular, direct) default(regular)
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /stock-summary [get]
func (h *AvailabilityHandler) StockSummary(c *gin.Context) {
	result, err := h.availabilityService.StockSummary(c.Request.Context(), c.Query("entry_type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
