package stock

import (
	"context"
	"strings"
	"time"

	"github.com/erp/stockflow/internal/domain/shared"
	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/erp/stockflow/internal/domain/stock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SourceServer marks figures computed by the backend
const SourceServer = "server"

// AvailabilityService exposes the availability calculator and the backend's dispatch figures
type AvailabilityService struct {
	gateway stock.StockGateway
	metrics MetricsRecorder
	logger  *zap.Logger
	group   singleflight.Group
}

// NewAvailabilityService creates a new AvailabilityService
func NewAvailabilityService(gateway stock.StockGateway, metrics MetricsRecorder, logger *zap.Logger) *AvailabilityService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		gateway: gateway,
		metrics: metrics,
		logger:  logger,
	}
}

// Compute runs the calculator over each ledger entry. It never fails.
func (s *AvailabilityService) Compute(entries []stock.LedgerEntry) []AvailabilityResult {
	results := make([]AvailabilityResult, 0, len(entries))
	for _, entry := range entries {
		results = append(results, AvailabilityResult{
			Ledger:       entry,
			Availability: stock.ComputeAvailability(entry),
		})
	}
	return results
}

// ProductAvailability fetches the backend's available quantity for dispatch.
// Concurrent lookups for the same product and warehouse share one backend call.
func (s *AvailabilityService) ProductAvailability(ctx context.Context, productID, warehouseID string) (*ProductAvailability, error) {
	productID = strings.TrimSpace(productID)
	warehouseID = strings.TrimSpace(warehouseID)
	if productID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "product_id is required")
	}
	if productID == "." || productID == ".." {
		return nil, shared.NewDomainError("INVALID_INPUT", "product_id is not a valid identifier")
	}
	if warehouseID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "warehouse_id is required")
	}

	key := productID + "|" + warehouseID
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.gateway.AvailableQuantity(ctx, productID, warehouseID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.metrics.RecordTransportError(OperationAvailableQuantity)
			s.logger.Warn("Available quantity lookup failed",
				zap.String("product_id", productID),
				zap.String("warehouse_id", warehouseID),
				zap.Error(res.Err),
			)
			return nil, res.Err
		}
		qty, _ := res.Val.(valueobject.Quantity)
		return &ProductAvailability{
			ProductID:         productID,
			WarehouseID:       warehouseID,
			AvailableQuantity: qty,
			Source:            SourceServer,
			FetchedAt:         time.Now(),
		}, nil
	}
}

// StockSummary fetches the backend stock summary and mirrors dispatch availability per row.
// Rows where the backend's remaining stock disagrees with the mirror are flagged and logged,
// never corrected.
func (s *AvailabilityService) StockSummary(ctx context.Context, rawEntryType string) (*StockSummaryResult, error) {
	entryType, err := stock.ParseEntryType(rawEntryType)
	if err != nil {
		return nil, err
	}

	rows, err := s.gateway.StockSummary(ctx, entryType)
	if err != nil {
		s.metrics.RecordTransportError(OperationStockSummary)
		return nil, err
	}

	reconciled := stock.ReconcileAll(rows)
	discrepancies := 0
	for _, row := range reconciled {
		if !row.Discrepancy {
			continue
		}
		discrepancies++
		s.metrics.RecordAvailabilityMismatch(MismatchSourceSummary)
		s.logger.Warn("Stock summary remaining stock differs from mirror",
			zap.String("product_id", row.ProductID),
			zap.String("warehouse_id", row.WarehouseID),
			zap.String("remaining_stock", row.RemainingStock.String()),
			zap.String("mirror", row.AvailableForDispatch.String()),
		)
	}

	return &StockSummaryResult{
		EntryType:     entryType,
		Rows:          reconciled,
		Discrepancies: discrepancies,
	}, nil
}
