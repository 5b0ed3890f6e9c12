package stock

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/stockflow/internal/domain/shared"
	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultAvailabilityConcurrency bounds concurrent per-line availability lookups
const DefaultAvailabilityConcurrency = 4

// DraftServiceConfig tunes the draft service
type DraftServiceConfig struct {
	// AvailabilityConcurrency bounds concurrent per-line availability lookups
	AvailabilityConcurrency int
}

// DraftService runs the line-item editor and submission validator for transaction drafts.
// Operations on one draft are serialized; backend fetches run outside the draft lock and
// only the latest reference selection may apply its result.
type DraftService struct {
	repo      stock.DraftRepository
	gateway   stock.StockGateway
	validator stock.SubmissionValidator
	tracker   *FetchTracker
	locks     *draftLocks
	metrics   MetricsRecorder
	logger    *zap.Logger
	cfg       DraftServiceConfig
}

// NewDraftService creates a new DraftService
func NewDraftService(
	repo stock.DraftRepository,
	gateway stock.StockGateway,
	metrics MetricsRecorder,
	logger *zap.Logger,
	cfg DraftServiceConfig,
) *DraftService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AvailabilityConcurrency <= 0 {
		cfg.AvailabilityConcurrency = DefaultAvailabilityConcurrency
	}
	return &DraftService{
		repo:      repo,
		gateway:   gateway,
		validator: stock.NewSubmissionValidator(),
		tracker:   NewFetchTracker(),
		locks:     newDraftLocks(),
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Create opens a new draft
func (s *DraftService) Create(ctx context.Context, input CreateDraftInput) (*stock.Draft, error) {
	txType, err := stock.ParseTransactionType(input.Type)
	if err != nil {
		return nil, err
	}

	draft, err := stock.NewDraft(stock.Header{
		Type:        txType,
		Date:        strings.TrimSpace(input.Date),
		WarehouseID: input.WarehouseID,
		CompanyID:   strings.TrimSpace(input.CompanyID),
		Notes:       input.Notes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	s.logger.Info("Draft created",
		zap.String("draft_id", draft.ID.String()),
		zap.String("type", txType.String()),
	)
	return draft, nil
}

// Get returns a draft by ID
func (s *DraftService) Get(ctx context.Context, id uuid.UUID) (*stock.Draft, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	return s.repo.FindByID(ctx, id)
}

// Discard deletes a draft and cancels any in-flight fetch for it
func (s *DraftService) Discard(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.lock(id)
	defer unlock()

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	s.tracker.Forget(id)
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}

	s.logger.Info("Draft discarded", zap.String("draft_id", id.String()))
	return nil
}

// SelectReferences fetches the source lines for a new reference selection and replaces the
// draft's line set, resetting every quantity to zero.
// A transport failure leaves the draft unchanged. A result superseded by a newer selection
// is dropped and the current draft is returned as is. Direct exports have no source
// lines, so only their references and warehouse change.
func (s *DraftService) SelectReferences(ctx context.Context, id uuid.UUID, input SelectReferencesInput) (*stock.Draft, error) {
	draft, err := s.loadOpen(ctx, id)
	if err != nil {
		return nil, err
	}
	txType := draft.Header.Type
	refs := input.References.Normalize()
	warehouseID := strings.TrimSpace(input.WarehouseID)

	if err := validateSelection(txType, refs, warehouseID); err != nil {
		return nil, err
	}
	if txType == stock.TransactionTypeDirectExport {
		return s.updateSelection(ctx, id, refs, warehouseID)
	}

	fetchCtx, token := s.tracker.Begin(ctx, id)
	defer s.tracker.Finish(id, token)

	lines, refs, err := s.fetchLines(fetchCtx, draft.ID, txType, refs, warehouseID)
	if err != nil {
		if !s.tracker.IsCurrent(id, token) {
			return s.dropStale(ctx, id, token)
		}
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	if !s.tracker.IsCurrent(id, token) {
		s.recordStale(id, token)
		return s.repo.FindByID(ctx, id)
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.EnsureOpen(); err != nil {
		return nil, err
	}

	current.ApplyReferences(refs, warehouseID, lines)
	if err := s.repo.Save(ctx, current); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	s.logger.Info("Draft references selected",
		zap.String("draft_id", id.String()),
		zap.String("type", txType.String()),
		zap.Int("lines", len(lines)),
		zap.Uint64("fetch_token", token),
	)
	return current, nil
}

// SetQuantity applies a raw quantity entry to one line
func (s *DraftService) SetQuantity(ctx context.Context, id uuid.UUID, index int, raw string) (*stock.EditResult, error) {
	return s.edit(ctx, id, func(draft *stock.Draft) stock.EditResult {
		return draft.Lines.SetQuantity(index, raw)
	})
}

// AddDirectLine appends a manual line to a direct export draft
func (s *DraftService) AddDirectLine(ctx context.Context, id uuid.UUID, input AddLineInput) (*stock.EditResult, error) {
	if strings.TrimSpace(input.ProductID) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "product_id is required")
	}
	if input.Rate.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "rate cannot be negative")
	}
	item := stock.NewManualLineItem(
		strings.TrimSpace(input.ProductID),
		input.ProductName,
		input.SKU,
		input.Rate,
		valueobject.ParseQuantityInput(input.Quantity),
	)
	return s.edit(ctx, id, func(draft *stock.Draft) stock.EditResult {
		return draft.Lines.AppendLine(item)
	})
}

// RemoveLine drops one line from a draft
func (s *DraftService) RemoveLine(ctx context.Context, id uuid.UUID, index int) (*stock.EditResult, error) {
	return s.edit(ctx, id, func(draft *stock.Draft) stock.EditResult {
		return draft.Lines.RemoveLine(index)
	})
}

// Validate runs a submit attempt without sending it
func (s *DraftService) Validate(ctx context.Context, id uuid.UUID) (*stock.Verdict, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	draft, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := draft.EnsureOpen(); err != nil {
		return nil, err
	}

	verdict := s.runValidator(draft)
	if err := s.repo.Save(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return &verdict, nil
}

// Submit validates the draft and hands the request to the backend.
// Rejections return a *stock.ValidationError and nothing is sent. Transport failures
// leave every line intact so the user can retry.
func (s *DraftService) Submit(ctx context.Context, id uuid.UUID) (*SubmitResult, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	draft, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := draft.EnsureOpen(); err != nil {
		return nil, err
	}

	verdict := s.runValidator(draft)
	if err := s.repo.Save(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	if !verdict.UsableFor(draft.Lines) {
		if verr := verdict.Err(); verr != nil {
			return nil, verr
		}
		return nil, shared.ErrInvalidState
	}

	req := *verdict.Request
	var receipt *stock.SubmitReceipt
	if req.Type == stock.TransactionTypePickup {
		receipt, err = s.gateway.SubmitPickup(ctx, req)
	} else {
		receipt, err = s.gateway.SubmitOutward(ctx, req)
	}
	if err != nil {
		s.metrics.RecordTransportError(OperationSubmit)
		s.logger.Warn("Draft submission failed",
			zap.String("draft_id", id.String()),
			zap.String("type", req.Type.String()),
			zap.Error(err),
		)
		return nil, err
	}

	draft.MarkSubmitted(receipt)
	if err := s.repo.Save(ctx, draft); err != nil {
		return nil, fmt.Errorf("save submitted draft: %w", err)
	}
	s.tracker.Forget(id)
	s.metrics.RecordSubmission(req.Type)

	s.logger.Info("Draft submitted",
		zap.String("draft_id", id.String()),
		zap.String("type", req.Type.String()),
		zap.Int("lines", len(req.Lines)),
	)
	return &SubmitResult{DraftID: id, Receipt: receipt, Request: &req}, nil
}

func (s *DraftService) runValidator(draft *stock.Draft) stock.Verdict {
	verdict := s.validator.Validate(draft.Header, draft.Lines)
	draft.RecordVerdict(verdict)
	if verdict.State == stock.SubmitStateRejected {
		s.metrics.RecordValidationRejected(verdict.Reason)
		s.logger.Debug("Draft validation rejected",
			zap.String("draft_id", draft.ID.String()),
			zap.String("reason", string(verdict.Reason)),
			zap.Int("line_index", verdict.LineIndex),
		)
	}
	return verdict
}

func (s *DraftService) edit(ctx context.Context, id uuid.UUID, fn func(*stock.Draft) stock.EditResult) (*stock.EditResult, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	draft, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := draft.EnsureOpen(); err != nil {
		return nil, err
	}

	result := fn(draft)
	if !result.Accepted {
		s.metrics.RecordEditRejected(result.Outcome)
		return &result, nil
	}

	draft.Touch()
	if err := s.repo.Save(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return &result, nil
}

func (s *DraftService) loadOpen(ctx context.Context, id uuid.UUID) (*stock.Draft, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	draft, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := draft.EnsureOpen(); err != nil {
		return nil, err
	}
	return draft, nil
}

// updateSelection records a direct export's references and warehouse. Its manual lines
// and their quantities stay as entered.
func (s *DraftService) updateSelection(ctx context.Context, id uuid.UUID, refs stock.References, warehouseID string) (*stock.Draft, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.EnsureOpen(); err != nil {
		return nil, err
	}

	current.UpdateSelection(refs, warehouseID)
	if err := s.repo.Save(ctx, current); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	s.logger.Info("Draft selection updated",
		zap.String("draft_id", id.String()),
		zap.String("type", current.Header.Type.String()),
		zap.Int("lines", current.Lines.Len()),
	)
	return current, nil
}

func (s *DraftService) dropStale(ctx context.Context, id uuid.UUID, token uint64) (*stock.Draft, error) {
	s.recordStale(id, token)

	unlock := s.locks.lock(id)
	defer unlock()
	return s.repo.FindByID(ctx, id)
}

func (s *DraftService) recordStale(id uuid.UUID, token uint64) {
	s.metrics.RecordStaleFetch()
	s.logger.Debug("Dropped superseded fetch result",
		zap.String("draft_id", id.String()),
		zap.Uint64("fetch_token", token),
		zap.Uint64("latest_token", s.tracker.Latest(id)),
		zap.Error(stock.ErrStaleFetch),
	)
}

// fetchLines loads the source lines for a selection. It may fill in references the backend
// resolves, such as the PO id for a voucher number.
func (s *DraftService) fetchLines(
	ctx context.Context,
	draftID uuid.UUID,
	txType stock.TransactionType,
	refs stock.References,
	warehouseID string,
) ([]stock.LineItem, stock.References, error) {
	switch txType {
	case stock.TransactionTypePickup:
		po, err := s.gateway.PurchaseOrderLines(ctx, refs.POVoucherNo)
		if err != nil {
			s.metrics.RecordTransportError(OperationPurchaseOrderLines)
			return nil, refs, err
		}
		if po.POID == "" {
			s.metrics.RecordTransportError(OperationPurchaseOrderLines)
			return nil, refs, shared.NewDomainError("BACKEND_UNAVAILABLE",
				fmt.Sprintf("purchase order %s came back without an id", refs.POVoucherNo))
		}
		refs.POID = po.POID
		if po.POVoucherNo != "" {
			refs.POVoucherNo = po.POVoucherNo
		}
		return s.buildLines(draftID, txType, po.Lines), refs, nil

	default:
		sources, err := s.gateway.ReferenceLines(ctx, stock.ReferenceQuery{
			Type:        txType,
			References:  refs,
			WarehouseID: warehouseID,
		})
		if err != nil {
			s.metrics.RecordTransportError(OperationReferenceLines)
			return nil, refs, err
		}
		if err := s.attachServerAvailability(ctx, sources, warehouseID); err != nil {
			return nil, refs, err
		}
		return s.buildLines(draftID, txType, sources), refs, nil
	}
}

// attachServerAvailability looks up the backend's dispatch figure for every source line
// concurrently, bounded by the configured limit.
func (s *DraftService) attachServerAvailability(ctx context.Context, sources []stock.SourceLine, warehouseID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.AvailabilityConcurrency)

	for i := range sources {
		if sources[i].ServerAvailable != nil {
			continue
		}
		g.Go(func() error {
			qty, err := s.gateway.AvailableQuantity(gctx, sources[i].ProductID, warehouseID)
			if err != nil {
				return fmt.Errorf("available quantity for %s: %w", sources[i].ProductID, err)
			}
			sources[i].ServerAvailable = &qty
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.metrics.RecordTransportError(OperationAvailableQuantity)
		return err
	}
	return nil
}

func (s *DraftService) buildLines(draftID uuid.UUID, txType stock.TransactionType, sources []stock.SourceLine) []stock.LineItem {
	lines := make([]stock.LineItem, 0, len(sources))
	for _, src := range sources {
		item := stock.NewLineItem(src, txType)
		if item.HasMismatch() {
			s.metrics.RecordAvailabilityMismatch(MismatchSourceLine)
			s.logger.Warn("Backend availability differs from client mirror",
				zap.String("draft_id", draftID.String()),
				zap.String("product_id", item.ProductID),
				zap.String("server_available", item.ServerAvailable.String()),
				zap.String("client_available", item.ClientAvailable.String()),
			)
		}
		lines = append(lines, item)
	}
	return lines
}

func validateSelection(txType stock.TransactionType, refs stock.References, warehouseID string) error {
	switch txType {
	case stock.TransactionTypePickup:
		if refs.POVoucherNo == "" {
			return shared.NewDomainError("INVALID_INPUT", "po_voucher_no is required to load purchase order lines")
		}
	case stock.TransactionTypeDispatchPlan, stock.TransactionTypeExportInvoice:
		if !refs.SelectedFor(txType) {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("no reference document selected for %s", txType))
		}
		if warehouseID == "" {
			return shared.NewDomainError("INVALID_INPUT", "warehouse_id is required")
		}
	}
	return nil
}

