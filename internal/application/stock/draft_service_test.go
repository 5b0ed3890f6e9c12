package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/stockflow/internal/domain/shared"
	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func ledgerOf(productID string, po, inwarded, transit, dispatched int64) stock.LedgerEntry {
	return stock.NewLedgerEntry(productID, "wh-1", stock.LedgerFigures{
		POQuantity:        decimal.NewFromInt(po),
		AlreadyInwarded:   decimal.NewFromInt(inwarded),
		InTransit:         decimal.NewFromInt(transit),
		AlreadyDispatched: decimal.NewFromInt(dispatched),
	})
}

func sourceLine(productID string, entry stock.LedgerEntry, rate string) stock.SourceLine {
	return stock.SourceLine{
		ProductID:   productID,
		ProductName: "Product " + productID,
		SKU:         "SKU-" + productID,
		Rate:        decimal.RequireFromString(rate),
		Ledger:      entry,
	}
}

func qty(v int64) valueobject.Quantity {
	return valueobject.MustNewQuantityFromInt(v)
}

type draftServiceFixture struct {
	service *DraftService
	gateway *MockStockGateway
	repo    *memoryDraftRepo
	metrics *recordingMetrics
}

func newDraftServiceFixture() *draftServiceFixture {
	gateway := new(MockStockGateway)
	repo := newMemoryDraftRepo()
	metrics := newRecordingMetrics()
	return &draftServiceFixture{
		service: NewDraftService(repo, gateway, metrics, nil, DraftServiceConfig{AvailabilityConcurrency: 2}),
		gateway: gateway,
		repo:    repo,
		metrics: metrics,
	}
}

func (f *draftServiceFixture) pickupDraft(t *testing.T) *stock.Draft {
	t.Helper()
	ctx := context.Background()

	draft, err := f.service.Create(ctx, CreateDraftInput{Type: "pickup", Date: "2026-03-01"})
	require.NoError(t, err)

	server := qty(30)
	line := sourceLine("p1", ledgerOf("p1", 100, 60, 10, 0), "4.20")
	line.ServerAvailable = &server
	f.gateway.On("PurchaseOrderLines", mock.Anything, "PO-100").Return(&stock.PurchaseOrderLines{
		POID:        "po-uuid-100",
		POVoucherNo: "PO-100",
		Supplier:    "Acme",
		Lines:       []stock.SourceLine{line},
	}, nil).Once()

	draft, err = f.service.SelectReferences(ctx, draft.ID, SelectReferencesInput{
		References: stock.References{POVoucherNo: "PO-100"},
	})
	require.NoError(t, err)
	return draft
}

func TestDraftService_Create(t *testing.T) {
	f := newDraftServiceFixture()

	t.Run("creates draft", func(t *testing.T) {
		draft, err := f.service.Create(context.Background(), CreateDraftInput{Type: "direct_export", WarehouseID: "wh-1"})
		require.NoError(t, err)
		assert.Equal(t, stock.TransactionTypeDirectExport, draft.Header.Type)

		stored, err := f.service.Get(context.Background(), draft.ID)
		require.NoError(t, err)
		assert.Equal(t, draft.ID, stored.ID)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := f.service.Create(context.Background(), CreateDraftInput{Type: "transfer"})
		assert.ErrorIs(t, err, shared.ErrInvalidTxType)
	})

	t.Run("get unknown draft", func(t *testing.T) {
		_, err := f.service.Get(context.Background(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrDraftNotFound)
	})
}

func TestDraftService_PickupEndToEnd(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()
	draft := f.pickupDraft(t)

	assert.Equal(t, "po-uuid-100", draft.Header.References.POID)
	require.Equal(t, 1, draft.Lines.Len())
	assert.Equal(t, "30", draft.Lines.Items()[0].Available.String())

	rejected, err := f.service.SetQuantity(ctx, draft.ID, 0, "35")
	require.NoError(t, err)
	assert.Equal(t, stock.EditOutcomeExceedsAvailable, rejected.Outcome)
	assert.True(t, rejected.Quantity.IsZero())
	assert.Equal(t, 1, f.metrics.editRejected[stock.EditOutcomeExceedsAvailable])

	accepted, err := f.service.SetQuantity(ctx, draft.ID, 0, "30")
	require.NoError(t, err)
	require.True(t, accepted.Accepted)
	assert.True(t, accepted.Amount.Equal(decimal.RequireFromString("126")))

	f.gateway.On("SubmitPickup", mock.Anything, mock.MatchedBy(func(req stock.TransactionRequest) bool {
		return req.Type == stock.TransactionTypePickup &&
			req.References.POID == "po-uuid-100" &&
			len(req.Lines) == 1 &&
			req.Lines[0].Quantity.Equals(qty(30))
	})).Return(&stock.SubmitReceipt{ID: "pickup-1", SubmittedAt: time.Now()}, nil).Once()

	result, err := f.service.Submit(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "pickup-1", result.Receipt.ID)
	assert.Equal(t, 1, f.metrics.submissions[stock.TransactionTypePickup])

	stored, err := f.service.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, stock.DraftStatusSubmitted, stored.Status)

	_, err = f.service.SetQuantity(ctx, draft.ID, 0, "1")
	assert.ErrorIs(t, err, shared.ErrDraftClosed)

	f.gateway.AssertExpectations(t)
}

func TestDraftService_SubmitRejected(t *testing.T) {
	f := newDraftServiceFixture()
	draft := f.pickupDraft(t)

	_, err := f.service.Submit(context.Background(), draft.ID)

	var verr *stock.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, stock.RejectReasonNoPositiveQuantity, verr.Reason)
	assert.Equal(t, 1, f.metrics.validationRejected[stock.RejectReasonNoPositiveQuantity])
	f.gateway.AssertNotCalled(t, "SubmitPickup", mock.Anything, mock.Anything)

	stored, err := f.service.Get(context.Background(), draft.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastVerdict)
	assert.Equal(t, stock.SubmitStateRejected, stored.LastVerdict.State)
	assert.True(t, stored.IsOpen())
}

func TestDraftService_SubmitTransportFailurePreservesDraft(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()
	draft := f.pickupDraft(t)

	_, err := f.service.SetQuantity(ctx, draft.ID, 0, "25")
	require.NoError(t, err)

	transportErr := errors.New("backend unavailable")
	f.gateway.On("SubmitPickup", mock.Anything, mock.Anything).Return(nil, transportErr).Once()

	_, err = f.service.Submit(ctx, draft.ID)
	assert.ErrorIs(t, err, transportErr)
	assert.Equal(t, 1, f.metrics.transportErrors[OperationSubmit])

	stored, err := f.service.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOpen())
	assert.Equal(t, "25", stored.Lines.Items()[0].Quantity.String())

	f.gateway.On("SubmitPickup", mock.Anything, mock.Anything).Return(&stock.SubmitReceipt{ID: "pickup-2"}, nil).Once()
	result, err := f.service.Submit(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "pickup-2", result.Receipt.ID)
}

func TestDraftService_SelectReferencesTransportFailure(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()
	draft := f.pickupDraft(t)
	_, err := f.service.SetQuantity(ctx, draft.ID, 0, "10")
	require.NoError(t, err)

	f.gateway.On("PurchaseOrderLines", mock.Anything, "PO-200").Return(nil, errors.New("timeout")).Once()

	_, err = f.service.SelectReferences(ctx, draft.ID, SelectReferencesInput{
		References: stock.References{POVoucherNo: "PO-200"},
	})
	require.Error(t, err)
	assert.Equal(t, 1, f.metrics.transportErrors[OperationPurchaseOrderLines])

	stored, err := f.service.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "PO-100", stored.Header.References.POVoucherNo)
	assert.Equal(t, "10", stored.Lines.Items()[0].Quantity.String())
}

func TestDraftService_SelectReferencesValidation(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()

	pickup, err := f.service.Create(ctx, CreateDraftInput{Type: "pickup"})
	require.NoError(t, err)
	_, err = f.service.SelectReferences(ctx, pickup.ID, SelectReferencesInput{References: stock.References{POID: "po-1"}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	dispatch, err := f.service.Create(ctx, CreateDraftInput{Type: "dispatch_plan"})
	require.NoError(t, err)
	_, err = f.service.SelectReferences(ctx, dispatch.ID, SelectReferencesInput{References: stock.References{PIIDs: []string{"pi-1"}}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.service.SelectReferences(ctx, dispatch.ID, SelectReferencesInput{WarehouseID: "wh-1"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	f.gateway.AssertNotCalled(t, "ReferenceLines", mock.Anything, mock.Anything)
}

func TestDraftService_DispatchUsesServerAvailability(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()

	draft, err := f.service.Create(ctx, CreateDraftInput{Type: "dispatch_plan"})
	require.NoError(t, err)

	f.gateway.On("ReferenceLines", mock.Anything, mock.MatchedBy(func(q stock.ReferenceQuery) bool {
		return q.Type == stock.TransactionTypeDispatchPlan && q.WarehouseID == "wh-1" && len(q.References.PIIDs) == 1
	})).Return([]stock.SourceLine{
		sourceLine("p1", ledgerOf("p1", 0, 80, 0, 30), "10"),
		sourceLine("p2", ledgerOf("p2", 0, 40, 0, 0), "5"),
	}, nil).Once()
	f.gateway.On("AvailableQuantity", mock.Anything, "p1", "wh-1").Return(qty(50), nil).Once()
	f.gateway.On("AvailableQuantity", mock.Anything, "p2", "wh-1").Return(qty(35), nil).Once()

	draft, err = f.service.SelectReferences(ctx, draft.ID, SelectReferencesInput{
		References:  stock.References{PIIDs: []string{"pi-1"}},
		WarehouseID: "wh-1",
	})
	require.NoError(t, err)

	items := draft.Lines.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "50", items[0].Available.String())
	assert.False(t, items[0].HasMismatch())
	assert.Equal(t, "35", items[1].Available.String())
	assert.Equal(t, "40", items[1].ClientAvailable.String())
	assert.True(t, items[1].HasMismatch())
	assert.Equal(t, 1, f.metrics.mismatches[MismatchSourceLine])

	result, err := f.service.SetQuantity(ctx, draft.ID, 1, "36")
	require.NoError(t, err)
	assert.Equal(t, stock.EditOutcomeExceedsAvailable, result.Outcome)

	f.gateway.AssertExpectations(t)
}

func TestDraftService_AvailabilityLookupFailureLeavesDraftUnchanged(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()

	draft, err := f.service.Create(ctx, CreateDraftInput{Type: "export_invoice"})
	require.NoError(t, err)

	f.gateway.On("ReferenceLines", mock.Anything, mock.Anything).Return([]stock.SourceLine{
		sourceLine("p1", ledgerOf("p1", 0, 80, 0, 30), "10"),
	}, nil).Once()
	f.gateway.On("AvailableQuantity", mock.Anything, "p1", "wh-1").Return(valueobject.ZeroQuantity(), errors.New("502")).Once()

	_, err = f.service.SelectReferences(ctx, draft.ID, SelectReferencesInput{
		References:  stock.References{DispatchPlanID: "dp-1"},
		WarehouseID: "wh-1",
	})
	require.Error(t, err)
	assert.Equal(t, 1, f.metrics.transportErrors[OperationAvailableQuantity])

	stored, err := f.service.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Lines.Len())
	assert.Empty(t, stored.Header.References.DispatchPlanID)
}

func TestDraftService_StaleFetchIsDropped(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()

	draft, err := f.service.Create(ctx, CreateDraftInput{Type: "dispatch_plan"})
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})

	f.gateway.On("ReferenceLines", mock.Anything, mock.MatchedBy(func(q stock.ReferenceQuery) bool {
		return len(q.References.PIIDs) == 1 && q.References.PIIDs[0] == "pi-slow"
	})).Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return([]stock.SourceLine{sourceLine("slow", ledgerOf("slow", 0, 10, 0, 0), "1")}, nil).Once()

	f.gateway.On("ReferenceLines", mock.Anything, mock.MatchedBy(func(q stock.ReferenceQuery) bool {
		return len(q.References.PIIDs) == 1 && q.References.PIIDs[0] == "pi-fast"
	})).Return([]stock.SourceLine{sourceLine("fast", ledgerOf("fast", 0, 10, 0, 0), "1")}, nil).Once()

	f.gateway.On("AvailableQuantity", mock.Anything, mock.Anything, "wh-1").Return(qty(10), nil)

	var (
		wg        sync.WaitGroup
		slowDraft *stock.Draft
		slowErr   error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowDraft, slowErr = f.service.SelectReferences(ctx, draft.ID, SelectReferencesInput{
			References:  stock.References{PIIDs: []string{"pi-slow"}},
			WarehouseID: "wh-1",
		})
	}()

	<-started
	fastDraft, err := f.service.SelectReferences(ctx, draft.ID, SelectReferencesInput{
		References:  stock.References{PIIDs: []string{"pi-fast"}},
		WarehouseID: "wh-1",
	})
	require.NoError(t, err)
	require.Equal(t, "fast", fastDraft.Lines.Items()[0].ProductID)

	close(release)
	wg.Wait()

	require.NoError(t, slowErr, "stale results are never surfaced")
	require.NotNil(t, slowDraft)
	assert.Equal(t, "fast", slowDraft.Lines.Items()[0].ProductID)

	stored, err := f.service.Get(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Lines.Len())
	assert.Equal(t, "fast", stored.Lines.Items()[0].ProductID)
	assert.Equal(t, []string{"pi-fast"}, stored.Header.References.PIIDs)
	assert.Equal(t, 1, f.metrics.stale())
}

func TestDraftService_DirectExport(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()

	draft, err := f.service.Create(ctx, CreateDraftInput{Type: "direct_export", WarehouseID: "wh-9"})
	require.NoError(t, err)

	added, err := f.service.AddDirectLine(ctx, draft.ID, AddLineInput{
		ProductID: "p1",
		SKU:       "SKU-1",
		Rate:      decimal.NewFromInt(3),
		Quantity:  "500",
	})
	require.NoError(t, err)
	require.True(t, added.Accepted)
	assert.True(t, added.Amount.Equal(decimal.NewFromInt(1500)))

	_, err = f.service.AddDirectLine(ctx, draft.ID, AddLineInput{ProductID: "p2", Rate: decimal.NewFromInt(1)})
	require.NoError(t, err)

	removed, err := f.service.RemoveLine(ctx, draft.ID, 1)
	require.NoError(t, err)
	assert.True(t, removed.Accepted)

	missing, err := f.service.RemoveLine(ctx, draft.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, stock.EditOutcomeLineNotFound, missing.Outcome)

	verdict, err := f.service.Validate(ctx, draft.ID)
	require.NoError(t, err)
	require.True(t, verdict.IsValid())

	f.gateway.On("SubmitOutward", mock.Anything, mock.MatchedBy(func(req stock.TransactionRequest) bool {
		return req.Type == stock.TransactionTypeDirectExport && req.WarehouseID == "wh-9" && len(req.Lines) == 1
	})).Return(&stock.SubmitReceipt{ID: "out-1"}, nil).Once()

	result, err := f.service.Submit(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "out-1", result.Receipt.ID)
	assert.Equal(t, 1, f.metrics.submissions[stock.TransactionTypeDirectExport])
}

func TestDraftService_DirectExportWarehouseKeepsManualLines(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()

	draft, err := f.service.Create(ctx, CreateDraftInput{Type: "direct_export"})
	require.NoError(t, err)

	added, err := f.service.AddDirectLine(ctx, draft.ID, AddLineInput{
		ProductID: "p1",
		Rate:      decimal.NewFromInt(2),
		Quantity:  "500",
	})
	require.NoError(t, err)
	require.True(t, added.Accepted)

	verdict, err := f.service.Validate(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, stock.RejectReasonNoWarehouse, verdict.Reason)

	updated, err := f.service.SelectReferences(ctx, draft.ID, SelectReferencesInput{WarehouseID: "wh-9"})
	require.NoError(t, err)
	assert.Equal(t, "wh-9", updated.Header.WarehouseID)
	require.Equal(t, 1, updated.Lines.Len())
	line := updated.Lines.Items()[0]
	assert.True(t, line.Quantity.Equals(qty(500)))
	assert.True(t, line.Amount.Equal(decimal.NewFromInt(1000)))

	verdict, err = f.service.Validate(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, verdict.IsValid())

	f.gateway.AssertNotCalled(t, "ReferenceLines", mock.Anything, mock.Anything)
	assert.Equal(t, 0, f.service.tracker.Len())
}

func TestDraftService_PickupWithoutPOIDLeavesDraftUnchanged(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()

	draft, err := f.service.Create(ctx, CreateDraftInput{Type: "pickup"})
	require.NoError(t, err)

	f.gateway.On("PurchaseOrderLines", mock.Anything, "PO-7").Return(&stock.PurchaseOrderLines{
		POVoucherNo: "PO-7",
		Lines:       []stock.SourceLine{sourceLine("p1", ledgerOf("p1", 10, 0, 0, 0), "1")},
	}, nil).Once()

	_, err = f.service.SelectReferences(ctx, draft.ID, SelectReferencesInput{
		References: stock.References{POVoucherNo: "PO-7"},
	})
	assert.ErrorIs(t, err, shared.ErrBackendFailure)
	assert.Equal(t, 1, f.metrics.transportErrors[OperationPurchaseOrderLines])

	stored, err := f.service.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, stored.Header.References.IsEmpty())
	assert.Equal(t, 0, stored.Lines.Len())
}

func TestDraftService_ReleasesPerDraftState(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := f.service.Get(ctx, uuid.New())
		require.ErrorIs(t, err, shared.ErrDraftNotFound)
		_, err = f.service.SetQuantity(ctx, uuid.New(), 0, "1")
		require.ErrorIs(t, err, shared.ErrDraftNotFound)
	}
	assert.Equal(t, 0, f.service.locks.len())

	draft := f.pickupDraft(t)
	_, err := f.service.SetQuantity(ctx, draft.ID, 0, "5")
	require.NoError(t, err)

	assert.Equal(t, 0, f.service.locks.len())
	assert.Equal(t, 0, f.service.tracker.Len())
}

func TestDraftService_AddLineRejectedForBoundedTypes(t *testing.T) {
	f := newDraftServiceFixture()
	draft := f.pickupDraft(t)

	result, err := f.service.AddDirectLine(context.Background(), draft.ID, AddLineInput{ProductID: "p9", Rate: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, stock.EditOutcomeNotAllowed, result.Outcome)
	assert.Equal(t, 1, f.metrics.editRejected[stock.EditOutcomeNotAllowed])

	_, err = f.service.AddDirectLine(context.Background(), draft.ID, AddLineInput{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestDraftService_Discard(t *testing.T) {
	f := newDraftServiceFixture()
	ctx := context.Background()

	draft, err := f.service.Create(ctx, CreateDraftInput{Type: "pickup"})
	require.NoError(t, err)

	require.NoError(t, f.service.Discard(ctx, draft.ID))

	_, err = f.service.Get(ctx, draft.ID)
	assert.ErrorIs(t, err, shared.ErrDraftNotFound)
	assert.ErrorIs(t, f.service.Discard(ctx, draft.ID), shared.ErrDraftNotFound)
}
