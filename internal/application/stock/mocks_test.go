package stock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/erp/stockflow/internal/domain/shared"
	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStockGateway is a mock implementation of stock.StockGateway
type MockStockGateway struct {
	mock.Mock
}

func (m *MockStockGateway) PurchaseOrderLines(ctx context.Context, voucherNo string) (*stock.PurchaseOrderLines, error) {
	args := m.Called(ctx, voucherNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.PurchaseOrderLines), args.Error(1)
}

func (m *MockStockGateway) ReferenceLines(ctx context.Context, query stock.ReferenceQuery) ([]stock.SourceLine, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stock.SourceLine), args.Error(1)
}

func (m *MockStockGateway) AvailableQuantity(ctx context.Context, productID, warehouseID string) (valueobject.Quantity, error) {
	args := m.Called(ctx, productID, warehouseID)
	return args.Get(0).(valueobject.Quantity), args.Error(1)
}

func (m *MockStockGateway) SubmitPickup(ctx context.Context, req stock.TransactionRequest) (*stock.SubmitReceipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.SubmitReceipt), args.Error(1)
}

func (m *MockStockGateway) SubmitOutward(ctx context.Context, req stock.TransactionRequest) (*stock.SubmitReceipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.SubmitReceipt), args.Error(1)
}

func (m *MockStockGateway) StockSummary(ctx context.Context, entryType stock.EntryType) ([]stock.SummaryRow, error) {
	args := m.Called(ctx, entryType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stock.SummaryRow), args.Error(1)
}

// memoryDraftRepo stores drafts as JSON so each load returns an independent copy
type memoryDraftRepo struct {
	mu     sync.Mutex
	drafts map[uuid.UUID][]byte
}

func newMemoryDraftRepo() *memoryDraftRepo {
	return &memoryDraftRepo{drafts: make(map[uuid.UUID][]byte)}
}

func (r *memoryDraftRepo) Save(ctx context.Context, draft *stock.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[draft.ID] = data
	return nil
}

func (r *memoryDraftRepo) FindByID(ctx context.Context, id uuid.UUID) (*stock.Draft, error) {
	r.mu.Lock()
	data, ok := r.drafts[id]
	r.mu.Unlock()
	if !ok {
		return nil, shared.ErrDraftNotFound
	}
	var draft stock.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (r *memoryDraftRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, id)
	return nil
}

// recordingMetrics counts recorder calls
type recordingMetrics struct {
	mu                 sync.Mutex
	editRejected       map[stock.EditOutcome]int
	validationRejected map[stock.RejectReason]int
	staleFetches       int
	transportErrors    map[string]int
	submissions        map[stock.TransactionType]int
	mismatches         map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		editRejected:       make(map[stock.EditOutcome]int),
		validationRejected: make(map[stock.RejectReason]int),
		transportErrors:    make(map[string]int),
		submissions:        make(map[stock.TransactionType]int),
		mismatches:         make(map[string]int),
	}
}

func (m *recordingMetrics) RecordEditRejected(outcome stock.EditOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editRejected[outcome]++
}

func (m *recordingMetrics) RecordValidationRejected(reason stock.RejectReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationRejected[reason]++
}

func (m *recordingMetrics) RecordStaleFetch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleFetches++
}

func (m *recordingMetrics) RecordTransportError(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transportErrors[operation]++
}

func (m *recordingMetrics) RecordSubmission(txType stock.TransactionType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[txType]++
}

func (m *recordingMetrics) RecordAvailabilityMismatch(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mismatches[source]++
}

func (m *recordingMetrics) stale() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staleFetches
}
