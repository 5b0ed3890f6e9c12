package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	stockapp "github.com/erp/stockflow/internal/application/stock"
	"github.com/erp/stockflow/internal/domain/shared/valueobject"
	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/erp/stockflow/internal/infrastructure/cache"
	"github.com/erp/stockflow/internal/interfaces/http/dto"
	"github.com/erp/stockflow/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

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

type testServer struct {
	engine  *gin.Engine
	gateway *MockStockGateway
	repo    *cache.InMemoryDraftRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gateway := new(MockStockGateway)
	repo := cache.NewInMemoryDraftRepository(time.Hour)
	t.Cleanup(func() { _ = repo.Close() })

	drafts := NewDraftHandler(stockapp.NewDraftService(repo, gateway, nil, nil, stockapp.DraftServiceConfig{}))
	availability := NewAvailabilityHandler(stockapp.NewAvailabilityService(gateway, nil, nil))

	engine := gin.New()
	engine.Use(middleware.RequestID())
	api := engine.Group("/api/v1")
	api.POST("/drafts", drafts.Create)
	api.GET("/drafts/:id", drafts.Get)
	api.DELETE("/drafts/:id", drafts.Delete)
	api.PUT("/drafts/:id/references", drafts.SelectReferences)
	api.PUT("/drafts/:id/lines/:index/quantity", drafts.SetQuantity)
	api.POST("/drafts/:id/lines", drafts.AddLine)
	api.DELETE("/drafts/:id/lines/:index", drafts.RemoveLine)
	api.POST("/drafts/:id/validate", drafts.Validate)
	api.POST("/drafts/:id/submit", drafts.Submit)
	api.POST("/availability/compute", availability.Compute)
	api.GET("/availability/products/:product_id", availability.Product)
	api.GET("/stock-summary", availability.StockSummary)

	return &testServer{engine: engine, gateway: gateway, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// decode unmarshals the response envelope, decoding Data into data when given
func decode(t *testing.T, w *httptest.ResponseRecorder, data any) dto.Response {
	t.Helper()

	var envelope struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	if data != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.Response
}
