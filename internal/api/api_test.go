package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/db"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/ethereum"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/feed"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/metrics"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSwapStore is a mock implementation of db.SwapStore
type MockSwapStore struct {
	mock.Mock
}

func (m *MockSwapStore) RecordSwap(ctx context.Context, swap *types.ClassifiedSwap) error {
	args := m.Called(swap)
	return args.Error(0)
}

func (m *MockSwapStore) RecentSwaps(ctx context.Context, limit int) ([]db.SwapRecord, error) {
	args := m.Called(limit)
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	return result.([]db.SwapRecord), args.Error(1)
}

func (m *MockSwapStore) SwapStats(ctx context.Context) (db.SwapStats, error) {
	args := m.Called()
	return args.Get(0).(db.SwapStats), args.Error(1)
}

func (m *MockSwapStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

type staticStatus feed.Status

func (s staticStatus) Status() feed.Status { return feed.Status(s) }

// Setup function to initialize a test Gin router with our handler
func setupTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorMiddleware())
	r.GET("/health", h.Health)
	r.GET("/swaps/recent", h.GetRecentSwaps)
	r.GET("/swaps/stats", h.GetSwapStats)
	r.GET("/ethereum/price", h.GetEthereumPrice)
	return r
}

func doGet(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	t.Run("Connected", func(t *testing.T) {
		status := staticStatus{Endpoint: "wss://eth-mainnet.g.alchemy.com/v2/***", Connected: true, State: "streaming", SubscriptionID: "0xabc", Connects: 2, Reconnects: 1}
		router := setupTestRouter(NewHandler(status, nil, ethereum.StaticPrice(decimal.NewFromInt(2000))))

		w := doGet(router, "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Status string      `json:"status"`
			Feed   feed.Status `json:"feed"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "ok", response.Status)
		assert.Equal(t, "0xabc", response.Feed.SubscriptionID)
		assert.Equal(t, int64(1), response.Feed.Reconnects)
	})

	t.Run("Reconnecting", func(t *testing.T) {
		status := staticStatus{State: "closed", LastError: "feed error during dial: refused"}
		router := setupTestRouter(NewHandler(status, nil, ethereum.StaticPrice(decimal.NewFromInt(2000))))

		w := doGet(router, "/health")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"reconnecting"`)
		assert.Contains(t, w.Body.String(), "refused")
	})
}

func TestGetRecentSwaps(t *testing.T) {
	mockDB := new(MockSwapStore)
	h := NewHandler(staticStatus{}, mockDB, ethereum.StaticPrice(decimal.NewFromInt(2000)))
	router := setupTestRouter(h)

	t.Run("Successful request", func(t *testing.T) {
		mockDB.On("RecentSwaps", 2).Return([]db.SwapRecord{
			{ID: 2, TxHash: "0x02", Method: "multicall", ValueEth: decimal.NewFromInt(75), IsBig: true, ObservedAt: time.Unix(1714566600, 0).UTC()},
			{ID: 1, TxHash: "0x01", Method: "swapExactETHForTokens", ValueEth: decimal.NewFromInt(1)},
		}, nil).Once()

		w := doGet(router, "/swaps/recent?limit=2")

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Swaps []db.SwapRecord `json:"swaps"`
			Count int             `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 2, response.Count)
		assert.Equal(t, "0x02", response.Swaps[0].TxHash)
		assert.True(t, response.Swaps[0].ValueEth.Equal(decimal.NewFromInt(75)))
	})

	t.Run("Default limit", func(t *testing.T) {
		mockDB.On("RecentSwaps", db.DefaultRecentLimit).Return([]db.SwapRecord{}, nil).Once()

		w := doGet(router, "/swaps/recent")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"swaps":[],"count":0}`, w.Body.String())
	})

	t.Run("Invalid limit", func(t *testing.T) {
		w := doGet(router, "/swaps/recent?limit=ten")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"limit must be a positive integer"}`, w.Body.String())
	})

	t.Run("Database error", func(t *testing.T) {
		mockDB.On("RecentSwaps", 5).Return(nil, &errors.DatabaseError{Operation: "query recent swaps", Err: assert.AnError}).Once()

		w := doGet(router, "/swaps/recent?limit=5")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
	})

	mockDB.AssertExpectations(t)
}

func TestSwapsJournalDisabled(t *testing.T) {
	router := setupTestRouter(NewHandler(staticStatus{}, nil, ethereum.StaticPrice(decimal.NewFromInt(2000))))

	for _, path := range []string{"/swaps/recent", "/swaps/stats"} {
		w := doGet(router, path)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.JSONEq(t, `{"error":"Swap journal is disabled"}`, w.Body.String())
	}
}

func TestGetSwapStats(t *testing.T) {
	mockDB := new(MockSwapStore)
	router := setupTestRouter(NewHandler(staticStatus{}, mockDB, ethereum.StaticPrice(decimal.NewFromInt(2000))))
	mockDB.On("SwapStats").Return(db.SwapStats{Total: 10, BigSwaps: 2, TotalEth: decimal.RequireFromString("151.25")}, nil).Once()

	w := doGet(router, "/swaps/stats")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":10,"big_swaps":2,"total_eth":"151.25"}`, w.Body.String())
	mockDB.AssertExpectations(t)
}

func TestGetEthereumPrice(t *testing.T) {
	router := setupTestRouter(NewHandler(staticStatus{}, nil, ethereum.StaticPrice(decimal.RequireFromString("3150.42"))))

	w := doGet(router, "/ethereum/price")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"eth_usd":"3150.42"}`, w.Body.String())
}

func TestErrorMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testCases := []struct {
		name     string
		err      error
		code     int
		expected string
	}{
		{name: "not found", err: &errors.NotFoundError{Resource: "swap", Identifier: "0x01"}, code: http.StatusNotFound, expected: `{"error":"swap not found: 0x01"}`},
		{name: "api error", err: &errors.APIError{StatusCode: http.StatusTeapot, Message: "short and stout"}, code: http.StatusTeapot, expected: `{"error":"short and stout"}`},
		{name: "unknown", err: assert.AnError, code: http.StatusInternalServerError, expected: `{"error":"Internal server error"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorMiddleware())
			r.GET("/fail", func(c *gin.Context) { c.Error(tc.err) })

			w := doGet(r, "/fail")

			assert.Equal(t, tc.code, w.Code)
			assert.JSONEq(t, tc.expected, w.Body.String())
		})
	}
}

func TestSetupRouterServesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.FramesReceived.Add(3)
	router := SetupRouter(NewHandler(staticStatus{Connected: true}, nil, ethereum.StaticPrice(decimal.NewFromInt(2000))), nil, reg)

	w := doGet(router, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "mempool_scanner_frames_received_total 3"))

	w = doGet(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}
