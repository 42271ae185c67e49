package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/orderhub/orderhub/internal/adapter"
	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/internal/events"
	"github.com/orderhub/orderhub/internal/lock"
	"github.com/orderhub/orderhub/internal/repository"
	"github.com/orderhub/orderhub/internal/repository/memory"
	"github.com/orderhub/orderhub/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		CORSOrigins: []string{"http://localhost:3000"},
	}
}

type stack struct {
	router *gin.Engine
	repos  *repository.Repositories
	logs   *observer.ObservedLogs
}

func newStack(t *testing.T, cfg *config.Config) *stack {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	anchor := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var adapters []adapter.Adapter
	for _, p := range domain.AllPlatforms() {
		adapters = append(adapters, adapter.New(p, adapter.NewDemoFetcher(p, anchor), adapter.MapDemoOrder))
	}

	repos := memory.NewRepositories()
	syncer := service.NewSyncService(
		repos,
		adapter.NewRegistry(adapters...),
		adapter.NewEnvCredentials(&config.Config{DemoMode: true}),
		lock.NewLocalLocker(),
		events.NewLogPublisher(logger),
		nil,
		service.SyncOptions{
			MaxPagesPerPass:     10,
			CallTimeout:         time.Second,
			MaxTransientRetries: 1,
			MaxRateLimitRetries: 1,
			RetryBaseDelay:      time.Millisecond,
			RetryMaxDelay:       time.Millisecond,
			LockTTL:             time.Minute,
		},
		logger,
	)
	t.Cleanup(func() { _ = syncer.Shutdown(context.Background()) })

	return &stack{
		router: NewRouter(cfg, service.NewOrderService(repos, logger), syncer, service.NewInventoryService(repos, logger), logger),
		repos:  repos,
		logs:   logs,
	}
}

func (s *stack) do(method, path, auth string) *httptest.ResponseRecorder {
	return s.doJSON(method, path, auth, "")
}

func (s *stack) doJSON(method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *stack) seed(t *testing.T, platform domain.Platform, externalID string, status domain.OrderStatus, date time.Time) *domain.Order {
	t.Helper()
	price := decimal.RequireFromString("100.00")
	result, err := s.repos.Orders.Upsert(context.Background(), &domain.Order{
		Platform:        platform,
		ExternalOrderID: externalID,
		OrderNumber:     externalID,
		Status:          status,
		OrderDate:       date,
		CustomerName:    "Pat Smith",
		Items:           []domain.OrderItem{{SKU: "SKU-1", Name: "Lamp", Quantity: 1, UnitPrice: price, LineTotal: price}},
		Subtotal:        price,
		Total:           price,
		Currency:        "USD",
	})
	require.NoError(t, err)
	return result.Order
}

func TestRouter_HealthAndInfo(t *testing.T) {
	s := newStack(t, testConfig())

	w := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = s.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"orderhub"`)
}

func TestRouter_ListOrdersFiltersAndCounts(t *testing.T) {
	s := newStack(t, testConfig())
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s.seed(t, domain.PlatformAmazon, "A-1", domain.OrderStatusPending, day)
	s.seed(t, domain.PlatformAmazon, "A-2", domain.OrderStatusPending, day.AddDate(0, 0, 2))
	s.seed(t, domain.PlatformAmazon, "A-3", domain.OrderStatusShipped, day.AddDate(0, 0, 3))
	s.seed(t, domain.PlatformShopify, "S-1", domain.OrderStatusPending, day.AddDate(0, 0, 4))

	w := s.do(http.MethodGet, "/api/orders?platform=amazon&status=pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))

	var body []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "A-2", body[0]["external_order_id"])
	assert.Equal(t, "A-1", body[1]["external_order_id"])
	assert.Equal(t, 100.0, body[0]["total"])
	assert.Equal(t, "2024-05-03T00:00:00Z", body[0]["order_date"])

	w = s.do(http.MethodGet, "/api/orders?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4", w.Header().Get("X-Total-Count"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body, 1)
}

func TestRouter_ListOrdersRejectsBadQuery(t *testing.T) {
	s := newStack(t, testConfig())

	for _, path := range []string{
		"/api/orders?limit=0",
		"/api/orders?limit=501",
		"/api/orders?limit=abc",
		"/api/orders?platform=walmart",
		"/api/orders?status=lost",
	} {
		w := s.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestRouter_GetOrder(t *testing.T) {
	s := newStack(t, testConfig())
	order := s.seed(t, domain.PlatformEbay, "E-1", domain.OrderStatusPending, time.Now().UTC())

	w := s.do(http.MethodGet, "/api/orders/"+order.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"platform":"ebay"`)

	w = s.do(http.MethodGet, "/api/orders/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/orders/00000000-0000-0000-0000-000000000001", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_PlatformSummaryListsEveryPlatform(t *testing.T) {
	s := newStack(t, testConfig())
	s.seed(t, domain.PlatformEtsy, "1234567", domain.OrderStatusPending, time.Now().UTC())

	w := s.do(http.MethodGet, "/api/platforms", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Platforms []struct {
			Name        string `json:"name"`
			Type        string `json:"type"`
			Connected   bool   `json:"connected"`
			OrdersCount int    `json:"orders_count"`
		} `json:"platforms"`
		TotalOrders int `json:"total_orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Platforms, 4)
	assert.Equal(t, 1, body.TotalOrders)
	assert.Equal(t, "Etsy", body.Platforms[3].Name)
	assert.Equal(t, 1, body.Platforms[3].OrdersCount)
	assert.False(t, body.Platforms[3].Connected)
}

func TestRouter_SyncFlow(t *testing.T) {
	s := newStack(t, testConfig())
	ctx := context.Background()

	// unlinked platforms cannot be synced
	w := s.do(http.MethodPost, "/api/platforms/shopify/sync", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, s.repos.Connections.Save(ctx, &domain.PlatformConnection{
		Platform:       domain.PlatformShopify,
		CredentialRef:  "demo:shopify",
		Connected:      true,
		LastSyncStatus: domain.SyncStatusNever,
	}))

	w = s.do(http.MethodPost, "/api/platforms/shopify/sync", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"platform":"shopify","status":"accepted"}`, w.Body.String())

	assert.Eventually(t, func() bool {
		w := s.do(http.MethodGet, "/api/platforms/shopify/health", "")
		return w.Code == http.StatusOK && json.Valid(w.Body.Bytes()) &&
			jsonField(w.Body.Bytes(), "last_sync_status") == "succeeded"
	}, 2*time.Second, 10*time.Millisecond)

	w = s.do(http.MethodGet, "/api/orders?platform=shopify", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "20", w.Header().Get("X-Total-Count"))

	w = s.do(http.MethodPost, "/api/platforms/walmart/sync", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_SyncAllAndReconnect(t *testing.T) {
	s := newStack(t, testConfig())
	ctx := context.Background()
	msg := "invalid token"
	require.NoError(t, s.repos.Connections.Save(ctx, &domain.PlatformConnection{
		Platform:       domain.PlatformAmazon,
		CredentialRef:  "demo:amazon",
		LastSyncStatus: domain.SyncStatusFailed,
		LastError:      &msg,
		LastErrorKind:  domain.ErrorKindAuth,
	}))

	w := s.do(http.MethodPost, "/api/platforms/amazon/sync", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/orders/sync", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"message":"sync started","accepted":[],"already_running":[]}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/platforms/amazon/reconnect", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, jsonValue(w.Body.Bytes(), "connected"))
	assert.Nil(t, jsonValue(w.Body.Bytes(), "last_error"))
}

func TestRouter_AdminKeyGuardsMutations(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-key"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.API.AdminKeyHash = string(hash)
	s := newStack(t, cfg)

	w := s.do(http.MethodPost, "/api/orders/sync", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/orders/sync", "Bearer admin-key")
	assert.Equal(t, http.StatusAccepted, w.Code)

	// reads stay open
	w = s.do(http.MethodGet, "/api/platforms", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ListAnomalies(t *testing.T) {
	s := newStack(t, testConfig())
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	s.seed(t, domain.PlatformShopify, "1002", domain.OrderStatusShipped, day)
	result, err := s.repos.Orders.Upsert(ctx, &domain.Order{
		Platform:        domain.PlatformShopify,
		ExternalOrderID: "1002",
		Status:          domain.OrderStatusPending,
		OrderDate:       day,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Anomaly)
	require.NoError(t, s.repos.Anomalies.Record(ctx, result.Anomaly))

	w := s.do(http.MethodGet, "/api/anomalies?platform=shopify", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "shipped", body[0]["stored_status"])
	assert.Equal(t, "pending", body[0]["incoming_status"])

	w = s.do(http.MethodGet, "/api/anomalies?limit=9999", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	s := newStack(t, testConfig())

	s.do(http.MethodGet, "/health", "")
	s.do(http.MethodGet, "/api/orders?limit=abc", "")

	entries := s.logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Contains(t, entries[0].ContextMap(), "latency")
}

func jsonValue(data []byte, key string) any {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m[key]
}

func jsonField(data []byte, key string) string {
	s, _ := jsonValue(data, key).(string)
	return s
}

func TestRouter_InventoryLifecycle(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-key"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.API.AdminKeyHash = string(hash)
	s := newStack(t, cfg)
	auth := "Bearer admin-key"

	w := s.doJSON(http.MethodPut, "/api/inventory/LAMP-1", "", `{"name":"Desk Lamp","quantity_available":12}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.doJSON(http.MethodPut, "/api/inventory/LAMP-1", auth, `{"name":"Desk Lamp","quantity_available":12,"price":39.5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var product struct {
		SKU               string   `json:"sku"`
		QuantityAvailable int      `json:"quantity_available"`
		ReorderPoint      int      `json:"reorder_point"`
		Price             *float64 `json:"price"`
		NeedsReorder      bool     `json:"needs_reorder"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))
	assert.Equal(t, 12, product.QuantityAvailable)
	assert.Equal(t, service.DefaultReorderPoint, product.ReorderPoint)
	require.NotNil(t, product.Price)
	assert.InDelta(t, 39.5, *product.Price, 0.001)
	assert.False(t, product.NeedsReorder)

	w = s.doJSON(http.MethodPut, "/api/inventory/LAMP-2", auth, `{"quantity_available":3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodPatch, "/api/inventory/LAMP-1", auth, `{"quantity":4,"reason":"cycle count"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))
	assert.Equal(t, 4, product.QuantityAvailable)
	assert.True(t, product.NeedsReorder)

	w = s.doJSON(http.MethodPatch, "/api/inventory/LAMP-1", auth, `{"reason":"missing quantity"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.doJSON(http.MethodPatch, "/api/inventory/NOPE", auth, `{"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/inventory?low_stock=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	var low []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &low))
	require.Len(t, low, 1)
	assert.Equal(t, "LAMP-1", low[0]["sku"])

	w = s.do(http.MethodGet, "/api/inventory?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/inventory/LAMP-1/logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var logs []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "adjustment", logs[0]["change_type"])
	assert.Equal(t, "cycle count", logs[0]["reason"])
	assert.EqualValues(t, -8, logs[0]["quantity_change"])

	w = s.do(http.MethodGet, "/api/inventory/NOPE/logs", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, "/api/inventory/NOPE", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
