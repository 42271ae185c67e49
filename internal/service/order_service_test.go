package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/internal/repository"
	"github.com/orderhub/orderhub/internal/repository/memory"
	"github.com/orderhub/orderhub/pkg/errors"
)

func seedOrders(t *testing.T, repos *repository.Repositories) {
	t.Helper()
	ctx := context.Background()
	for i, status := range []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusShipped, domain.OrderStatusPending} {
		o := testOrder(string(rune('A'+i)), status)
		o.OrderDate = orderDate.AddDate(0, 0, i)
		_, err := repos.Orders.Upsert(ctx, o)
		require.NoError(t, err)
	}
	amazon := testOrder("111-2222222-3333333", domain.OrderStatusDelivered)
	amazon.Platform = domain.PlatformAmazon
	_, err := repos.Orders.Upsert(ctx, amazon)
	require.NoError(t, err)
}

func TestOrderService_ListOrders(t *testing.T) {
	repos := memory.NewRepositories()
	seedOrders(t, repos)
	svc := NewOrderService(repos, zaptest.NewLogger(t))
	ctx := context.Background()

	orders, total, err := svc.ListOrders(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, orders, 4)
	for i := 1; i < len(orders); i++ {
		assert.False(t, orders[i].OrderDate.After(orders[i-1].OrderDate))
	}

	platform := domain.PlatformShopify
	status := domain.OrderStatusPending
	orders, total, err = svc.ListOrders(ctx, domain.OrderFilter{Platform: &platform, Status: &status, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "C", orders[0].ExternalOrderID)
}

func TestOrderService_ListOrdersValidation(t *testing.T) {
	svc := NewOrderService(memory.NewRepositories(), zaptest.NewLogger(t))
	badPlatform := domain.Platform("walmart")
	badStatus := domain.OrderStatus("lost")

	tests := []struct {
		name   string
		filter domain.OrderFilter
		field  string
	}{
		{"limit too large", domain.OrderFilter{Limit: 501}, "limit"},
		{"negative limit", domain.OrderFilter{Limit: -1}, "limit"},
		{"negative offset", domain.OrderFilter{Offset: -5}, "offset"},
		{"unknown platform", domain.OrderFilter{Platform: &badPlatform}, "platform"},
		{"unknown status", domain.OrderFilter{Status: &badStatus}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ListOrders(context.Background(), tt.filter)
			var ve *errors.ErrValidation
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestNormalizeFilter_DefaultLimit(t *testing.T) {
	f, err := NormalizeFilter(domain.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, DefaultListLimit, f.Limit)
}

func TestOrderService_GetOrder(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewOrderService(repos, zaptest.NewLogger(t))
	ctx := context.Background()

	result, err := repos.Orders.Upsert(ctx, testOrder("1001", domain.OrderStatusPending))
	require.NoError(t, err)

	order, err := svc.GetOrder(ctx, result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "1001", order.ExternalOrderID)

	_, err = svc.GetOrder(ctx, uuid.New())
	assert.True(t, errors.IsNotFound(err))
}

func TestOrderService_PlatformSummary(t *testing.T) {
	repos := memory.NewRepositories()
	seedOrders(t, repos)
	ctx := context.Background()

	msg := "token expired"
	require.NoError(t, repos.Connections.Save(ctx, &domain.PlatformConnection{
		Platform:      domain.PlatformShopify,
		CredentialRef: "env:shopify",
		Connected:     true,
	}))
	require.NoError(t, repos.Connections.Save(ctx, &domain.PlatformConnection{
		Platform:      domain.PlatformAmazon,
		CredentialRef: "env:amazon",
		LastError:     &msg,
		LastErrorKind: domain.ErrorKindAuth,
	}))

	summary, err := NewOrderService(repos, zaptest.NewLogger(t)).PlatformSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalOrders)
	require.Len(t, summary.Platforms, 4)

	shopify := summary.Platforms[0]
	assert.Equal(t, "Shopify", shopify.Name)
	assert.True(t, shopify.Connected)
	assert.Equal(t, 3, shopify.OrdersCount)
	assert.Nil(t, shopify.LastError)

	amazon := summary.Platforms[1]
	assert.False(t, amazon.Connected)
	require.NotNil(t, amazon.LastError)
	assert.Equal(t, msg, *amazon.LastError)

	ebay := summary.Platforms[2]
	assert.Equal(t, "eBay", ebay.Name)
	assert.False(t, ebay.Connected)
	assert.Zero(t, ebay.OrdersCount)
}

func TestOrderService_PlatformHealth(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewOrderService(repos, zaptest.NewLogger(t))
	ctx := context.Background()

	health, err := svc.PlatformHealth(ctx, domain.PlatformEbay)
	require.NoError(t, err)
	assert.False(t, health.Connected)
	assert.Equal(t, domain.SyncStatusNever, health.LastSyncStatus)

	require.NoError(t, repos.Connections.Save(ctx, &domain.PlatformConnection{
		Platform:       domain.PlatformEbay,
		Connected:      true,
		LastSyncStatus: domain.SyncStatusSucceeded,
		OrdersSynced:   12,
	}))
	health, err = svc.PlatformHealth(ctx, domain.PlatformEbay)
	require.NoError(t, err)
	assert.True(t, health.Connected)
	assert.EqualValues(t, 12, health.OrdersSynced)

	_, err = svc.PlatformHealth(ctx, domain.Platform("walmart"))
	assert.True(t, errors.IsValidation(err))
}

func TestOrderService_ListAnomalies(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewOrderService(repos, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, repos.Anomalies.Record(ctx, &domain.Anomaly{
		ID:              uuid.New(),
		Kind:            domain.AnomalyStatusRegression,
		Platform:        domain.PlatformShopify,
		ExternalOrderID: "1002",
		StoredStatus:    domain.OrderStatusDelivered,
		IncomingStatus:  domain.OrderStatusProcessing,
		DetectedAt:      orderDate,
	}))

	anomalies, err := svc.ListAnomalies(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, anomalies, 1)

	etsy := domain.PlatformEtsy
	anomalies, err = svc.ListAnomalies(ctx, &etsy, 10)
	require.NoError(t, err)
	assert.Empty(t, anomalies)

	_, err = svc.ListAnomalies(ctx, nil, 1000)
	assert.True(t, errors.IsValidation(err))
}
