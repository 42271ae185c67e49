package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderhub/orderhub/internal/domain"
)

var demoAnchor = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// drainDemo runs one complete pass and returns the orders plus the cursor after it
func drainDemo(t *testing.T, a Adapter, cursor string) ([]*domain.Order, string) {
	t.Helper()
	var orders []*domain.Order
	for i := 0; i < 10; i++ {
		page, err := a.FetchOrdersSince(context.Background(), Credential{}, cursor)
		require.NoError(t, err)
		require.Empty(t, page.Skipped)
		orders = append(orders, page.Orders...)
		cursor = page.NextCursor
		if !page.HasMore {
			return orders, cursor
		}
	}
	t.Fatal("demo pass did not terminate")
	return nil, ""
}

func TestDemo_PagesCoverAllOrders(t *testing.T) {
	a := New(domain.PlatformShopify, NewDemoFetcher(domain.PlatformShopify, demoAnchor), MapDemoOrder, WithPageSize(6))

	orders, _ := drainDemo(t, a, "")
	require.Len(t, orders, demoOrdersPerPlatform)

	seen := map[string]bool{}
	for _, o := range orders {
		assert.False(t, seen[o.ExternalOrderID], "duplicate %s", o.ExternalOrderID)
		seen[o.ExternalOrderID] = true
	}
	assert.Equal(t, "SHOP1000", orders[0].ExternalOrderID)
	assert.Equal(t, "#1000", orders[0].OrderNumber)
}

func TestDemo_SameCursorSamePage(t *testing.T) {
	a := New(domain.PlatformEbay, NewDemoFetcher(domain.PlatformEbay, demoAnchor), MapDemoOrder, WithPageSize(5))

	first, err := a.FetchOrdersSince(context.Background(), Credential{}, "")
	require.NoError(t, err)
	second, err := a.FetchOrdersSince(context.Background(), Credential{}, "")
	require.NoError(t, err)

	assert.Equal(t, first.NextCursor, second.NextCursor)
	require.Len(t, second.Orders, len(first.Orders))
	for i := range first.Orders {
		assert.Equal(t, first.Orders[i].ExternalOrderID, second.Orders[i].ExternalOrderID)
		assert.Equal(t, first.Orders[i].Status, second.Orders[i].Status)
		assert.True(t, first.Orders[i].Total.Equal(second.Orders[i].Total))
	}
}

func TestDemo_StatusesOnlyMoveForward(t *testing.T) {
	a := New(domain.PlatformAmazon, NewDemoFetcher(domain.PlatformAmazon, demoAnchor), MapDemoOrder, WithPageSize(50))

	previous := map[string]domain.OrderStatus{}
	cursor := ""
	sawCancel := false
	for pass := 0; pass < 5; pass++ {
		var orders []*domain.Order
		orders, cursor = drainDemo(t, a, cursor)
		for _, o := range orders {
			if prev, ok := previous[o.ExternalOrderID]; ok {
				assert.True(t, prev.CanTransitionTo(o.Status), "%s: %s -> %s", o.ExternalOrderID, prev, o.Status)
			}
			previous[o.ExternalOrderID] = o.Status
			if o.Status == domain.OrderStatusCancelled {
				sawCancel = true
			}
		}
	}
	assert.True(t, sawCancel)
	for _, status := range previous {
		assert.True(t, status.IsTerminal())
	}
}

func TestDemo_OrdersAreConsistent(t *testing.T) {
	for _, platform := range domain.AllPlatforms() {
		t.Run(string(platform), func(t *testing.T) {
			a := New(platform, NewDemoFetcher(platform, demoAnchor), MapDemoOrder, WithPageSize(50))
			orders, _ := drainDemo(t, a, "")
			for _, o := range orders {
				o.CheckConsistency()
				assert.False(t, o.Inconsistent, "%s: %v", o.ExternalOrderID, o.InconsistencyReason)
				if o.Status.HasShipped() {
					assert.NotNil(t, o.TrackingNumber)
					assert.NotNil(t, o.Carrier)
				} else {
					assert.Nil(t, o.TrackingNumber)
				}
			}
		})
	}
}

func TestDemoStatus(t *testing.T) {
	assert.Equal(t, domain.OrderStatusPending, demoStatus(4, 0))
	assert.Equal(t, domain.OrderStatusCancelled, demoStatus(4, 1))
	assert.Equal(t, domain.OrderStatusCancelled, demoStatus(4, 9))
	assert.Equal(t, domain.OrderStatusShipped, demoStatus(2, 0))
	assert.Equal(t, domain.OrderStatusDelivered, demoStatus(2, 1))
	assert.Equal(t, domain.OrderStatusDelivered, demoStatus(14, 1))
}
