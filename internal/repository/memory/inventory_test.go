package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/pkg/errors"
)

func stockedStore(t *testing.T, products ...domain.Product) *inventoryStore {
	t.Helper()
	store := NewInventoryStore()
	for i := range products {
		_, err := store.SaveProduct(context.Background(), &products[i])
		require.NoError(t, err)
	}
	return store
}

func orderWithItems(items ...domain.OrderItem) *domain.Order {
	o := makeOrder(domain.PlatformEtsy, "E-1", domain.OrderStatusPending, 0)
	o.ID = uuid.New()
	o.Items = items
	return o
}

func item(sku string, qty int) domain.OrderItem {
	price := decimal.RequireFromString("5.00")
	return domain.OrderItem{SKU: sku, Name: sku, Quantity: qty, UnitPrice: price, LineTotal: price.Mul(decimal.NewFromInt(int64(qty)))}
}

func TestInventoryStore_SaveProductKeepsStock(t *testing.T) {
	ctx := context.Background()
	store := stockedStore(t, domain.Product{SKU: "MUG", Name: "Mug", QuantityAvailable: 10, ReorderPoint: 2})

	_, err := store.SetAvailable(ctx, "MUG", 25, "recount")
	require.NoError(t, err)

	updated, err := store.SaveProduct(ctx, &domain.Product{SKU: "MUG", Name: "Coffee Mug", QuantityAvailable: 1, ReorderPoint: 5})
	require.NoError(t, err)
	assert.Equal(t, "Coffee Mug", updated.Name)
	assert.Equal(t, 25, updated.QuantityAvailable)
	assert.Equal(t, 5, updated.ReorderPoint)

	_, err = store.SaveProduct(ctx, &domain.Product{SKU: "", Name: "nameless"})
	assert.True(t, errors.IsValidation(err))

	_, err = store.SetAvailable(ctx, "MUG", -1, "typo")
	assert.True(t, errors.IsValidation(err))
	_, err = store.SetAvailable(ctx, "NOPE", 1, "")
	assert.True(t, errors.IsNotFound(err))
}

func TestInventoryStore_ReserveAndReleaseOrder(t *testing.T) {
	ctx := context.Background()
	store := stockedStore(t,
		domain.Product{SKU: "MUG", Name: "Mug", QuantityAvailable: 10},
		domain.Product{SKU: "CAP", Name: "Cap", QuantityAvailable: 1},
	)
	order := orderWithItems(item("MUG", 2), item("CAP", 3), item("MUG", 1), item("GHOST", 1))

	reservations, err := store.ReserveOrder(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, []domain.Reservation{
		{SKU: "MUG", Quantity: 3, Outcome: domain.ReservationReserved},
		{SKU: "CAP", Quantity: 3, Outcome: domain.ReservationInsufficient},
		{SKU: "GHOST", Quantity: 1, Outcome: domain.ReservationUnknownSKU},
	}, reservations)

	mug, err := store.GetProduct(ctx, "MUG")
	require.NoError(t, err)
	assert.Equal(t, 7, mug.QuantityAvailable)
	assert.Equal(t, 3, mug.QuantityReserved)

	again, err := store.ReserveOrder(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationAlreadyHeld, again[0].Outcome)
	mug, _ = store.GetProduct(ctx, "MUG")
	assert.Equal(t, 7, mug.QuantityAvailable)

	released, err := store.ReleaseOrder(ctx, order, "Order cancelled")
	require.NoError(t, err)
	assert.Equal(t, []domain.Reservation{{SKU: "MUG", Quantity: 3, Outcome: domain.ReservationReleased}}, released)

	mug, _ = store.GetProduct(ctx, "MUG")
	assert.Equal(t, 10, mug.QuantityAvailable)
	assert.Zero(t, mug.QuantityReserved)

	capStock, _ := store.GetProduct(ctx, "CAP")
	assert.Equal(t, 1, capStock.QuantityAvailable, "a reservation that never happened is not released")

	none, err := store.ReleaseOrder(ctx, order, "Order cancelled")
	require.NoError(t, err)
	assert.Empty(t, none)

	logs, err := store.Logs(ctx, "MUG", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.InventoryRelease, logs[0].ChangeType)
	assert.Equal(t, 3, logs[0].QuantityChange)
	assert.Equal(t, "Order cancelled", logs[0].Reason)
	require.NotNil(t, logs[0].OrderID)
	assert.Equal(t, order.ID, *logs[0].OrderID)
	assert.Equal(t, domain.InventoryReservation, logs[1].ChangeType)
	assert.Equal(t, -3, logs[1].QuantityChange)
}

func TestInventoryStore_ListProductsLowStock(t *testing.T) {
	ctx := context.Background()
	store := stockedStore(t,
		domain.Product{SKU: "C", Name: "C", QuantityAvailable: 50, ReorderPoint: 10},
		domain.Product{SKU: "A", Name: "A", QuantityAvailable: 3, ReorderPoint: 10},
		domain.Product{SKU: "B", Name: "B", QuantityAvailable: 10, ReorderPoint: 10},
	)

	all, err := store.ListProducts(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A", all[0].SKU)

	low, err := store.ListProducts(ctx, domain.ProductFilter{LowStock: true})
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "B", low[1].SKU)

	page, err := store.ListProducts(ctx, domain.ProductFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "B", page[0].SKU)

	empty, err := store.ListProducts(ctx, domain.ProductFilter{Offset: 9})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
