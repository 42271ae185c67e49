package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/orderhub/orderhub/internal/domain"
)

// OrderRepository is the canonical, deduplicated order collection.
// Upsert must evaluate domain.Reconcile atomically against the stored
// record for the same key; upserts to different keys must not contend.
type OrderRepository interface {
	Upsert(ctx context.Context, order *domain.Order) (*domain.UpsertResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByExternalID(ctx context.Context, platform domain.Platform, externalOrderID string) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)
	Count(ctx context.Context, filter domain.OrderFilter) (int, error)
	SummarizeByPlatform(ctx context.Context) (map[domain.Platform]int, error)
}

// ConnectionRepository stores one PlatformConnection per platform
type ConnectionRepository interface {
	Get(ctx context.Context, platform domain.Platform) (*domain.PlatformConnection, error)
	List(ctx context.Context) ([]*domain.PlatformConnection, error)
	Save(ctx context.Context, conn *domain.PlatformConnection) error
	// Link creates the connection or sets a new credential on it, marking it
	// connected. Sync progress is left as stored.
	Link(ctx context.Context, platform domain.Platform, credentialRef string) (*domain.PlatformConnection, error)
	// UpdateSyncState writes only the fields set in update, so a
	// credential relinked mid-pass survives the pass's checkpoints.
	UpdateSyncState(ctx context.Context, platform domain.Platform, update domain.SyncStateUpdate) (*domain.PlatformConnection, error)
}

// AnomalyRepository records non-fatal sync anomalies
type AnomalyRepository interface {
	Record(ctx context.Context, anomaly *domain.Anomaly) error
	List(ctx context.Context, platform *domain.Platform, limit int) ([]*domain.Anomaly, error)
}

// InventoryRepository tracks product stock and the reservations orders hold
// against it. ReserveOrder and ReleaseOrder are idempotent per order and SKU.
type InventoryRepository interface {
	SaveProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, sku string) (*domain.Product, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	SetAvailable(ctx context.Context, sku string, quantity int, reason string) (*domain.Product, error)
	ReserveOrder(ctx context.Context, order *domain.Order) ([]domain.Reservation, error)
	ReleaseOrder(ctx context.Context, order *domain.Order, reason string) ([]domain.Reservation, error)
	Logs(ctx context.Context, sku string, limit int) ([]*domain.InventoryLog, error)
}

// Repositories groups every store the services depend on
type Repositories struct {
	Orders      OrderRepository
	Connections ConnectionRepository
	Anomalies   AnomalyRepository
	Inventory   InventoryRepository
}
