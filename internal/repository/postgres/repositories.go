package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/repository"
)

// NewRepositories creates PostgreSQL-backed repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Orders:      NewOrderRepository(db, logger),
		Connections: NewConnectionRepository(db, logger),
		Anomalies:   NewAnomalyRepository(db, logger),
		Inventory:   NewInventoryRepository(db, logger),
	}
}
