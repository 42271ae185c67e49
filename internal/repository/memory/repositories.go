package memory

import (
	"github.com/orderhub/orderhub/internal/repository"
)

// NewRepositories creates in-memory repositories for single-process deployments
func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		Orders:      NewOrderStore(),
		Connections: NewConnectionStore(),
		Anomalies:   NewAnomalyStore(),
		Inventory:   NewInventoryStore(),
	}
}
