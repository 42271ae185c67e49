package memory

import (
	"context"
	"sync"

	"github.com/orderhub/orderhub/internal/domain"
)

type anomalyStore struct {
	mu        sync.Mutex
	anomalies []*domain.Anomaly
}

// NewAnomalyStore creates an empty in-memory anomaly log
func NewAnomalyStore() *anomalyStore {
	return &anomalyStore{}
}

func (s *anomalyStore) Record(ctx context.Context, anomaly *domain.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := *anomaly
	s.anomalies = append(s.anomalies, &a)
	return nil
}

// List returns the newest anomalies first
func (s *anomalyStore) List(ctx context.Context, platform *domain.Platform, limit int) ([]*domain.Anomaly, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*domain.Anomaly, 0)
	for i := len(s.anomalies) - 1; i >= 0; i-- {
		a := s.anomalies[i]
		if platform != nil && a.Platform != *platform {
			continue
		}
		cp := *a
		result = append(result, &cp)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}
