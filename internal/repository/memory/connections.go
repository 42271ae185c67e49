package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/pkg/errors"
)

type connectionStore struct {
	mu    sync.RWMutex
	conns map[domain.Platform]*domain.PlatformConnection
}

// NewConnectionStore creates an empty in-memory connection store
func NewConnectionStore() *connectionStore {
	return &connectionStore{conns: make(map[domain.Platform]*domain.PlatformConnection)}
}

func notFound(platform domain.Platform) error {
	return &errors.ErrNotFound{Resource: "platform connection", ID: string(platform)}
}

func (s *connectionStore) Get(ctx context.Context, platform domain.Platform) (*domain.PlatformConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.conns[platform]
	if !ok {
		return nil, notFound(platform)
	}
	return conn.Clone(), nil
}

func (s *connectionStore) List(ctx context.Context) ([]*domain.PlatformConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := make([]*domain.PlatformConnection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c.Clone())
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].Platform < conns[j].Platform })
	return conns, nil
}

// Save stores a copy of conn; the caller's value is not modified
func (s *connectionStore) Save(ctx context.Context, conn *domain.PlatformConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := conn.Clone()
	now := time.Now().UTC()
	if existing, ok := s.conns[stored.Platform]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if stored.LastSyncStatus == "" {
		stored.LastSyncStatus = domain.SyncStatusNever
	}
	s.conns[stored.Platform] = stored
	return nil
}

func (s *connectionStore) Link(ctx context.Context, platform domain.Platform, credentialRef string) (*domain.PlatformConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	conn, ok := s.conns[platform]
	if !ok {
		conn = &domain.PlatformConnection{Platform: platform, LastSyncStatus: domain.SyncStatusNever, CreatedAt: now}
		s.conns[platform] = conn
	}
	conn.CredentialRef = credentialRef
	conn.Connected = true
	conn.LastError = nil
	conn.LastErrorKind = domain.ErrorKindNone
	conn.UpdatedAt = now
	return conn.Clone(), nil
}

func (s *connectionStore) UpdateSyncState(ctx context.Context, platform domain.Platform, update domain.SyncStateUpdate) (*domain.PlatformConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[platform]
	if !ok {
		return nil, notFound(platform)
	}
	update.Apply(conn)
	conn.UpdatedAt = time.Now().UTC()
	return conn.Clone(), nil
}
