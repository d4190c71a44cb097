// Package store persists position tracker snapshots for restart recovery
package store

import (
	"context"
	"sync"

	"riskgate/internal/core"
	apperrors "riskgate/pkg/errors"
)

// MemoryStore keeps the latest snapshot in memory. Useful for tests and for
// deployments that accept losing state across restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	snap   *core.TrackerSnapshot
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap *core.TrackerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrStoreClosed
	}
	s.snap = snap
	return nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context) (*core.TrackerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, apperrors.ErrStoreClosed
	}
	return s.snap, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
