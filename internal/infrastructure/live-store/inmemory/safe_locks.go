package inmemorylivestore

import (
	"context"
	"sync"

	"github.com/ephesafe/ephesafed/internal/core/ports"
)

type safeLockStore struct {
	lock  sync.Mutex
	locks map[uint64]chan struct{}
}

func NewSafeLockStore() ports.SafeLockStore {
	return &safeLockStore{locks: make(map[uint64]chan struct{})}
}

func (s *safeLockStore) Lock(ctx context.Context, safeId uint64) error {
	ch := s.getLock(safeId)
	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *safeLockStore) Unlock(_ context.Context, safeId uint64) {
	ch := s.getLock(safeId)
	select {
	case <-ch:
	default:
	}
}

func (s *safeLockStore) getLock(safeId uint64) chan struct{} {
	s.lock.Lock()
	defer s.lock.Unlock()
	ch, ok := s.locks[safeId]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[safeId] = ch
	}
	return ch
}

type liveStore struct {
	safeLocks ports.SafeLockStore
}

func NewLiveStore() ports.LiveStore {
	return &liveStore{safeLocks: NewSafeLockStore()}
}

func (s *liveStore) SafeLocks() ports.SafeLockStore {
	return s.safeLocks
}
