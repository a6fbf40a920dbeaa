package redislivestore

import (
	"context"
	"fmt"
	"time"

	"github.com/ephesafe/ephesafed/internal/core/ports"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	safeLockKeyPrefix = "safeLocks:"
	safeLockTTL       = 30 * time.Second
	lockRetryDelay    = 50 * time.Millisecond
)

type safeLockStore struct {
	rdb          *redis.Client
	numOfRetries int
}

func NewSafeLockStore(rdb *redis.Client, numOfRetries int) ports.SafeLockStore {
	return &safeLockStore{rdb: rdb, numOfRetries: numOfRetries}
}

func (s *safeLockStore) Lock(ctx context.Context, safeId uint64) error {
	key := safeLockKey(safeId)
	for attempt := 0; attempt < s.numOfRetries; attempt++ {
		ok, err := s.rdb.SetNX(ctx, key, 1, safeLockTTL).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return fmt.Errorf("failed to acquire lock for safe %d", safeId)
}

func (s *safeLockStore) Unlock(ctx context.Context, safeId uint64) {
	if err := s.rdb.Del(ctx, safeLockKey(safeId)).Err(); err != nil {
		log.WithError(err).Warnf("failed to release lock for safe %d", safeId)
	}
}

func safeLockKey(safeId uint64) string {
	return fmt.Sprintf("%s%d", safeLockKeyPrefix, safeId)
}

type liveStore struct {
	safeLocks ports.SafeLockStore
}

func NewLiveStore(rdb *redis.Client, numOfRetries int) ports.LiveStore {
	return &liveStore{safeLocks: NewSafeLockStore(rdb, numOfRetries)}
}

func (s *liveStore) SafeLocks() ports.SafeLockStore {
	return s.safeLocks
}
