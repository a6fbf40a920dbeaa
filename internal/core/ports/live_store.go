package ports

import "context"

// SafeLockStore serializes mutations per safe id. Operations on distinct ids
// never contend.
type SafeLockStore interface {
	Lock(ctx context.Context, safeId uint64) error
	Unlock(ctx context.Context, safeId uint64)
}

type LiveStore interface {
	SafeLocks() SafeLockStore
}
