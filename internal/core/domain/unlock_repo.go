package domain

import "context"

type EmergencyUnlockRepository interface {
	// Get returns nil without error when no round exists for the safe.
	Get(ctx context.Context, safeId uint64) (*EmergencyUnlock, error)
	Upsert(ctx context.Context, unlock EmergencyUnlock) error
	Close()
}
