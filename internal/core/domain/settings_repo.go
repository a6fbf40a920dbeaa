package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type SettingsRepository interface {
	// Get returns nil without error when the registry has not been
	// bootstrapped yet.
	Get(ctx context.Context) (*Settings, error)
	// Upsert writes the whole record. Bootstrap path only: concurrent
	// mutations go through the field-scoped methods below so that writers
	// never clobber each other's fields.
	Upsert(ctx context.Context, settings Settings) error
	// NextSafeId atomically assigns and returns the next safe id.
	NextSafeId(ctx context.Context) (uint64, error)
	// IncrementCounters atomically adds to the lifetime claim and burn totals.
	IncrementCounters(ctx context.Context, claimed, burnt uint64) error
	// UpdatePaused writes the pause flag without touching any other field.
	UpdatePaused(ctx context.Context, paused bool) error
	// GrantRole and RevokeRole mutate the role assignments inside the store's
	// own critical section.
	GrantRole(ctx context.Context, role string, addr common.Address) error
	RevokeRole(ctx context.Context, role string, addr common.Address) error
	Close()
}
