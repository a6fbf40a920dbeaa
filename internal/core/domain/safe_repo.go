package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type SafeRepository interface {
	AddSafe(ctx context.Context, safe Safe) error
	GetSafe(ctx context.Context, id uint64) (*Safe, error)
	UpdateSafe(ctx context.Context, safe Safe) error
	GetSafesByOwner(ctx context.Context, owner common.Address) ([]Safe, error)
	GetSafesByIssuer(ctx context.Context, issuer common.Address) ([]Safe, error)
	GetSafesByAuthorizer(ctx context.Context, authorizer common.Address) ([]Safe, error)
	GetAllSafeIds(ctx context.Context) ([]uint64, error)
	Close()
}
