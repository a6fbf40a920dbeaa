package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

const unlockStoreDir = "unlocks"

type unlockRepository struct {
	store *badgerhold.Store
}

type unlockDTO struct {
	SafeId        uint64
	Status        int
	ApprovalCount uint64
	ApprovedBy    []string
	Recipient     string
	StartedAt     int64
	CompletedAt   int64
	UpdatedAt     int64
}

func NewEmergencyUnlockRepository(config ...interface{}) (domain.EmergencyUnlockRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, unlockStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open unlock store: %s", err)
	}

	return &unlockRepository{store}, nil
}

func (r *unlockRepository) Get(
	ctx context.Context, safeId uint64,
) (*domain.EmergencyUnlock, error) {
	var dto unlockDTO
	if err := r.store.Get(safeId, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toUnlock(dto), nil
}

func (r *unlockRepository) Upsert(ctx context.Context, unlock domain.EmergencyUnlock) error {
	dto := toUnlockDTO(unlock)
	dto.UpdatedAt = time.Now().UnixMilli()

	upsertFn := func() error {
		return r.store.Upsert(unlock.SafeId, dto)
	}
	if err := upsertFn(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			attempts := 1
			for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
				time.Sleep(100 * time.Millisecond)
				err = upsertFn()
				attempts++
			}
		}
		return err
	}
	return nil
}

func (r *unlockRepository) Close() {
	// nolint:all
	r.store.Close()
}

func toUnlockDTO(unlock domain.EmergencyUnlock) unlockDTO {
	approvedBy := make([]string, 0, len(unlock.ApprovedBy))
	for _, addr := range unlock.ApprovedBy {
		approvedBy = append(approvedBy, addr.Hex())
	}
	return unlockDTO{
		SafeId:        unlock.SafeId,
		Status:        int(unlock.Status),
		ApprovalCount: unlock.ApprovalCount,
		ApprovedBy:    approvedBy,
		Recipient:     unlock.Recipient.Hex(),
		StartedAt:     unlock.StartedAt,
		CompletedAt:   unlock.CompletedAt,
	}
}

func toUnlock(dto unlockDTO) *domain.EmergencyUnlock {
	approvedBy := make([]common.Address, 0, len(dto.ApprovedBy))
	for _, addr := range dto.ApprovedBy {
		approvedBy = append(approvedBy, common.HexToAddress(addr))
	}
	return &domain.EmergencyUnlock{
		SafeId:        dto.SafeId,
		Status:        domain.UnlockStatus(dto.Status),
		ApprovalCount: dto.ApprovalCount,
		ApprovedBy:    approvedBy,
		Recipient:     common.HexToAddress(dto.Recipient),
		StartedAt:     dto.StartedAt,
		CompletedAt:   dto.CompletedAt,
	}
}
