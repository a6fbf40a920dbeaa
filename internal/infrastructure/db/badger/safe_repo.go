package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/timshannon/badgerhold/v4"
)

const safeStoreDir = "safes"

type safeRepository struct {
	store *badgerhold.Store
}

// safeDTO flattens addresses and the amount to strings so badgerhold can
// index and query them.
type safeDTO struct {
	Id                 uint64
	Owner              string
	Issuer             string
	Expiry             int64
	Amount             string
	TokenAddress       string
	Status             int
	TokenUri           string
	Metadata           string
	MultiSafeAddresses []string
	ApprovalsRequired  uint64
	CreatedAt          int64
	UpdatedAt          int64
}

func NewSafeRepository(config ...interface{}) (domain.SafeRepository, error) {
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
		dir = filepath.Join(baseDir, safeStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open safe store: %s", err)
	}

	return &safeRepository{store}, nil
}

func (r *safeRepository) AddSafe(ctx context.Context, safe domain.Safe) error {
	dto := toSafeDTO(safe)
	dto.UpdatedAt = time.Now().UnixMilli()

	insertFn := func() error {
		return r.store.Insert(safe.Id, dto)
	}
	if err := insertFn(); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("safe %d already exists", safe.Id)
		}
		if errors.Is(err, badger.ErrConflict) {
			attempts := 1
			for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
				time.Sleep(100 * time.Millisecond)
				err = insertFn()
				attempts++
			}
		}
		return err
	}
	return nil
}

func (r *safeRepository) GetSafe(ctx context.Context, id uint64) (*domain.Safe, error) {
	var dto safeDTO
	if err := r.store.Get(id, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	safe, err := toSafe(dto)
	if err != nil {
		return nil, err
	}
	return safe, nil
}

func (r *safeRepository) UpdateSafe(ctx context.Context, safe domain.Safe) error {
	dto := toSafeDTO(safe)
	dto.UpdatedAt = time.Now().UnixMilli()

	updateFn := func() error {
		return r.store.Update(safe.Id, dto)
	}
	if err := updateFn(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			attempts := 1
			for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
				time.Sleep(100 * time.Millisecond)
				err = updateFn()
				attempts++
			}
		}
		return err
	}
	return nil
}

func (r *safeRepository) GetSafesByOwner(
	ctx context.Context, owner common.Address,
) ([]domain.Safe, error) {
	return r.findSafes(badgerhold.Where("Owner").Eq(owner.Hex()))
}

func (r *safeRepository) GetSafesByIssuer(
	ctx context.Context, issuer common.Address,
) ([]domain.Safe, error) {
	return r.findSafes(badgerhold.Where("Issuer").Eq(issuer.Hex()))
}

func (r *safeRepository) GetSafesByAuthorizer(
	ctx context.Context, authorizer common.Address,
) ([]domain.Safe, error) {
	return r.findSafes(badgerhold.Where("MultiSafeAddresses").Contains(authorizer.Hex()))
}

func (r *safeRepository) GetAllSafeIds(ctx context.Context) ([]uint64, error) {
	safes, err := r.findSafes(&badgerhold.Query{})
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(safes))
	for _, safe := range safes {
		ids = append(ids, safe.Id)
	}
	return ids, nil
}

func (r *safeRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (r *safeRepository) findSafes(query *badgerhold.Query) ([]domain.Safe, error) {
	dtos := make([]safeDTO, 0)
	if err := r.store.Find(&dtos, query); err != nil {
		return nil, err
	}
	sort.SliceStable(dtos, func(i, j int) bool {
		return dtos[i].Id < dtos[j].Id
	})

	safes := make([]domain.Safe, 0, len(dtos))
	for _, dto := range dtos {
		safe, err := toSafe(dto)
		if err != nil {
			return nil, err
		}
		safes = append(safes, *safe)
	}
	return safes, nil
}

func toSafeDTO(safe domain.Safe) safeDTO {
	authorizers := make([]string, 0, len(safe.MultiSafeAddresses))
	for _, addr := range safe.MultiSafeAddresses {
		authorizers = append(authorizers, addr.Hex())
	}
	amount := "0"
	if safe.Amount != nil {
		amount = safe.Amount.Dec()
	}
	return safeDTO{
		Id:                 safe.Id,
		Owner:              safe.Owner.Hex(),
		Issuer:             safe.Issuer.Hex(),
		Expiry:             safe.Expiry,
		Amount:             amount,
		TokenAddress:       safe.TokenAddress.Hex(),
		Status:             int(safe.Status),
		TokenUri:           safe.TokenUri,
		Metadata:           safe.Metadata,
		MultiSafeAddresses: authorizers,
		ApprovalsRequired:  safe.ApprovalsRequired,
		CreatedAt:          safe.CreatedAt,
	}
}

func toSafe(dto safeDTO) (*domain.Safe, error) {
	amount, err := uint256.FromDecimal(dto.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount for safe %d: %s", dto.Id, err)
	}
	authorizers := make([]common.Address, 0, len(dto.MultiSafeAddresses))
	for _, addr := range dto.MultiSafeAddresses {
		authorizers = append(authorizers, common.HexToAddress(addr))
	}
	return &domain.Safe{
		Id:                 dto.Id,
		Owner:              common.HexToAddress(dto.Owner),
		Issuer:             common.HexToAddress(dto.Issuer),
		Expiry:             dto.Expiry,
		Amount:             amount,
		TokenAddress:       common.HexToAddress(dto.TokenAddress),
		Status:             domain.SafeStatus(dto.Status),
		TokenUri:           dto.TokenUri,
		Metadata:           dto.Metadata,
		MultiSafeAddresses: authorizers,
		ApprovalsRequired:  dto.ApprovalsRequired,
		CreatedAt:          dto.CreatedAt,
	}, nil
}
