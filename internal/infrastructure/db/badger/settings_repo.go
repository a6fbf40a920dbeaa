package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

const (
	settingsStoreDir = "settings"
	settingsKey      = "settings"
)

type settingsRepository struct {
	store *badgerhold.Store
	// guards every read-modify-write of the singleton record
	lock sync.Mutex
}

type settingsDTO struct {
	Paused            bool
	Roles             map[string][]string
	NextSafeId        uint64
	TotalClaimedSafes uint64
	TotalBurntSafes   uint64
	UpdatedAt         int64
}

func NewSettingsRepository(config ...interface{}) (domain.SettingsRepository, error) {
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
		dir = filepath.Join(baseDir, settingsStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %s", err)
	}

	return &settingsRepository{store: store}, nil
}

func (r *settingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	return r.get()
}

func (r *settingsRepository) Upsert(ctx context.Context, settings domain.Settings) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.upsert(settings)
}

func (r *settingsRepository) NextSafeId(ctx context.Context) (uint64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	settings, err := r.get()
	if err != nil {
		return 0, err
	}
	if settings == nil {
		return 0, fmt.Errorf("settings not initialized")
	}

	id := settings.NextSafeId
	settings.NextSafeId++
	if err := r.upsert(*settings); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *settingsRepository) IncrementCounters(
	ctx context.Context, claimed, burnt uint64,
) error {
	return r.update(func(settings *domain.Settings) {
		settings.TotalClaimedSafes += claimed
		settings.TotalBurntSafes += burnt
	})
}

func (r *settingsRepository) UpdatePaused(ctx context.Context, paused bool) error {
	return r.update(func(settings *domain.Settings) {
		settings.Paused = paused
	})
}

func (r *settingsRepository) GrantRole(
	ctx context.Context, role string, addr common.Address,
) error {
	return r.update(func(settings *domain.Settings) {
		settings.GrantRole(role, addr)
	})
}

func (r *settingsRepository) RevokeRole(
	ctx context.Context, role string, addr common.Address,
) error {
	return r.update(func(settings *domain.Settings) {
		settings.RevokeRole(role, addr)
	})
}

func (r *settingsRepository) update(apply func(*domain.Settings)) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	settings, err := r.get()
	if err != nil {
		return err
	}
	if settings == nil {
		return fmt.Errorf("settings not initialized")
	}
	apply(settings)
	return r.upsert(*settings)
}

func (r *settingsRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (r *settingsRepository) get() (*domain.Settings, error) {
	var dto settingsDTO
	err := r.store.Get(settingsKey, &dto)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return toSettings(dto), nil
}

func (r *settingsRepository) upsert(settings domain.Settings) error {
	dto := toSettingsDTO(settings)
	dto.UpdatedAt = time.Now().UnixMilli()

	if err := r.store.Upsert(settingsKey, &dto); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			attempts := 1
			for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
				time.Sleep(100 * time.Millisecond)
				err = r.store.Upsert(settingsKey, &dto)
				attempts++
			}
		}
		return err
	}
	return nil
}

func toSettingsDTO(settings domain.Settings) settingsDTO {
	roles := make(map[string][]string, len(settings.Roles))
	for role, members := range settings.Roles {
		addrs := make([]string, 0, len(members))
		for _, addr := range members {
			addrs = append(addrs, addr.Hex())
		}
		roles[role] = addrs
	}
	return settingsDTO{
		Paused:            settings.Paused,
		Roles:             roles,
		NextSafeId:        settings.NextSafeId,
		TotalClaimedSafes: settings.TotalClaimedSafes,
		TotalBurntSafes:   settings.TotalBurntSafes,
	}
}

func toSettings(dto settingsDTO) *domain.Settings {
	roles := make(map[string][]common.Address, len(dto.Roles))
	for role, members := range dto.Roles {
		addrs := make([]common.Address, 0, len(members))
		for _, addr := range members {
			addrs = append(addrs, common.HexToAddress(addr))
		}
		roles[role] = addrs
	}
	return &domain.Settings{
		Paused:            dto.Paused,
		Roles:             roles,
		NextSafeId:        dto.NextSafeId,
		TotalClaimedSafes: dto.TotalClaimedSafes,
		TotalBurntSafes:   dto.TotalBurntSafes,
	}
}
