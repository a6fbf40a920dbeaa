package db

import (
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/ephesafe/ephesafed/internal/core/ports"
	badgerdb "github.com/ephesafe/ephesafed/internal/infrastructure/db/badger"
	sqlitedb "github.com/ephesafe/ephesafed/internal/infrastructure/db/sqlite"
	watermilldb "github.com/ephesafe/ephesafed/internal/infrastructure/db/watermill"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite/migration/*
var migrations embed.FS

var (
	safeStoreTypes = map[string]func(...interface{}) (domain.SafeRepository, error){
		"badger": badgerdb.NewSafeRepository,
		"sqlite": sqlitedb.NewSafeRepository,
	}
	unlockStoreTypes = map[string]func(...interface{}) (domain.EmergencyUnlockRepository, error){
		"badger": badgerdb.NewEmergencyUnlockRepository,
		"sqlite": sqlitedb.NewEmergencyUnlockRepository,
	}
	settingsStoreTypes = map[string]func(...interface{}) (domain.SettingsRepository, error){
		"badger": badgerdb.NewSettingsRepository,
		"sqlite": sqlitedb.NewSettingsRepository,
	}
)

const (
	sqliteDbFile = "sqlite.db"
)

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}
}

type service struct {
	eventStore    domain.EventRepository
	safeStore     domain.SafeRepository
	unlockStore   domain.EmergencyUnlockRepository
	settingsStore domain.SettingsRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	safeStoreFactory, ok := safeStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("safe store type not supported")
	}
	unlockStoreFactory, ok := unlockStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}
	settingsStoreFactory, ok := settingsStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	var eventStore domain.EventRepository
	var safeStore domain.SafeRepository
	var unlockStore domain.EmergencyUnlockRepository
	var settingsStore domain.SettingsRepository
	var err error

	switch config.EventStoreType {
	case "badger":
		eventStore, err = badgerdb.NewEventRepository(config.EventStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open event store: %s", err)
		}
	case "channel":
		pubsub := gochannel.NewGoChannel(
			gochannel.Config{}, watermill.NewStdLogger(false, false),
		)
		eventStore = watermilldb.NewWatermillEventRepository(pubsub)
	default:
		return nil, fmt.Errorf("unknown event store db type")
	}

	switch config.DataStoreType {
	case "badger":
		safeStore, err = safeStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open safe store: %s", err)
		}
		unlockStore, err = unlockStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open unlock store: %s", err)
		}
		settingsStore, err = settingsStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open settings store: %s", err)
		}

	case "sqlite":
		if len(config.DataStoreConfig) != 1 {
			return nil, fmt.Errorf("invalid data store config")
		}

		baseDir, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}

		dbFile := filepath.Join(baseDir, sqliteDbFile)
		db, err := sqlitedb.OpenDb(dbFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %s", err)
		}

		driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init driver: %s", err)
		}

		source, err := iofs.New(migrations, "sqlite/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed migrations: %s", err)
		}

		m, err := migrate.NewWithInstance("iofs", source, "ephesafedb", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %s", err)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run migrations: %s", err)
		}

		safeStore, err = safeStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open safe store: %s", err)
		}
		unlockStore, err = unlockStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open unlock store: %s", err)
		}
		settingsStore, err = settingsStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open settings store: %s", err)
		}
	}

	return &service{
		eventStore:    eventStore,
		safeStore:     safeStore,
		unlockStore:   unlockStore,
		settingsStore: settingsStore,
	}, nil
}

func (s *service) Events() domain.EventRepository {
	return s.eventStore
}

func (s *service) Safes() domain.SafeRepository {
	return s.safeStore
}

func (s *service) Unlocks() domain.EmergencyUnlockRepository {
	return s.unlockStore
}

func (s *service) Settings() domain.SettingsRepository {
	return s.settingsStore
}

func (s *service) Close() {
	s.eventStore.Close()
	s.safeStore.Close()
	s.unlockStore.Close()
	s.settingsStore.Close()
}
