package ports

import "github.com/ephesafe/ephesafed/internal/core/domain"

type RepoManager interface {
	Events() domain.EventRepository
	Safes() domain.SafeRepository
	Unlocks() domain.EmergencyUnlockRepository
	Settings() domain.SettingsRepository
	Close()
}
