package application

import (
	"context"
	"time"

	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/ephesafe/ephesafed/internal/core/ports"
	"github.com/ephesafe/ephesafed/pkg/vaulterrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type AdminService interface {
	Pause(ctx context.Context, caller common.Address) error
	Unpause(ctx context.Context, caller common.Address) error
	GrantRole(ctx context.Context, caller common.Address, role string, addr common.Address) error
	RevokeRole(ctx context.Context, caller common.Address, role string, addr common.Address) error
	HasRole(ctx context.Context, role string, addr common.Address) (bool, error)
	Stats(ctx context.Context) (*RegistryStats, error)
}

type adminService struct {
	repoManager ports.RepoManager
}

// NewAdminService bootstraps the registry settings on first run, granting
// every role to the configured admin.
func NewAdminService(
	repoManager ports.RepoManager, admin common.Address,
) (AdminService, error) {
	ctx := context.Background()
	settings, err := repoManager.Settings().Get(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = domain.NewSettings(admin)
		if err := repoManager.Settings().Upsert(ctx, *settings); err != nil {
			return nil, err
		}
		log.Infof("registry initialized with admin %s", admin.Hex())
	}
	return &adminService{repoManager}, nil
}

func (s *adminService) Pause(ctx context.Context, caller common.Address) error {
	settings, err := s.settings(ctx)
	if err != nil {
		return err
	}
	if !settings.HasRole(domain.RolePauser, caller) {
		return vaulterrors.UNAUTHORIZED.New(
			"caller is missing %s", domain.RolePauser,
		).WithMetadata(vaulterrors.CallerMetadata{Caller: caller.Hex()})
	}
	if settings.Paused {
		return vaulterrors.INVALID_CONFIGURATION.New("registry already paused")
	}

	if err := s.repoManager.Settings().UpdatePaused(ctx, true); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}

	s.saveEvent(ctx, domain.ServicePaused{
		Id:        uuid.NewString(),
		Type:      domain.EventTypeServicePaused,
		Account:   caller,
		Timestamp: time.Now().Unix(),
	})
	log.Warnf("registry paused by %s", caller.Hex())
	return nil
}

func (s *adminService) Unpause(ctx context.Context, caller common.Address) error {
	settings, err := s.settings(ctx)
	if err != nil {
		return err
	}
	if !settings.HasRole(domain.RolePauser, caller) {
		return vaulterrors.UNAUTHORIZED.New(
			"caller is missing %s", domain.RolePauser,
		).WithMetadata(vaulterrors.CallerMetadata{Caller: caller.Hex()})
	}
	if !settings.Paused {
		return vaulterrors.INVALID_CONFIGURATION.New("registry is not paused")
	}

	if err := s.repoManager.Settings().UpdatePaused(ctx, false); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}

	s.saveEvent(ctx, domain.ServiceUnpaused{
		Id:        uuid.NewString(),
		Type:      domain.EventTypeServiceUnpaused,
		Account:   caller,
		Timestamp: time.Now().Unix(),
	})
	log.Infof("registry unpaused by %s", caller.Hex())
	return nil
}

func (s *adminService) GrantRole(
	ctx context.Context, caller common.Address, role string, addr common.Address,
) error {
	if err := s.checkRoleUpdate(ctx, caller, role); err != nil {
		return err
	}
	if err := s.repoManager.Settings().GrantRole(ctx, role, addr); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	return nil
}

func (s *adminService) RevokeRole(
	ctx context.Context, caller common.Address, role string, addr common.Address,
) error {
	if err := s.checkRoleUpdate(ctx, caller, role); err != nil {
		return err
	}
	if err := s.repoManager.Settings().RevokeRole(ctx, role, addr); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	return nil
}

func (s *adminService) HasRole(
	ctx context.Context, role string, addr common.Address,
) (bool, error) {
	settings, err := s.settings(ctx)
	if err != nil {
		return false, err
	}
	return settings.HasRole(role, addr), nil
}

func (s *adminService) Stats(ctx context.Context) (*RegistryStats, error) {
	settings, err := s.settings(ctx)
	if err != nil {
		return nil, err
	}
	return &RegistryStats{
		TotalSafes:        settings.NextSafeId - 1,
		TotalClaimedSafes: settings.TotalClaimedSafes,
		TotalBurntSafes:   settings.TotalBurntSafes,
		Paused:            settings.Paused,
	}, nil
}

func (s *adminService) checkRoleUpdate(
	ctx context.Context, caller common.Address, role string,
) error {
	if !isKnownRole(role) {
		return vaulterrors.INVALID_CONFIGURATION.New("unknown role %s", role)
	}
	settings, err := s.settings(ctx)
	if err != nil {
		return err
	}
	if !settings.HasRole(domain.RoleAdmin, caller) {
		return vaulterrors.UNAUTHORIZED.New(
			"caller is missing %s", domain.RoleAdmin,
		).WithMetadata(vaulterrors.CallerMetadata{Caller: caller.Hex()})
	}
	return nil
}

func (s *adminService) settings(ctx context.Context) (*domain.Settings, error) {
	settings, err := s.repoManager.Settings().Get(ctx)
	if err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	if settings == nil {
		return nil, vaulterrors.INTERNAL_ERROR.New("registry not initialized")
	}
	return settings, nil
}

func (s *adminService) saveEvent(ctx context.Context, event domain.Event) {
	if err := s.repoManager.Events().Save(
		ctx, domain.SafeTopic, "registry", []domain.Event{event},
	); err != nil {
		log.WithError(err).Warn("failed to save registry event")
	}
}

func isKnownRole(role string) bool {
	switch role {
	case domain.RoleAdmin, domain.RoleMinter, domain.RolePauser, domain.RoleUpgrader:
		return true
	default:
		return false
	}
}
