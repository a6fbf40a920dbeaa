package application

import (
	"context"
	"fmt"
	"time"

	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/ephesafe/ephesafed/internal/core/ports"
	"github.com/ephesafe/ephesafed/pkg/vaulterrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"
)

const maxBasisPoints = 10000

type Service interface {
	Start() error
	Stop()

	MintSafe(ctx context.Context, request MintRequest) (uint64, error)
	ClaimSafe(ctx context.Context, safeId uint64, caller common.Address) error
	ClaimSafeAtAddress(
		ctx context.Context, safeId uint64, caller, claimAddress common.Address,
	) error
	DestroySafe(ctx context.Context, safeId uint64, caller common.Address) error
	ApproveOrExecuteEmergencyUnlock(
		ctx context.Context, safeId uint64, caller, recipient common.Address,
	) (*EmergencyUnlockInfo, error)

	GetSafeInfo(ctx context.Context, safeId uint64) (*SafeInfo, error)
	EmergencyUnlockState(ctx context.Context, safeId uint64) (*UnlockState, error)
	GetAllSafes(ctx context.Context) ([]uint64, error)
	GetAllSafesOfOwner(ctx context.Context, owner common.Address) ([]SafeInfo, error)
	GetIssuedSafes(ctx context.Context, issuer common.Address) ([]SafeInfo, error)
	GetAllMultiSafeAuthorityTokens(
		ctx context.Context, authorizer common.Address,
	) ([]SafeInfo, error)

	UpdateTokenUri(ctx context.Context, safeId uint64, caller common.Address, uri string) error
	UpdateTokenIssuer(
		ctx context.Context, safeId uint64, caller, issuer common.Address,
	) error
	AddMultiSafeAuthorizer(
		ctx context.Context, safeId uint64, caller, authorizer common.Address,
	) error
}

type service struct {
	repoManager ports.RepoManager
	custody     ports.CustodyService
	cache       ports.LiveStore
	scheduler   ports.SchedulerService

	destroyRewardBps uint64
	watchInterval    time.Duration
	staleUnlockAfter time.Duration
}

func NewService(
	repoManager ports.RepoManager,
	custody ports.CustodyService,
	cache ports.LiveStore,
	scheduler ports.SchedulerService,
	destroyRewardBps uint64,
	watchInterval, staleUnlockAfter time.Duration,
) (Service, error) {
	if destroyRewardBps > maxBasisPoints {
		return nil, fmt.Errorf(
			"destroy reward out of range: %d basis points", destroyRewardBps,
		)
	}
	return &service{
		repoManager:      repoManager,
		custody:          custody,
		cache:            cache,
		scheduler:        scheduler,
		destroyRewardBps: destroyRewardBps,
		watchInterval:    watchInterval,
		staleUnlockAfter: staleUnlockAfter,
	}, nil
}

func (s *service) Start() error {
	if s.watchInterval > 0 {
		if err := s.scheduler.ScheduleTaskRepeated(s.watchInterval, s.watchSafes); err != nil {
			return fmt.Errorf("failed to schedule safe watcher: %s", err)
		}
	}
	s.scheduler.Start()
	return nil
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) MintSafe(ctx context.Context, request MintRequest) (uint64, error) {
	if err := s.checkNotPaused(ctx); err != nil {
		return 0, err
	}
	if err := validateMintRequest(request); err != nil {
		return 0, err
	}

	settings, err := s.getSettings(ctx)
	if err != nil {
		return 0, err
	}
	if !settings.HasRole(domain.RoleMinter, request.Caller) {
		return 0, vaulterrors.UNAUTHORIZED.New(
			"caller is missing %s", domain.RoleMinter,
		).WithMetadata(vaulterrors.CallerMetadata{Caller: request.Caller.Hex()})
	}

	safeId, err := s.repoManager.Settings().NextSafeId(ctx)
	if err != nil {
		return 0, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}

	if err := s.cache.SafeLocks().Lock(ctx, safeId); err != nil {
		return 0, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	defer s.cache.SafeLocks().Unlock(ctx, safeId)

	if err := s.custody.Escrow(
		ctx, request.Caller, request.TokenAddress, request.Amount, request.Value,
	); err != nil {
		return 0, err
	}

	now := time.Now().Unix()
	safe := domain.Safe{
		Id:                 safeId,
		Owner:              request.Owner,
		Issuer:             request.Issuer,
		Expiry:             request.Expiry,
		Amount:             new(uint256.Int).Set(request.Amount),
		TokenAddress:       request.TokenAddress,
		Status:             domain.SafeStatusActive,
		TokenUri:           request.TokenUri,
		Metadata:           request.Metadata,
		MultiSafeAddresses: request.MultiSafeAddresses,
		ApprovalsRequired:  request.ApprovalsRequired,
		CreatedAt:          now,
	}
	if err := s.repoManager.Safes().AddSafe(ctx, safe); err != nil {
		// put the escrowed funds back before surfacing the failure
		if releaseErr := s.custody.Release(
			ctx, request.Caller, request.TokenAddress, request.Amount,
		); releaseErr != nil {
			log.WithError(releaseErr).Errorf(
				"failed to revert escrow for safe %d", safeId,
			)
		}
		return 0, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}

	s.saveEvents(ctx, safeId, domain.SafeMinted{
		Id:           uuid.NewString(),
		Type:         domain.EventTypeSafeMinted,
		SafeId:       safeId,
		Owner:        safe.Owner,
		Issuer:       safe.Issuer,
		TokenAddress: safe.TokenAddress,
		Amount:       safe.Amount.Dec(),
		Expiry:       safe.Expiry,
		TokenUri:     safe.TokenUri,
		Timestamp:    now,
	})
	log.Debugf("minted safe %d for owner %s", safeId, safe.Owner.Hex())
	return safeId, nil
}

func (s *service) ClaimSafe(
	ctx context.Context, safeId uint64, caller common.Address,
) error {
	return s.claim(ctx, safeId, caller, nil)
}

func (s *service) ClaimSafeAtAddress(
	ctx context.Context, safeId uint64, caller, claimAddress common.Address,
) error {
	return s.claim(ctx, safeId, caller, &claimAddress)
}

func (s *service) claim(
	ctx context.Context, safeId uint64, caller common.Address, claimAddress *common.Address,
) error {
	if err := s.checkNotPaused(ctx); err != nil {
		return err
	}

	if err := s.cache.SafeLocks().Lock(ctx, safeId); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	defer s.cache.SafeLocks().Unlock(ctx, safeId)

	safe, err := s.getActiveSafe(ctx, safeId)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	if !safe.IsExpired(now) {
		return vaulterrors.NOT_EXPIRED.New(
			"safe %d is locked until %d", safeId, safe.Expiry,
		).WithMetadata(vaulterrors.ExpiryMetadata{
			SafeId: safeId, Expiry: safe.Expiry, Now: now,
		})
	}
	if caller != safe.Owner {
		return vaulterrors.UNAUTHORIZED.New(
			"only the owner can claim safe %d", safeId,
		).WithMetadata(vaulterrors.CallerMetadata{SafeId: safeId, Caller: caller.Hex()})
	}

	claimedTo := safe.Owner
	if claimAddress != nil {
		claimedTo = *claimAddress
	}
	if err := s.custody.Release(ctx, claimedTo, safe.TokenAddress, safe.Amount); err != nil {
		return err
	}

	safe.Status = domain.SafeStatusBurnClaimed
	if err := s.repoManager.Safes().UpdateSafe(ctx, *safe); err != nil {
		// take the payout back so the safe stays claimable exactly once
		s.reclaim(ctx, claimedTo, safe.TokenAddress, safe.Amount)
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	s.bumpCounters(ctx, 1, 0)

	s.saveEvents(ctx, safeId, domain.SafeClaimed{
		Id:        uuid.NewString(),
		Type:      domain.EventTypeSafeClaimed,
		SafeId:    safeId,
		Claimer:   caller,
		ClaimedTo: claimedTo,
		Amount:    safe.Amount.Dec(),
		Timestamp: now,
	})
	log.Debugf("safe %d claimed to %s", safeId, claimedTo.Hex())
	return nil
}

func (s *service) DestroySafe(
	ctx context.Context, safeId uint64, caller common.Address,
) error {
	if err := s.checkNotPaused(ctx); err != nil {
		return err
	}

	if err := s.cache.SafeLocks().Lock(ctx, safeId); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	defer s.cache.SafeLocks().Unlock(ctx, safeId)

	safe, err := s.getActiveSafe(ctx, safeId)
	if err != nil {
		return err
	}
	if caller != safe.Owner {
		return vaulterrors.UNAUTHORIZED.New(
			"only the owner can destroy safe %d", safeId,
		).WithMetadata(vaulterrors.CallerMetadata{SafeId: safeId, Caller: caller.Hex()})
	}

	reward := new(uint256.Int).Mul(safe.Amount, uint256.NewInt(s.destroyRewardBps))
	reward.Div(reward, uint256.NewInt(maxBasisPoints))
	remainder := new(uint256.Int).Sub(safe.Amount, reward)

	if err := s.custody.Release(ctx, caller, safe.TokenAddress, reward); err != nil {
		return err
	}
	if err := s.custody.Release(ctx, safe.Owner, safe.TokenAddress, remainder); err != nil {
		s.reclaim(ctx, caller, safe.TokenAddress, reward)
		return err
	}

	safe.Status = domain.SafeStatusBurnClaimed
	if err := s.repoManager.Safes().UpdateSafe(ctx, *safe); err != nil {
		// both payouts come back so a retry starts from scratch
		s.reclaim(ctx, caller, safe.TokenAddress, reward)
		s.reclaim(ctx, safe.Owner, safe.TokenAddress, remainder)
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	s.bumpCounters(ctx, 0, 1)

	s.saveEvents(ctx, safeId, domain.SafeDestroyed{
		Id:            uuid.NewString(),
		Type:          domain.EventTypeSafeDestroyed,
		SafeId:        safeId,
		Destroyer:     caller,
		DestroyReward: reward.Dec(),
		Timestamp:     time.Now().Unix(),
	})
	log.Debugf("safe %d destroyed, reward %s", safeId, reward.Dec())
	return nil
}

func (s *service) ApproveOrExecuteEmergencyUnlock(
	ctx context.Context, safeId uint64, caller, recipient common.Address,
) (*EmergencyUnlockInfo, error) {
	if err := s.checkNotPaused(ctx); err != nil {
		return nil, err
	}

	if err := s.cache.SafeLocks().Lock(ctx, safeId); err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	defer s.cache.SafeLocks().Unlock(ctx, safeId)

	safe, err := s.getActiveSafe(ctx, safeId)
	if err != nil {
		return nil, err
	}
	if !safe.CanApproveUnlock(caller) {
		return nil, vaulterrors.UNAUTHORIZED.New(
			"caller cannot approve an emergency unlock for safe %d", safeId,
		).WithMetadata(vaulterrors.CallerMetadata{SafeId: safeId, Caller: caller.Hex()})
	}

	now := time.Now().Unix()
	unlock, err := s.repoManager.Unlocks().Get(ctx, safeId)
	if err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	if unlock == nil {
		// first approval opens the round and binds the recipient, later
		// nominations are ignored
		unlock = domain.NewEmergencyUnlock(safeId, recipient, now)
	}
	if unlock.Status == domain.UnlockStatusCompleted {
		return nil, vaulterrors.THRESHOLD_ALREADY_MET.New(
			"emergency unlock for safe %d already executed", safeId,
		).WithMetadata(vaulterrors.ThresholdMetadata{
			SafeId:        safeId,
			ApprovalCount: unlock.ApprovalCount,
			Required:      safe.ApprovalsRequired,
		})
	}
	if unlock.HasApproved(caller) {
		return nil, vaulterrors.DUPLICATE_APPROVAL.New(
			"caller already approved the unlock of safe %d", safeId,
		).WithMetadata(vaulterrors.CallerMetadata{SafeId: safeId, Caller: caller.Hex()})
	}

	unlock.Approve(caller)

	if unlock.ApprovalCount >= safe.ApprovalsRequired {
		if err := s.custody.Release(
			ctx, unlock.Recipient, safe.TokenAddress, safe.Amount,
		); err != nil {
			return nil, err
		}

		unlock.Complete(now)
		safe.Status = domain.SafeStatusEmergencyUnlocked
		if err := s.repoManager.Safes().UpdateSafe(ctx, *safe); err != nil {
			s.reclaim(ctx, unlock.Recipient, safe.TokenAddress, safe.Amount)
			return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
		}
		if err := s.repoManager.Unlocks().Upsert(ctx, *unlock); err != nil {
			// reactivate the safe and take the payout back so a retry can
			// re-run the round
			safe.Status = domain.SafeStatusActive
			if revertErr := s.repoManager.Safes().UpdateSafe(ctx, *safe); revertErr != nil {
				log.WithError(revertErr).Errorf("failed to reactivate safe %d", safeId)
			}
			s.reclaim(ctx, unlock.Recipient, safe.TokenAddress, safe.Amount)
			return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
		}

		s.saveEvents(ctx, safeId, domain.EmergencyUnlockExecuted{
			Id:        uuid.NewString(),
			Type:      domain.EventTypeEmergencyUnlockExecuted,
			SafeId:    safeId,
			Recipient: unlock.Recipient,
			Amount:    safe.Amount.Dec(),
			Timestamp: now,
		})
		log.Infof(
			"emergency unlock executed for safe %d, recipient %s",
			safeId, unlock.Recipient.Hex(),
		)
		info := newUnlockInfo(*unlock)
		return &info, nil
	}

	if err := s.repoManager.Unlocks().Upsert(ctx, *unlock); err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}

	s.saveEvents(ctx, safeId, domain.EmergencyUnlockApproved{
		Id:            uuid.NewString(),
		Type:          domain.EventTypeEmergencyUnlockApproved,
		SafeId:        safeId,
		Approver:      caller,
		Recipient:     unlock.Recipient,
		ApprovalCount: unlock.ApprovalCount,
		Timestamp:     now,
	})
	info := newUnlockInfo(*unlock)
	return &info, nil
}

func (s *service) GetSafeInfo(ctx context.Context, safeId uint64) (*SafeInfo, error) {
	safe, err := s.getSafe(ctx, safeId)
	if err != nil {
		return nil, err
	}
	unlock, err := s.repoManager.Unlocks().Get(ctx, safeId)
	if err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	info := newSafeInfo(*safe, unlock)
	return &info, nil
}

func (s *service) EmergencyUnlockState(
	ctx context.Context, safeId uint64,
) (*UnlockState, error) {
	safe, err := s.getSafe(ctx, safeId)
	if err != nil {
		return nil, err
	}
	unlock, err := s.repoManager.Unlocks().Get(ctx, safeId)
	if err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	if unlock == nil {
		return &UnlockState{Status: domain.UnlockStatusNone.String()}, nil
	}

	status := unlock.Status
	if status == domain.UnlockStatusActive && safe.IsTerminal() {
		status = domain.UnlockStatusStuck
	}
	return &UnlockState{
		Status:        status.String(),
		ApprovalCount: unlock.ApprovalCount,
	}, nil
}

func (s *service) GetAllSafes(ctx context.Context) ([]uint64, error) {
	ids, err := s.repoManager.Safes().GetAllSafeIds(ctx)
	if err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	return ids, nil
}

func (s *service) GetAllSafesOfOwner(
	ctx context.Context, owner common.Address,
) ([]SafeInfo, error) {
	safes, err := s.repoManager.Safes().GetSafesByOwner(ctx, owner)
	if err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	return toSafeInfoList(safes), nil
}

func (s *service) GetIssuedSafes(
	ctx context.Context, issuer common.Address,
) ([]SafeInfo, error) {
	safes, err := s.repoManager.Safes().GetSafesByIssuer(ctx, issuer)
	if err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	return toSafeInfoList(safes), nil
}

func (s *service) GetAllMultiSafeAuthorityTokens(
	ctx context.Context, authorizer common.Address,
) ([]SafeInfo, error) {
	safes, err := s.repoManager.Safes().GetSafesByAuthorizer(ctx, authorizer)
	if err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	return toSafeInfoList(safes), nil
}

func (s *service) UpdateTokenUri(
	ctx context.Context, safeId uint64, caller common.Address, uri string,
) error {
	if err := s.checkNotPaused(ctx); err != nil {
		return err
	}
	if err := s.checkAdmin(ctx, safeId, caller); err != nil {
		return err
	}

	if err := s.cache.SafeLocks().Lock(ctx, safeId); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	defer s.cache.SafeLocks().Unlock(ctx, safeId)

	safe, err := s.getSafe(ctx, safeId)
	if err != nil {
		return err
	}
	safe.TokenUri = uri
	if err := s.repoManager.Safes().UpdateSafe(ctx, *safe); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	return nil
}

func (s *service) UpdateTokenIssuer(
	ctx context.Context, safeId uint64, caller, issuer common.Address,
) error {
	if err := s.checkNotPaused(ctx); err != nil {
		return err
	}
	if err := s.checkAdmin(ctx, safeId, caller); err != nil {
		return err
	}

	if err := s.cache.SafeLocks().Lock(ctx, safeId); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	defer s.cache.SafeLocks().Unlock(ctx, safeId)

	safe, err := s.getSafe(ctx, safeId)
	if err != nil {
		return err
	}
	safe.Issuer = issuer
	if err := s.repoManager.Safes().UpdateSafe(ctx, *safe); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	return nil
}

func (s *service) AddMultiSafeAuthorizer(
	ctx context.Context, safeId uint64, caller, authorizer common.Address,
) error {
	if err := s.checkNotPaused(ctx); err != nil {
		return err
	}

	if err := s.cache.SafeLocks().Lock(ctx, safeId); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	defer s.cache.SafeLocks().Unlock(ctx, safeId)

	safe, err := s.getActiveSafe(ctx, safeId)
	if err != nil {
		return err
	}
	if caller != safe.Owner {
		return vaulterrors.UNAUTHORIZED.New(
			"only the owner can add an authorizer to safe %d", safeId,
		).WithMetadata(vaulterrors.CallerMetadata{SafeId: safeId, Caller: caller.Hex()})
	}
	if safe.HasAuthorizer(authorizer) {
		return vaulterrors.INVALID_CONFIGURATION.New(
			"authorizer %s already added to safe %d", authorizer.Hex(), safeId,
		)
	}

	// the approver set must not move once a round has started
	unlock, err := s.repoManager.Unlocks().Get(ctx, safeId)
	if err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	if unlock != nil {
		return vaulterrors.INVALID_CONFIGURATION.New(
			"emergency unlock already started for safe %d", safeId,
		)
	}

	safe.MultiSafeAddresses = append(safe.MultiSafeAddresses, authorizer)
	if err := s.repoManager.Safes().UpdateSafe(ctx, *safe); err != nil {
		return vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	return nil
}

func (s *service) checkNotPaused(ctx context.Context) error {
	settings, err := s.getSettings(ctx)
	if err != nil {
		return err
	}
	if settings.Paused {
		return vaulterrors.SERVICE_PAUSED.New("registry is paused")
	}
	return nil
}

func (s *service) checkAdmin(
	ctx context.Context, safeId uint64, caller common.Address,
) error {
	settings, err := s.getSettings(ctx)
	if err != nil {
		return err
	}
	if !settings.HasRole(domain.RoleAdmin, caller) {
		return vaulterrors.UNAUTHORIZED.New(
			"caller is missing %s", domain.RoleAdmin,
		).WithMetadata(vaulterrors.CallerMetadata{SafeId: safeId, Caller: caller.Hex()})
	}
	return nil
}

func (s *service) getSettings(ctx context.Context) (*domain.Settings, error) {
	settings, err := s.repoManager.Settings().Get(ctx)
	if err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	if settings == nil {
		return nil, vaulterrors.INTERNAL_ERROR.New("registry not initialized")
	}
	return settings, nil
}

func (s *service) getSafe(ctx context.Context, safeId uint64) (*domain.Safe, error) {
	safe, err := s.repoManager.Safes().GetSafe(ctx, safeId)
	if err != nil {
		return nil, vaulterrors.INTERNAL_ERROR.Wrap(err)
	}
	if safe == nil {
		return nil, vaulterrors.SAFE_NOT_FOUND.New(
			"safe %d not found", safeId,
		).WithMetadata(vaulterrors.SafeMetadata{SafeId: safeId})
	}
	return safe, nil
}

func (s *service) getActiveSafe(ctx context.Context, safeId uint64) (*domain.Safe, error) {
	safe, err := s.getSafe(ctx, safeId)
	if err != nil {
		return nil, err
	}
	if safe.IsTerminal() {
		return nil, vaulterrors.ALREADY_TERMINAL.New(
			"safe %d is %s", safeId, safe.Status,
		).WithMetadata(vaulterrors.SafeMetadata{SafeId: safeId})
	}
	return safe, nil
}

// bumpCounters is best effort: the funds moved and the terminal status is
// committed by the time it runs, a stale total must not fail the operation.
func (s *service) bumpCounters(ctx context.Context, claimed, burnt uint64) {
	if err := s.repoManager.Settings().IncrementCounters(ctx, claimed, burnt); err != nil {
		log.WithError(err).Warn("failed to update registry counters")
	}
}

func (s *service) reclaim(
	ctx context.Context, from common.Address, token common.Address, amount *uint256.Int,
) {
	if err := s.custody.Reclaim(ctx, from, token, amount); err != nil {
		log.WithError(err).Errorf(
			"failed to reclaim %s from %s", amount.Dec(), from.Hex(),
		)
	}
}

func (s *service) saveEvents(ctx context.Context, safeId uint64, events ...domain.Event) {
	if err := s.repoManager.Events().Save(
		ctx, domain.SafeTopic, fmt.Sprintf("%d", safeId), events,
	); err != nil {
		log.WithError(err).Warnf("failed to save events for safe %d", safeId)
	}
}

func validateMintRequest(request MintRequest) error {
	if request.Owner == (common.Address{}) {
		return vaulterrors.INVALID_CONFIGURATION.New("owner address is required")
	}
	if request.Amount == nil || request.Amount.IsZero() {
		return vaulterrors.INVALID_CONFIGURATION.New("amount must be greater than zero")
	}
	if request.ApprovalsRequired < 1 {
		return vaulterrors.INVALID_CONFIGURATION.New(
			"at least one approval is required",
		)
	}
	if len(request.MultiSafeAddresses) > 0 &&
		request.ApprovalsRequired > uint64(len(request.MultiSafeAddresses)) {
		return vaulterrors.INVALID_CONFIGURATION.New(
			"approval threshold %d exceeds the %d registered authorizers",
			request.ApprovalsRequired, len(request.MultiSafeAddresses),
		).WithMetadata(map[string]any{
			"approvals_required":   request.ApprovalsRequired,
			"multi_safe_addresses": len(request.MultiSafeAddresses),
		})
	}
	return nil
}

func toSafeInfoList(safes []domain.Safe) []SafeInfo {
	infos := make([]SafeInfo, 0, len(safes))
	for _, safe := range safes {
		infos = append(infos, newSafeInfo(safe, nil))
	}
	return infos
}
