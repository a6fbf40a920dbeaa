package application

import (
	"context"
	"time"

	"github.com/ephesafe/ephesafed/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

// watchSafes is the periodic scan driven by the scheduler. It reports
// claimable safes and unlock rounds that look stuck, it never mutates state.
func (s *service) watchSafes() {
	ctx := context.Background()
	now := time.Now().Unix()

	ids, err := s.repoManager.Safes().GetAllSafeIds(ctx)
	if err != nil {
		log.WithError(err).Warn("watcher: failed to list safes")
		return
	}

	claimable := 0
	staleRounds := 0
	for _, id := range ids {
		safe, err := s.repoManager.Safes().GetSafe(ctx, id)
		if err != nil || safe == nil {
			continue
		}
		if safe.IsActive() && safe.IsExpired(now) {
			claimable++
		}

		unlock, err := s.repoManager.Unlocks().Get(ctx, id)
		if err != nil || unlock == nil {
			continue
		}
		if unlock.Status != domain.UnlockStatusActive {
			continue
		}
		if safe.IsTerminal() {
			log.Warnf("watcher: unlock round for safe %d is stuck", id)
			staleRounds++
			continue
		}
		if s.staleUnlockAfter > 0 &&
			now-unlock.StartedAt > int64(s.staleUnlockAfter.Seconds()) {
			log.Warnf(
				"watcher: unlock round for safe %d pending since %d (%d/%d approvals)",
				id, unlock.StartedAt, unlock.ApprovalCount, safe.ApprovalsRequired,
			)
			staleRounds++
		}
	}

	if claimable > 0 {
		log.Infof("watcher: %d expired safes are claimable", claimable)
	}
	log.Debugf("watcher: scanned %d safes, %d stale rounds", len(ids), staleRounds)
}
