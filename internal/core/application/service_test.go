package application_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ephesafe/ephesafed/internal/core/application"
	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/ephesafe/ephesafed/internal/core/ports"
	ledgercustody "github.com/ephesafe/ephesafed/internal/infrastructure/custody/ledger"
	"github.com/ephesafe/ephesafed/internal/infrastructure/db"
	inmemorylivestore "github.com/ephesafe/ephesafed/internal/infrastructure/live-store/inmemory"
	timescheduler "github.com/ephesafe/ephesafed/internal/infrastructure/scheduler/gocron"
	"github.com/ephesafe/ephesafed/pkg/vaulterrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	admin     = common.HexToAddress("0x1000000000000000000000000000000000000001")
	owner     = common.HexToAddress("0x1000000000000000000000000000000000000002")
	issuer    = common.HexToAddress("0x1000000000000000000000000000000000000003")
	auth1     = common.HexToAddress("0x1000000000000000000000000000000000000004")
	auth2     = common.HexToAddress("0x1000000000000000000000000000000000000005")
	auth3     = common.HexToAddress("0x1000000000000000000000000000000000000006")
	outsider  = common.HexToAddress("0x1000000000000000000000000000000000000007")
	recipient = common.HexToAddress("0x1000000000000000000000000000000000000008")
	token     = common.HexToAddress("0x2000000000000000000000000000000000000009")

	destroyRewardBps = uint64(50)
)

type testEnv struct {
	app     application.Service
	admin   application.AdminService
	custody ports.CustodyService
	repo    ports.RepoManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, newRepoManager(t))
}

func newRepoManager(t *testing.T) ports.RepoManager {
	t.Helper()

	repoManager, err := db.NewService(db.ServiceConfig{
		EventStoreType:   "badger",
		DataStoreType:    "badger",
		EventStoreConfig: []interface{}{"", nil},
		DataStoreConfig:  []interface{}{"", nil},
	})
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)
	return repoManager
}

func newTestEnvWith(t *testing.T, repoManager ports.RepoManager) *testEnv {
	t.Helper()

	adminSvc, err := application.NewAdminService(repoManager, admin)
	require.NoError(t, err)

	custody := ledgercustody.NewCustodyService()
	appSvc, err := application.NewService(
		repoManager, custody, inmemorylivestore.NewLiveStore(),
		timescheduler.NewScheduler(), destroyRewardBps, 0, 0,
	)
	require.NoError(t, err)

	return &testEnv{app: appSvc, admin: adminSvc, custody: custody, repo: repoManager}
}

// unreliableSafeRepo fails the next UpdateSafe call once, then recovers.
type unreliableSafeRepo struct {
	domain.SafeRepository
	failNextUpdate atomic.Bool
}

func (r *unreliableSafeRepo) UpdateSafe(ctx context.Context, safe domain.Safe) error {
	if r.failNextUpdate.CompareAndSwap(true, false) {
		return fmt.Errorf("store offline")
	}
	return r.SafeRepository.UpdateSafe(ctx, safe)
}

type unreliableUnlockRepo struct {
	domain.EmergencyUnlockRepository
	failNextUpsert atomic.Bool
}

func (r *unreliableUnlockRepo) Upsert(
	ctx context.Context, unlock domain.EmergencyUnlock,
) error {
	if r.failNextUpsert.CompareAndSwap(true, false) {
		return fmt.Errorf("store offline")
	}
	return r.EmergencyUnlockRepository.Upsert(ctx, unlock)
}

type unreliableRepoManager struct {
	ports.RepoManager
	safes   *unreliableSafeRepo
	unlocks *unreliableUnlockRepo
}

func (m *unreliableRepoManager) Safes() domain.SafeRepository {
	return m.safes
}

func (m *unreliableRepoManager) Unlocks() domain.EmergencyUnlockRepository {
	return m.unlocks
}

func newUnreliableTestEnv(
	t *testing.T,
) (*testEnv, *unreliableSafeRepo, *unreliableUnlockRepo) {
	t.Helper()

	repoManager := newRepoManager(t)
	safes := &unreliableSafeRepo{SafeRepository: repoManager.Safes()}
	unlocks := &unreliableUnlockRepo{EmergencyUnlockRepository: repoManager.Unlocks()}
	wrapped := &unreliableRepoManager{
		RepoManager: repoManager, safes: safes, unlocks: unlocks,
	}
	return newTestEnvWith(t, wrapped), safes, unlocks
}

func (e *testEnv) fundNative(t *testing.T, addr common.Address, amount uint64) {
	t.Helper()
	require.NoError(t,
		e.custody.Deposit(context.Background(), addr, domain.NativeToken, uint256.NewInt(amount)),
	)
}

func (e *testEnv) mintNativeSafe(
	t *testing.T, amount uint64, expiry int64,
	authorizers []common.Address, approvalsRequired uint64,
) uint64 {
	t.Helper()
	e.fundNative(t, admin, amount)
	safeId, err := e.app.MintSafe(context.Background(), application.MintRequest{
		Caller:             admin,
		Owner:              owner,
		Issuer:             issuer,
		Expiry:             expiry,
		Amount:             uint256.NewInt(amount),
		Value:              uint256.NewInt(amount),
		TokenAddress:       domain.NativeToken,
		TokenUri:           "ipfs://safe",
		MultiSafeAddresses: authorizers,
		ApprovalsRequired:  approvalsRequired,
	})
	require.NoError(t, err)
	return safeId
}

func requireErrorCode(t *testing.T, err error, name string) {
	t.Helper()
	require.Error(t, err)
	var structuredErr vaulterrors.Error
	require.ErrorAs(t, err, &structuredErr)
	require.Equal(t, name, structuredErr.CodeName())
}

func pastExpiry() int64 {
	return time.Now().Add(-time.Minute).Unix()
}

func futureExpiry() int64 {
	return time.Now().Add(time.Hour).Unix()
}

func TestMintSafe(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid requests", func(t *testing.T) {
		env := newTestEnv(t)
		env.fundNative(t, admin, 10000)

		tests := []struct {
			name         string
			request      application.MintRequest
			expectedCode string
		}{
			{
				name: "missing owner",
				request: application.MintRequest{
					Caller: admin, Amount: uint256.NewInt(100),
					Value: uint256.NewInt(100), ApprovalsRequired: 1,
				},
				expectedCode: "INVALID_CONFIGURATION",
			},
			{
				name: "zero amount",
				request: application.MintRequest{
					Caller: admin, Owner: owner,
					Amount: uint256.NewInt(0), ApprovalsRequired: 1,
				},
				expectedCode: "INVALID_CONFIGURATION",
			},
			{
				name: "zero approvals required",
				request: application.MintRequest{
					Caller: admin, Owner: owner,
					Amount: uint256.NewInt(100), Value: uint256.NewInt(100),
				},
				expectedCode: "INVALID_CONFIGURATION",
			},
			{
				name: "threshold above authorizer count",
				request: application.MintRequest{
					Caller: admin, Owner: owner,
					Amount: uint256.NewInt(100), Value: uint256.NewInt(100),
					MultiSafeAddresses: []common.Address{auth1, auth2},
					ApprovalsRequired:  3,
				},
				expectedCode: "INVALID_CONFIGURATION",
			},
			{
				name: "value does not match amount",
				request: application.MintRequest{
					Caller: admin, Owner: owner,
					Amount: uint256.NewInt(100), Value: uint256.NewInt(50),
					ApprovalsRequired: 1,
				},
				expectedCode: "INSUFFICIENT_FUNDS",
			},
			{
				name: "caller without minter role",
				request: application.MintRequest{
					Caller: outsider, Owner: owner,
					Amount: uint256.NewInt(100), Value: uint256.NewInt(100),
					ApprovalsRequired: 1,
				},
				expectedCode: "UNAUTHORIZED",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := env.app.MintSafe(ctx, tt.request)
				requireErrorCode(t, err, tt.expectedCode)
				// rejected mints must not take custody of anything
				require.True(t, env.custody.EscrowedBalance(ctx, domain.NativeToken).IsZero())
			})
		}
	})

	t.Run("valid request", func(t *testing.T) {
		env := newTestEnv(t)

		eventsCh := make(chan []domain.Event, 1)
		env.repo.Events().RegisterEventsHandler(
			domain.SafeTopic, func(events []domain.Event) {
				eventsCh <- events
			},
		)
		defer env.repo.Events().ClearRegisteredHandlers(domain.SafeTopic)

		safeId := env.mintNativeSafe(t, 1000, futureExpiry(), nil, 1)

		select {
		case events := <-eventsCh:
			require.NotEmpty(t, events)
			require.Equal(t, domain.EventTypeSafeMinted, events[0].GetType())
			require.Equal(t, safeId, events[0].GetSafeId())
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for mint event")
		}
		require.Equal(t, uint64(1), safeId)

		info, err := env.app.GetSafeInfo(ctx, safeId)
		require.NoError(t, err)
		require.Equal(t, "ACTIVE", info.Status)
		require.Equal(t, owner.Hex(), info.Owner)
		require.Equal(t, "1000", info.Amount)
		require.Equal(t, "1000", env.custody.EscrowedBalance(ctx, domain.NativeToken).Dec())

		// ids are assigned sequentially
		second := env.mintNativeSafe(t, 500, futureExpiry(), nil, 1)
		require.Equal(t, uint64(2), second)
	})
}

func TestClaimSafe(t *testing.T) {
	ctx := context.Background()

	t.Run("before expiry", func(t *testing.T) {
		env := newTestEnv(t)
		safeId := env.mintNativeSafe(t, 1000, futureExpiry(), nil, 1)

		err := env.app.ClaimSafe(ctx, safeId, owner)
		requireErrorCode(t, err, "NOT_EXPIRED")
	})

	t.Run("unknown safe", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.app.ClaimSafe(ctx, 42, owner)
		requireErrorCode(t, err, "SAFE_NOT_FOUND")
	})

	t.Run("non owner", func(t *testing.T) {
		env := newTestEnv(t)
		safeId := env.mintNativeSafe(t, 1000, pastExpiry(), nil, 1)

		err := env.app.ClaimSafe(ctx, safeId, outsider)
		requireErrorCode(t, err, "UNAUTHORIZED")
	})

	t.Run("exactly once", func(t *testing.T) {
		env := newTestEnv(t)
		safeId := env.mintNativeSafe(t, 1000, pastExpiry(), nil, 1)

		require.NoError(t, env.app.ClaimSafe(ctx, safeId, owner))
		require.Equal(t, "1000", env.custody.BalanceOf(ctx, owner, domain.NativeToken).Dec())
		require.True(t, env.custody.EscrowedBalance(ctx, domain.NativeToken).IsZero())

		info, err := env.app.GetSafeInfo(ctx, safeId)
		require.NoError(t, err)
		require.Equal(t, "BURN_CLAIMED", info.Status)

		err = env.app.ClaimSafe(ctx, safeId, owner)
		requireErrorCode(t, err, "ALREADY_TERMINAL")
		require.Equal(t, "1000", env.custody.BalanceOf(ctx, owner, domain.NativeToken).Dec())

		stats, err := env.admin.Stats(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(1), stats.TotalClaimedSafes)
	})

	t.Run("claim at address", func(t *testing.T) {
		env := newTestEnv(t)
		safeId := env.mintNativeSafe(t, 1000, pastExpiry(), nil, 1)

		require.NoError(t, env.app.ClaimSafeAtAddress(ctx, safeId, owner, recipient))
		require.Equal(t, "1000", env.custody.BalanceOf(ctx, recipient, domain.NativeToken).Dec())
		require.True(t, env.custody.BalanceOf(ctx, owner, domain.NativeToken).IsZero())
	})

	t.Run("concurrent claims release once", func(t *testing.T) {
		env := newTestEnv(t)
		safeId := env.mintNativeSafe(t, 1000, pastExpiry(), nil, 1)

		var successes int32
		var lock sync.Mutex
		wg := sync.WaitGroup{}
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := env.app.ClaimSafe(ctx, safeId, owner); err == nil {
					lock.Lock()
					successes++
					lock.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), successes)
		require.Equal(t, "1000", env.custody.BalanceOf(ctx, owner, domain.NativeToken).Dec())
		require.True(t, env.custody.EscrowedBalance(ctx, domain.NativeToken).IsZero())
	})
}

func TestDestroySafe(t *testing.T) {
	ctx := context.Background()

	t.Run("non owner", func(t *testing.T) {
		env := newTestEnv(t)
		safeId := env.mintNativeSafe(t, 10000, futureExpiry(), nil, 1)

		err := env.app.DestroySafe(ctx, safeId, outsider)
		requireErrorCode(t, err, "UNAUTHORIZED")
	})

	t.Run("owner destroys before expiry", func(t *testing.T) {
		env := newTestEnv(t)
		safeId := env.mintNativeSafe(t, 10000, futureExpiry(), nil, 1)

		require.NoError(t, env.app.DestroySafe(ctx, safeId, owner))

		// reward and remainder both land on the owner here, nothing is lost
		require.Equal(t, "10000", env.custody.BalanceOf(ctx, owner, domain.NativeToken).Dec())
		require.True(t, env.custody.EscrowedBalance(ctx, domain.NativeToken).IsZero())

		info, err := env.app.GetSafeInfo(ctx, safeId)
		require.NoError(t, err)
		require.Equal(t, "BURN_CLAIMED", info.Status)

		stats, err := env.admin.Stats(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(1), stats.TotalBurntSafes)

		err = env.app.DestroySafe(ctx, safeId, owner)
		requireErrorCode(t, err, "ALREADY_TERMINAL")
	})
}

func TestEmergencyUnlock(t *testing.T) {
	ctx := context.Background()
	authorizers := []common.Address{auth1, auth2, auth3}

	t.Run("unauthorized approver", func(t *testing.T) {
		env := newTestEnv(t)
		safeId := env.mintNativeSafe(t, 1000, futureExpiry(), authorizers, 2)

		_, err := env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, outsider, recipient)
		requireErrorCode(t, err, "UNAUTHORIZED")
	})

	t.Run("two of three", func(t *testing.T) {
		env := newTestEnv(t)
		safeId := env.mintNativeSafe(t, 1000, futureExpiry(), authorizers, 2)

		info, err := env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, auth1, recipient)
		require.NoError(t, err)
		require.Equal(t, "ACTIVE", info.Status)
		require.Equal(t, uint64(1), info.ApprovalCount)
		require.Equal(t, recipient.Hex(), info.Recipient)
		require.True(t, env.custody.BalanceOf(ctx, recipient, domain.NativeToken).IsZero())

		// the recipient was bound by the first approval, this nomination is ignored
		info, err = env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, auth2, outsider)
		require.NoError(t, err)
		require.Equal(t, "COMPLETED", info.Status)
		require.Equal(t, uint64(2), info.ApprovalCount)
		require.Equal(t, recipient.Hex(), info.Recipient)
		require.Equal(t, "1000", env.custody.BalanceOf(ctx, recipient, domain.NativeToken).Dec())
		require.True(t, env.custody.EscrowedBalance(ctx, domain.NativeToken).IsZero())

		safeInfo, err := env.app.GetSafeInfo(ctx, safeId)
		require.NoError(t, err)
		require.Equal(t, "EMERGENCY_UNLOCKED", safeInfo.Status)

		// the safe is terminal, the third approval is rejected
		_, err = env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, auth3, recipient)
		requireErrorCode(t, err, "ALREADY_TERMINAL")
		require.Equal(t, "1000", env.custody.BalanceOf(ctx, recipient, domain.NativeToken).Dec())
	})

	t.Run("duplicate approval", func(t *testing.T) {
		env := newTestEnv(t)
		safeId := env.mintNativeSafe(t, 1000, futureExpiry(), authorizers, 2)

		info, err := env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, auth1, recipient)
		require.NoError(t, err)
		require.Equal(t, uint64(1), info.ApprovalCount)

		_, err = env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, auth1, recipient)
		requireErrorCode(t, err, "DUPLICATE_APPROVAL")

		state, err := env.app.EmergencyUnlockState(ctx, safeId)
		require.NoError(t, err)
		require.Equal(t, "ACTIVE", state.Status)
		require.Equal(t, uint64(1), state.ApprovalCount)
	})

	t.Run("owner self report", func(t *testing.T) {
		env := newTestEnv(t)
		safeId := env.mintNativeSafe(t, 1000, futureExpiry(), nil, 1)

		info, err := env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, owner, recipient)
		require.NoError(t, err)
		require.Equal(t, "COMPLETED", info.Status)
		require.Equal(t, "1000", env.custody.BalanceOf(ctx, recipient, domain.NativeToken).Dec())
	})

	t.Run("concurrent approvals execute once", func(t *testing.T) {
		env := newTestEnv(t)
		approvers := []common.Address{auth1, auth2, auth3, owner, issuer}
		safeId := env.mintNativeSafe(t, 1000, futureExpiry(), authorizers, 2)

		wg := sync.WaitGroup{}
		for _, approver := range approvers {
			wg.Add(1)
			go func(approver common.Address) {
				defer wg.Done()
				// nolint:errcheck
				env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, approver, recipient)
			}(approver)
		}
		wg.Wait()

		require.Equal(t, "1000", env.custody.BalanceOf(ctx, recipient, domain.NativeToken).Dec())
		require.True(t, env.custody.EscrowedBalance(ctx, domain.NativeToken).IsZero())

		safeInfo, err := env.app.GetSafeInfo(ctx, safeId)
		require.NoError(t, err)
		require.Equal(t, "EMERGENCY_UNLOCKED", safeInfo.Status)
	})
}

func TestEmergencyUnlockState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	safeId := env.mintNativeSafe(t, 1000, futureExpiry(), nil, 1)

	state, err := env.app.EmergencyUnlockState(ctx, safeId)
	require.NoError(t, err)
	require.Equal(t, "NONE", state.Status)
	require.Zero(t, state.ApprovalCount)

	_, err = env.app.EmergencyUnlockState(ctx, 42)
	requireErrorCode(t, err, "SAFE_NOT_FOUND")
}

func TestIndexReads(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first := env.mintNativeSafe(t, 100, futureExpiry(), []common.Address{auth1}, 1)
	second := env.mintNativeSafe(t, 200, futureExpiry(), nil, 1)

	ids, err := env.app.GetAllSafes(ctx)
	require.NoError(t, err)
	require.Equal(t, []uint64{first, second}, ids)

	byOwner, err := env.app.GetAllSafesOfOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, byOwner, 2)

	issued, err := env.app.GetIssuedSafes(ctx, issuer)
	require.NoError(t, err)
	require.Len(t, issued, 2)

	byAuthorizer, err := env.app.GetAllMultiSafeAuthorityTokens(ctx, auth1)
	require.NoError(t, err)
	require.Len(t, byAuthorizer, 1)
	require.Equal(t, first, byAuthorizer[0].Id)

	none, err := env.app.GetAllSafesOfOwner(ctx, outsider)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestUpdateTokenUriAndIssuer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	safeId := env.mintNativeSafe(t, 1000, futureExpiry(), nil, 1)

	err := env.app.UpdateTokenUri(ctx, safeId, outsider, "ipfs://updated")
	requireErrorCode(t, err, "UNAUTHORIZED")

	require.NoError(t, env.app.UpdateTokenUri(ctx, safeId, admin, "ipfs://updated"))
	require.NoError(t, env.app.UpdateTokenIssuer(ctx, safeId, admin, outsider))

	info, err := env.app.GetSafeInfo(ctx, safeId)
	require.NoError(t, err)
	require.Equal(t, "ipfs://updated", info.TokenUri)
	require.Equal(t, outsider.Hex(), info.Issuer)
}

func TestAddMultiSafeAuthorizer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	safeId := env.mintNativeSafe(t, 1000, futureExpiry(), []common.Address{auth1, auth2}, 2)

	err := env.app.AddMultiSafeAuthorizer(ctx, safeId, outsider, auth3)
	requireErrorCode(t, err, "UNAUTHORIZED")

	err = env.app.AddMultiSafeAuthorizer(ctx, safeId, owner, auth1)
	requireErrorCode(t, err, "INVALID_CONFIGURATION")

	require.NoError(t, env.app.AddMultiSafeAuthorizer(ctx, safeId, owner, auth3))

	info, err := env.app.GetSafeInfo(ctx, safeId)
	require.NoError(t, err)
	require.Len(t, info.MultiSafeAddresses, 3)

	// the approver set is frozen once a round exists
	_, err = env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, auth1, recipient)
	require.NoError(t, err)
	err = env.app.AddMultiSafeAuthorizer(ctx, safeId, owner, outsider)
	requireErrorCode(t, err, "INVALID_CONFIGURATION")
}

func TestPausedRegistry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	safeId := env.mintNativeSafe(t, 1000, pastExpiry(), nil, 1)

	require.NoError(t, env.admin.Pause(ctx, admin))

	env.fundNative(t, admin, 100)
	_, err := env.app.MintSafe(ctx, application.MintRequest{
		Caller: admin, Owner: owner,
		Amount: uint256.NewInt(100), Value: uint256.NewInt(100),
		ApprovalsRequired: 1,
	})
	requireErrorCode(t, err, "SERVICE_PAUSED")

	err = env.app.ClaimSafe(ctx, safeId, owner)
	requireErrorCode(t, err, "SERVICE_PAUSED")

	err = env.app.DestroySafe(ctx, safeId, owner)
	requireErrorCode(t, err, "SERVICE_PAUSED")

	_, err = env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, owner, recipient)
	requireErrorCode(t, err, "SERVICE_PAUSED")

	// reads still pass while paused
	info, err := env.app.GetSafeInfo(ctx, safeId)
	require.NoError(t, err)
	require.Equal(t, "ACTIVE", info.Status)

	require.NoError(t, env.admin.Unpause(ctx, admin))
	require.NoError(t, env.app.ClaimSafe(ctx, safeId, owner))
}

func TestCountersUnderConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	const numSafes = 20
	ids := make([]uint64, 0, numSafes)
	for i := 0; i < numSafes; i++ {
		ids = append(ids, env.mintNativeSafe(t, 100, pastExpiry(), nil, 1))
	}

	errCh := make(chan error, numSafes)
	wg := sync.WaitGroup{}
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			errCh <- env.app.ClaimSafe(ctx, id, owner)
		}(id)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	// every claim of a distinct safe lands on the shared totals
	stats, err := env.admin.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(numSafes), stats.TotalClaimedSafes)
	require.Equal(t, "2000", env.custody.BalanceOf(ctx, owner, domain.NativeToken).Dec())
}

func TestClaimSafeStoreFailure(t *testing.T) {
	ctx := context.Background()
	env, safes, _ := newUnreliableTestEnv(t)
	safeId := env.mintNativeSafe(t, 1000, pastExpiry(), nil, 1)

	safes.failNextUpdate.Store(true)
	err := env.app.ClaimSafe(ctx, safeId, owner)
	requireErrorCode(t, err, "INTERNAL_ERROR")

	// the payout came back into custody and the safe is still claimable
	require.True(t, env.custody.BalanceOf(ctx, owner, domain.NativeToken).IsZero())
	require.Equal(t, "1000", env.custody.EscrowedBalance(ctx, domain.NativeToken).Dec())

	info, err := env.app.GetSafeInfo(ctx, safeId)
	require.NoError(t, err)
	require.Equal(t, "ACTIVE", info.Status)

	require.NoError(t, env.app.ClaimSafe(ctx, safeId, owner))
	require.Equal(t, "1000", env.custody.BalanceOf(ctx, owner, domain.NativeToken).Dec())
	require.True(t, env.custody.EscrowedBalance(ctx, domain.NativeToken).IsZero())
}

func TestDestroySafeStoreFailure(t *testing.T) {
	ctx := context.Background()
	env, safes, _ := newUnreliableTestEnv(t)
	safeId := env.mintNativeSafe(t, 10000, futureExpiry(), nil, 1)

	safes.failNextUpdate.Store(true)
	err := env.app.DestroySafe(ctx, safeId, owner)
	requireErrorCode(t, err, "INTERNAL_ERROR")

	// both the reward and the remainder are back in custody
	require.True(t, env.custody.BalanceOf(ctx, owner, domain.NativeToken).IsZero())
	require.Equal(t, "10000", env.custody.EscrowedBalance(ctx, domain.NativeToken).Dec())

	require.NoError(t, env.app.DestroySafe(ctx, safeId, owner))
	require.Equal(t, "10000", env.custody.BalanceOf(ctx, owner, domain.NativeToken).Dec())
	require.True(t, env.custody.EscrowedBalance(ctx, domain.NativeToken).IsZero())

	stats, err := env.admin.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.TotalBurntSafes)
}

func TestEmergencyUnlockStoreFailure(t *testing.T) {
	ctx := context.Background()
	env, _, unlocks := newUnreliableTestEnv(t)
	safeId := env.mintNativeSafe(t, 1000, futureExpiry(), nil, 1)

	unlocks.failNextUpsert.Store(true)
	_, err := env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, owner, recipient)
	requireErrorCode(t, err, "INTERNAL_ERROR")

	// the safe is back to ACTIVE with the funds in custody, nothing paid out
	require.True(t, env.custody.BalanceOf(ctx, recipient, domain.NativeToken).IsZero())
	require.Equal(t, "1000", env.custody.EscrowedBalance(ctx, domain.NativeToken).Dec())

	info, err := env.app.GetSafeInfo(ctx, safeId)
	require.NoError(t, err)
	require.Equal(t, "ACTIVE", info.Status)

	unlockInfo, err := env.app.ApproveOrExecuteEmergencyUnlock(ctx, safeId, owner, recipient)
	require.NoError(t, err)
	require.Equal(t, "COMPLETED", unlockInfo.Status)
	require.Equal(t, "1000", env.custody.BalanceOf(ctx, recipient, domain.NativeToken).Dec())
	require.True(t, env.custody.EscrowedBalance(ctx, domain.NativeToken).IsZero())
}

func TestTokenSafeLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.custody.Deposit(ctx, admin, token, uint256.NewInt(1000)))

	// no allowance granted yet
	_, err := env.app.MintSafe(ctx, application.MintRequest{
		Caller: admin, Owner: owner, Expiry: pastExpiry(),
		Amount: uint256.NewInt(1000), TokenAddress: token,
		ApprovalsRequired: 1,
	})
	requireErrorCode(t, err, "INSUFFICIENT_ALLOWANCE")

	require.NoError(t, env.custody.Approve(ctx, admin, token, uint256.NewInt(1000)))

	// attached value only makes sense for native mints
	_, err = env.app.MintSafe(ctx, application.MintRequest{
		Caller: admin, Owner: owner, Expiry: pastExpiry(),
		Amount: uint256.NewInt(1000), Value: uint256.NewInt(1000),
		TokenAddress: token, ApprovalsRequired: 1,
	})
	requireErrorCode(t, err, "INVALID_CONFIGURATION")

	safeId, err := env.app.MintSafe(ctx, application.MintRequest{
		Caller: admin, Owner: owner, Issuer: issuer, Expiry: pastExpiry(),
		Amount: uint256.NewInt(1000), TokenAddress: token,
		TokenUri: "ipfs://token-safe", ApprovalsRequired: 1,
	})
	require.NoError(t, err)
	require.Equal(t, "1000", env.custody.EscrowedBalance(ctx, token).Dec())
	require.True(t, env.custody.BalanceOf(ctx, admin, token).IsZero())

	info, err := env.app.GetSafeInfo(ctx, safeId)
	require.NoError(t, err)
	require.Equal(t, token.Hex(), info.TokenAddress)

	require.NoError(t, env.app.ClaimSafe(ctx, safeId, owner))
	require.Equal(t, "1000", env.custody.BalanceOf(ctx, owner, token).Dec())
	require.True(t, env.custody.EscrowedBalance(ctx, token).IsZero())
}
