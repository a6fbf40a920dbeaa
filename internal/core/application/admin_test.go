package application_test

import (
	"context"
	"testing"

	"github.com/ephesafe/ephesafed/internal/core/application"
	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestRoleManagement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	hasRole, err := env.admin.HasRole(ctx, domain.RoleMinter, outsider)
	require.NoError(t, err)
	require.False(t, hasRole)

	err = env.admin.GrantRole(ctx, outsider, domain.RoleMinter, outsider)
	requireErrorCode(t, err, "UNAUTHORIZED")

	err = env.admin.GrantRole(ctx, admin, "SOME_ROLE", outsider)
	requireErrorCode(t, err, "INVALID_CONFIGURATION")

	require.NoError(t, env.admin.GrantRole(ctx, admin, domain.RoleMinter, outsider))
	hasRole, err = env.admin.HasRole(ctx, domain.RoleMinter, outsider)
	require.NoError(t, err)
	require.True(t, hasRole)

	require.NoError(t, env.admin.RevokeRole(ctx, admin, domain.RoleMinter, outsider))
	hasRole, err = env.admin.HasRole(ctx, domain.RoleMinter, outsider)
	require.NoError(t, err)
	require.False(t, hasRole)
}

func TestGrantedMinterCanMint(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.admin.GrantRole(ctx, admin, domain.RoleMinter, outsider))
	env.fundNative(t, outsider, 100)

	safeId, err := env.app.MintSafe(ctx, application.MintRequest{
		Caller: outsider, Owner: owner,
		Amount: uint256.NewInt(100), Value: uint256.NewInt(100),
		ApprovalsRequired: 1,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), safeId)
}

func TestPausePermissions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	err := env.admin.Pause(ctx, outsider)
	requireErrorCode(t, err, "UNAUTHORIZED")

	err = env.admin.Unpause(ctx, admin)
	requireErrorCode(t, err, "INVALID_CONFIGURATION")

	require.NoError(t, env.admin.Pause(ctx, admin))
	err = env.admin.Pause(ctx, admin)
	requireErrorCode(t, err, "INVALID_CONFIGURATION")

	stats, err := env.admin.Stats(ctx)
	require.NoError(t, err)
	require.True(t, stats.Paused)

	require.NoError(t, env.admin.Unpause(ctx, admin))
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	stats, err := env.admin.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.TotalSafes)
	require.Zero(t, stats.TotalClaimedSafes)
	require.Zero(t, stats.TotalBurntSafes)

	first := env.mintNativeSafe(t, 100, pastExpiry(), nil, 1)
	env.mintNativeSafe(t, 200, futureExpiry(), nil, 1)
	require.NoError(t, env.app.ClaimSafe(ctx, first, owner))

	stats, err = env.admin.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), stats.TotalSafes)
	require.Equal(t, uint64(1), stats.TotalClaimedSafes)
	require.Zero(t, stats.TotalBurntSafes)
}
