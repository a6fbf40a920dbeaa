package ledgercustody_test

import (
	"context"
	"testing"

	ledgercustody "github.com/ephesafe/ephesafed/internal/infrastructure/custody/ledger"
	"github.com/ephesafe/ephesafed/pkg/vaulterrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	alice       = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bob         = common.HexToAddress("0x1000000000000000000000000000000000000002")
	token       = common.HexToAddress("0x2000000000000000000000000000000000000001")
	nativeToken = common.Address{}
)

func requireErrorCode(t *testing.T, err error, name string) {
	t.Helper()
	require.Error(t, err)
	var structuredErr vaulterrors.Error
	require.ErrorAs(t, err, &structuredErr)
	require.Equal(t, name, structuredErr.CodeName())
}

func TestEscrowNative(t *testing.T) {
	ctx := context.Background()
	svc := ledgercustody.NewCustodyService()

	require.NoError(t, svc.Deposit(ctx, alice, nativeToken, uint256.NewInt(1000)))

	// the attached value must match the amount exactly
	err := svc.Escrow(ctx, alice, nativeToken, uint256.NewInt(500), uint256.NewInt(400))
	requireErrorCode(t, err, "INSUFFICIENT_FUNDS")
	require.True(t, svc.EscrowedBalance(ctx, nativeToken).IsZero())

	err = svc.Escrow(ctx, alice, nativeToken, uint256.NewInt(500), nil)
	requireErrorCode(t, err, "INSUFFICIENT_FUNDS")

	require.NoError(t,
		svc.Escrow(ctx, alice, nativeToken, uint256.NewInt(500), uint256.NewInt(500)),
	)
	require.Equal(t, "500", svc.EscrowedBalance(ctx, nativeToken).Dec())
	require.Equal(t, "500", svc.BalanceOf(ctx, alice, nativeToken).Dec())

	// balance too low for the attached value
	err = svc.Escrow(ctx, alice, nativeToken, uint256.NewInt(600), uint256.NewInt(600))
	requireErrorCode(t, err, "INSUFFICIENT_FUNDS")
}

func TestEscrowToken(t *testing.T) {
	ctx := context.Background()
	svc := ledgercustody.NewCustodyService()

	require.NoError(t, svc.Deposit(ctx, alice, token, uint256.NewInt(1000)))

	// no allowance yet
	err := svc.Escrow(ctx, alice, token, uint256.NewInt(500), nil)
	requireErrorCode(t, err, "INSUFFICIENT_ALLOWANCE")

	require.NoError(t, svc.Approve(ctx, alice, token, uint256.NewInt(500)))

	// attached value is only valid for native escrows
	err = svc.Escrow(ctx, alice, token, uint256.NewInt(500), uint256.NewInt(500))
	requireErrorCode(t, err, "INVALID_CONFIGURATION")

	require.NoError(t, svc.Escrow(ctx, alice, token, uint256.NewInt(500), nil))
	require.Equal(t, "500", svc.EscrowedBalance(ctx, token).Dec())
	require.Equal(t, "500", svc.BalanceOf(ctx, alice, token).Dec())

	// the allowance was fully consumed
	err = svc.Escrow(ctx, alice, token, uint256.NewInt(100), nil)
	requireErrorCode(t, err, "INSUFFICIENT_ALLOWANCE")
}

func TestEscrowInvalidAmount(t *testing.T) {
	ctx := context.Background()
	svc := ledgercustody.NewCustodyService()

	err := svc.Escrow(ctx, alice, nativeToken, nil, nil)
	requireErrorCode(t, err, "INVALID_CONFIGURATION")

	err = svc.Escrow(ctx, alice, nativeToken, uint256.NewInt(0), uint256.NewInt(0))
	requireErrorCode(t, err, "INVALID_CONFIGURATION")
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	svc := ledgercustody.NewCustodyService()

	require.NoError(t, svc.Deposit(ctx, alice, nativeToken, uint256.NewInt(1000)))
	require.NoError(t,
		svc.Escrow(ctx, alice, nativeToken, uint256.NewInt(1000), uint256.NewInt(1000)),
	)

	// more than the pool holds
	err := svc.Release(ctx, bob, nativeToken, uint256.NewInt(2000))
	requireErrorCode(t, err, "TRANSFER_FAILED")

	require.NoError(t, svc.Release(ctx, bob, nativeToken, uint256.NewInt(1000)))
	require.Equal(t, "1000", svc.BalanceOf(ctx, bob, nativeToken).Dec())
	require.True(t, svc.EscrowedBalance(ctx, nativeToken).IsZero())

	// escrow in equals release out, the pool is empty now
	err = svc.Release(ctx, bob, nativeToken, uint256.NewInt(1))
	requireErrorCode(t, err, "TRANSFER_FAILED")

	// zero-amount release is a no-op
	require.NoError(t, svc.Release(ctx, bob, nativeToken, nil))
	require.NoError(t, svc.Release(ctx, bob, nativeToken, uint256.NewInt(0)))
}

func TestReclaim(t *testing.T) {
	ctx := context.Background()
	svc := ledgercustody.NewCustodyService()

	require.NoError(t, svc.Deposit(ctx, alice, nativeToken, uint256.NewInt(1000)))
	require.NoError(t,
		svc.Escrow(ctx, alice, nativeToken, uint256.NewInt(1000), uint256.NewInt(1000)),
	)
	require.NoError(t, svc.Release(ctx, bob, nativeToken, uint256.NewInt(1000)))

	// more than the account holds
	err := svc.Reclaim(ctx, bob, nativeToken, uint256.NewInt(2000))
	requireErrorCode(t, err, "TRANSFER_FAILED")

	// a reclaim undoes the release exactly
	require.NoError(t, svc.Reclaim(ctx, bob, nativeToken, uint256.NewInt(1000)))
	require.True(t, svc.BalanceOf(ctx, bob, nativeToken).IsZero())
	require.Equal(t, "1000", svc.EscrowedBalance(ctx, nativeToken).Dec())

	// zero-amount reclaim is a no-op
	require.NoError(t, svc.Reclaim(ctx, bob, nativeToken, nil))
	require.NoError(t, svc.Reclaim(ctx, bob, nativeToken, uint256.NewInt(0)))
}
