package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CustodyService moves the escrowed asset in and out of the registry's
// custody. The ledger implementation keeps balances in process; an on-chain
// custodian would plug in behind the same interface.
type CustodyService interface {
	// Escrow takes amount of token from `from` into custody. For the native
	// token, value is the attached payment and must equal amount exactly.
	// For fungible tokens, value must be nil and the transfer consumes the
	// spender allowance granted to the registry.
	Escrow(
		ctx context.Context, from common.Address, token common.Address,
		amount, value *uint256.Int,
	) error
	// Release pays amount of token out of custody to `to`. Exactly-once
	// semantics are the caller's concern: release first, then commit the
	// terminal status.
	Release(
		ctx context.Context, to common.Address, token common.Address, amount *uint256.Int,
	) error
	// Reclaim takes previously released funds back from an account into
	// custody. Compensation path for a release whose state commit failed.
	Reclaim(
		ctx context.Context, from common.Address, token common.Address, amount *uint256.Int,
	) error
	// EscrowedBalance returns the total amount of token currently in custody.
	EscrowedBalance(ctx context.Context, token common.Address) *uint256.Int
	// BalanceOf returns the ledger balance of an account.
	BalanceOf(ctx context.Context, addr common.Address, token common.Address) *uint256.Int
	// Deposit credits an account. Dev faucet path.
	Deposit(
		ctx context.Context, addr common.Address, token common.Address, amount *uint256.Int,
	) error
	// Approve grants the registry a spender allowance on a fungible token.
	Approve(
		ctx context.Context, owner common.Address, token common.Address, amount *uint256.Int,
	) error
}
