package ledgercustody

import (
	"context"
	"sync"

	"github.com/ephesafe/ephesafed/internal/core/ports"
	"github.com/ephesafe/ephesafed/pkg/vaulterrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"
)

// service is an in-process account ledger: balances and registry allowances
// per token, plus the escrow pool. It stands in for an on-chain custodian
// behind ports.CustodyService.
type service struct {
	lock sync.RWMutex

	// token -> account -> balance
	balances map[common.Address]map[common.Address]*uint256.Int
	// token -> owner -> allowance granted to the registry
	allowances map[common.Address]map[common.Address]*uint256.Int
	// token -> total in custody
	escrowed map[common.Address]*uint256.Int
}

func NewCustodyService() ports.CustodyService {
	return &service{
		balances:   make(map[common.Address]map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
		escrowed:   make(map[common.Address]*uint256.Int),
	}
}

func (s *service) Escrow(
	ctx context.Context, from common.Address, token common.Address,
	amount, value *uint256.Int,
) error {
	if amount == nil || amount.IsZero() {
		return vaulterrors.INVALID_CONFIGURATION.New("escrow amount must be greater than zero")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if token == (common.Address{}) {
		// native: the attached value is the payment and must match exactly
		if value == nil || !value.Eq(amount) {
			got := "0"
			if value != nil {
				got = value.Dec()
			}
			return vaulterrors.INSUFFICIENT_FUNDS.New(
				"attached value does not match safe amount",
			).WithMetadata(vaulterrors.AmountMetadata{
				Required: amount.Dec(),
				Got:      got,
			})
		}
		balance := s.balance(token, from)
		if balance.Lt(value) {
			return vaulterrors.INSUFFICIENT_FUNDS.New(
				"balance too low for attached value",
			).WithMetadata(vaulterrors.AmountMetadata{
				Required: value.Dec(),
				Got:      balance.Dec(),
			})
		}
		s.setBalance(token, from, new(uint256.Int).Sub(balance, value))
		s.credit(s.escrowed, token, amount)
		return nil
	}

	if value != nil && !value.IsZero() {
		return vaulterrors.INVALID_CONFIGURATION.New(
			"attached value not allowed for token safes",
		)
	}

	allowance := s.allowance(token, from)
	if allowance.Lt(amount) {
		return vaulterrors.INSUFFICIENT_ALLOWANCE.New(
			"registry allowance too low",
		).WithMetadata(vaulterrors.AmountMetadata{
			Required: amount.Dec(),
			Got:      allowance.Dec(),
		})
	}
	balance := s.balance(token, from)
	if balance.Lt(amount) {
		return vaulterrors.INSUFFICIENT_FUNDS.New(
			"token balance too low",
		).WithMetadata(vaulterrors.AmountMetadata{
			Required: amount.Dec(),
			Got:      balance.Dec(),
		})
	}

	s.setAllowance(token, from, new(uint256.Int).Sub(allowance, amount))
	s.setBalance(token, from, new(uint256.Int).Sub(balance, amount))
	s.credit(s.escrowed, token, amount)
	return nil
}

func (s *service) Release(
	ctx context.Context, to common.Address, token common.Address, amount *uint256.Int,
) error {
	if amount == nil || amount.IsZero() {
		return nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	pool := s.escrowed[token]
	if pool == nil || pool.Lt(amount) {
		got := "0"
		if pool != nil {
			got = pool.Dec()
		}
		log.Errorf(
			"escrow pool underflow for token %s: need %s, have %s",
			token.Hex(), amount.Dec(), got,
		)
		return vaulterrors.TRANSFER_FAILED.New(
			"escrow pool cannot cover release",
		).WithMetadata(vaulterrors.TransferMetadata{
			To:     to.Hex(),
			Token:  token.Hex(),
			Amount: amount.Dec(),
		})
	}

	s.escrowed[token] = new(uint256.Int).Sub(pool, amount)
	balance := s.balance(token, to)
	s.setBalance(token, to, new(uint256.Int).Add(balance, amount))
	return nil
}

func (s *service) Reclaim(
	ctx context.Context, from common.Address, token common.Address, amount *uint256.Int,
) error {
	if amount == nil || amount.IsZero() {
		return nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	balance := s.balance(token, from)
	if balance.Lt(amount) {
		return vaulterrors.TRANSFER_FAILED.New(
			"account balance cannot cover reclaim",
		).WithMetadata(vaulterrors.TransferMetadata{
			To:     from.Hex(),
			Token:  token.Hex(),
			Amount: amount.Dec(),
		})
	}

	s.setBalance(token, from, new(uint256.Int).Sub(balance, amount))
	s.credit(s.escrowed, token, amount)
	return nil
}

func (s *service) EscrowedBalance(
	ctx context.Context, token common.Address,
) *uint256.Int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	pool := s.escrowed[token]
	if pool == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(pool)
}

func (s *service) BalanceOf(
	ctx context.Context, addr common.Address, token common.Address,
) *uint256.Int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return new(uint256.Int).Set(s.balance(token, addr))
}

func (s *service) Deposit(
	ctx context.Context, addr common.Address, token common.Address, amount *uint256.Int,
) error {
	if amount == nil || amount.IsZero() {
		return vaulterrors.INVALID_CONFIGURATION.New("deposit amount must be greater than zero")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	balance := s.balance(token, addr)
	s.setBalance(token, addr, new(uint256.Int).Add(balance, amount))
	return nil
}

func (s *service) Approve(
	ctx context.Context, owner common.Address, token common.Address, amount *uint256.Int,
) error {
	if amount == nil {
		return vaulterrors.INVALID_CONFIGURATION.New("allowance amount is required")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.setAllowance(token, owner, new(uint256.Int).Set(amount))
	return nil
}

func (s *service) balance(token, addr common.Address) *uint256.Int {
	accounts := s.balances[token]
	if accounts == nil {
		return uint256.NewInt(0)
	}
	balance := accounts[addr]
	if balance == nil {
		return uint256.NewInt(0)
	}
	return balance
}

func (s *service) setBalance(token, addr common.Address, balance *uint256.Int) {
	accounts := s.balances[token]
	if accounts == nil {
		accounts = make(map[common.Address]*uint256.Int)
		s.balances[token] = accounts
	}
	accounts[addr] = balance
}

func (s *service) allowance(token, owner common.Address) *uint256.Int {
	owners := s.allowances[token]
	if owners == nil {
		return uint256.NewInt(0)
	}
	allowance := owners[owner]
	if allowance == nil {
		return uint256.NewInt(0)
	}
	return allowance
}

func (s *service) setAllowance(token, owner common.Address, allowance *uint256.Int) {
	owners := s.allowances[token]
	if owners == nil {
		owners = make(map[common.Address]*uint256.Int)
		s.allowances[token] = owners
	}
	owners[owner] = allowance
}

func (s *service) credit(
	pool map[common.Address]*uint256.Int, token common.Address, amount *uint256.Int,
) {
	current := pool[token]
	if current == nil {
		current = uint256.NewInt(0)
	}
	pool[token] = new(uint256.Int).Add(current, amount)
}
