package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type SafeStatus int

const (
	SafeStatusActive SafeStatus = iota
	SafeStatusBurnClaimed
	SafeStatusEmergencyUnlocked
)

func (s SafeStatus) String() string {
	switch s {
	case SafeStatusActive:
		return "ACTIVE"
	case SafeStatusBurnClaimed:
		return "BURN_CLAIMED"
	case SafeStatusEmergencyUnlocked:
		return "EMERGENCY_UNLOCKED"
	default:
		return "UNKNOWN"
	}
}

// NativeToken is the sentinel token address meaning the escrowed asset is the
// native currency rather than a fungible token.
var NativeToken = common.Address{}

// Safe is a time-locked escrow record. Once a safe leaves ACTIVE it never
// changes status again.
type Safe struct {
	Id                 uint64
	Owner              common.Address
	Issuer             common.Address
	Expiry             int64
	Amount             *uint256.Int
	TokenAddress       common.Address
	Status             SafeStatus
	TokenUri           string
	Metadata           string
	MultiSafeAddresses []common.Address
	ApprovalsRequired  uint64
	CreatedAt          int64
}

func (s *Safe) IsActive() bool {
	return s.Status == SafeStatusActive
}

func (s *Safe) IsTerminal() bool {
	return s.Status != SafeStatusActive
}

func (s *Safe) IsExpired(now int64) bool {
	return now >= s.Expiry
}

func (s *Safe) IsNative() bool {
	return s.TokenAddress == NativeToken
}

func (s *Safe) HasAuthorizer(addr common.Address) bool {
	for _, a := range s.MultiSafeAddresses {
		if a == addr {
			return true
		}
	}
	return false
}

// CanApproveUnlock reports whether addr may take part in an emergency unlock
// round: any multi-safe authorizer, plus the owner and the issuer
// (the self-report path).
func (s *Safe) CanApproveUnlock(addr common.Address) bool {
	return addr == s.Owner || addr == s.Issuer || s.HasAuthorizer(addr)
}
