package application

import (
	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MintRequest carries everything needed to open a new safe. Caller is the
// account paying the escrow; for native safes Value is the attached payment.
type MintRequest struct {
	Caller             common.Address
	Owner              common.Address
	Issuer             common.Address
	Expiry             int64
	Amount             *uint256.Int
	Value              *uint256.Int
	TokenAddress       common.Address
	TokenUri           string
	Metadata           string
	MultiSafeAddresses []common.Address
	ApprovalsRequired  uint64
}

type SafeInfo struct {
	Id                 uint64
	Owner              string
	Issuer             string
	Expiry             int64
	Amount             string
	TokenAddress       string
	Status             string
	TokenUri           string
	Metadata           string
	MultiSafeAddresses []string
	ApprovalsRequired  uint64
	CreatedAt          int64
	Approvers          []string
}

type EmergencyUnlockInfo struct {
	SafeId        uint64
	Status        string
	ApprovalCount uint64
	Recipient     string
	ApprovedBy    []string
	StartedAt     int64
	CompletedAt   int64
}

type UnlockState struct {
	Status        string
	ApprovalCount uint64
}

type RegistryStats struct {
	TotalSafes        uint64
	TotalClaimedSafes uint64
	TotalBurntSafes   uint64
	Paused            bool
}

func newSafeInfo(safe domain.Safe, unlock *domain.EmergencyUnlock) SafeInfo {
	authorizers := make([]string, 0, len(safe.MultiSafeAddresses))
	for _, addr := range safe.MultiSafeAddresses {
		authorizers = append(authorizers, addr.Hex())
	}
	approvers := make([]string, 0)
	if unlock != nil {
		for _, addr := range unlock.ApprovedBy {
			approvers = append(approvers, addr.Hex())
		}
	}
	return SafeInfo{
		Id:                 safe.Id,
		Owner:              safe.Owner.Hex(),
		Issuer:             safe.Issuer.Hex(),
		Expiry:             safe.Expiry,
		Amount:             safe.Amount.Dec(),
		TokenAddress:       safe.TokenAddress.Hex(),
		Status:             safe.Status.String(),
		TokenUri:           safe.TokenUri,
		Metadata:           safe.Metadata,
		MultiSafeAddresses: authorizers,
		ApprovalsRequired:  safe.ApprovalsRequired,
		CreatedAt:          safe.CreatedAt,
		Approvers:          approvers,
	}
}

func newUnlockInfo(unlock domain.EmergencyUnlock) EmergencyUnlockInfo {
	approvers := make([]string, 0, len(unlock.ApprovedBy))
	for _, addr := range unlock.ApprovedBy {
		approvers = append(approvers, addr.Hex())
	}
	return EmergencyUnlockInfo{
		SafeId:        unlock.SafeId,
		Status:        unlock.Status.String(),
		ApprovalCount: unlock.ApprovalCount,
		Recipient:     unlock.Recipient.Hex(),
		ApprovedBy:    approvers,
		StartedAt:     unlock.StartedAt,
		CompletedAt:   unlock.CompletedAt,
	}
}
