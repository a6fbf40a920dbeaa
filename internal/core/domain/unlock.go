package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

type UnlockStatus int

const (
	UnlockStatusNone UnlockStatus = iota
	UnlockStatusActive
	UnlockStatusCompleted
	// UnlockStatusStuck is derived on the read path, never stored: an ACTIVE
	// round whose safe already left ACTIVE.
	UnlockStatusStuck
)

func (s UnlockStatus) String() string {
	switch s {
	case UnlockStatusNone:
		return "NONE"
	case UnlockStatusActive:
		return "ACTIVE"
	case UnlockStatusCompleted:
		return "COMPLETED"
	case UnlockStatusStuck:
		return "STUCK"
	default:
		return "UNKNOWN"
	}
}

// EmergencyUnlock is the approval round for a safe. At most one round exists
// per safe and it is created lazily by the first approval, which also binds
// the recipient.
type EmergencyUnlock struct {
	SafeId        uint64
	Status        UnlockStatus
	ApprovalCount uint64
	ApprovedBy    []common.Address
	Recipient     common.Address
	StartedAt     int64
	CompletedAt   int64
}

func NewEmergencyUnlock(safeId uint64, recipient common.Address, startedAt int64) *EmergencyUnlock {
	return &EmergencyUnlock{
		SafeId:    safeId,
		Status:    UnlockStatusActive,
		Recipient: recipient,
		StartedAt: startedAt,
	}
}

func (u *EmergencyUnlock) HasApproved(addr common.Address) bool {
	for _, a := range u.ApprovedBy {
		if a == addr {
			return true
		}
	}
	return false
}

// Approve records a distinct approval. The caller is responsible for the
// duplicate and completion checks, Approve only mutates.
func (u *EmergencyUnlock) Approve(addr common.Address) {
	u.ApprovedBy = append(u.ApprovedBy, addr)
	u.ApprovalCount++
}

func (u *EmergencyUnlock) Complete(completedAt int64) {
	u.Status = UnlockStatusCompleted
	u.CompletedAt = completedAt
}
