package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

const SafeTopic = "safes"

type EventType int

const (
	EventTypeUndefined EventType = iota
	EventTypeSafeMinted
	EventTypeSafeClaimed
	EventTypeSafeDestroyed
	EventTypeEmergencyUnlockApproved
	EventTypeEmergencyUnlockExecuted
	EventTypeServicePaused
	EventTypeServiceUnpaused
)

type Event interface {
	GetType() EventType
	GetSafeId() uint64
}

type SafeMinted struct {
	Id           string
	Type         EventType
	SafeId       uint64
	Owner        common.Address
	Issuer       common.Address
	TokenAddress common.Address
	Amount       string
	Expiry       int64
	TokenUri     string
	Timestamp    int64
}

func (e SafeMinted) GetType() EventType { return e.Type }
func (e SafeMinted) GetSafeId() uint64  { return e.SafeId }

type SafeClaimed struct {
	Id        string
	Type      EventType
	SafeId    uint64
	Claimer   common.Address
	ClaimedTo common.Address
	Amount    string
	Timestamp int64
}

func (e SafeClaimed) GetType() EventType { return e.Type }
func (e SafeClaimed) GetSafeId() uint64  { return e.SafeId }

type SafeDestroyed struct {
	Id            string
	Type          EventType
	SafeId        uint64
	Destroyer     common.Address
	DestroyReward string
	Timestamp     int64
}

func (e SafeDestroyed) GetType() EventType { return e.Type }
func (e SafeDestroyed) GetSafeId() uint64  { return e.SafeId }

type EmergencyUnlockApproved struct {
	Id            string
	Type          EventType
	SafeId        uint64
	Approver      common.Address
	Recipient     common.Address
	ApprovalCount uint64
	Timestamp     int64
}

func (e EmergencyUnlockApproved) GetType() EventType { return e.Type }
func (e EmergencyUnlockApproved) GetSafeId() uint64  { return e.SafeId }

type EmergencyUnlockExecuted struct {
	Id        string
	Type      EventType
	SafeId    uint64
	Recipient common.Address
	Amount    string
	Timestamp int64
}

func (e EmergencyUnlockExecuted) GetType() EventType { return e.Type }
func (e EmergencyUnlockExecuted) GetSafeId() uint64  { return e.SafeId }

type ServicePaused struct {
	Id        string
	Type      EventType
	Account   common.Address
	Timestamp int64
}

func (e ServicePaused) GetType() EventType { return e.Type }
func (e ServicePaused) GetSafeId() uint64  { return 0 }

type ServiceUnpaused struct {
	Id        string
	Type      EventType
	Account   common.Address
	Timestamp int64
}

func (e ServiceUnpaused) GetType() EventType { return e.Type }
func (e ServiceUnpaused) GetSafeId() uint64  { return 0 }
