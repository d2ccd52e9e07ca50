package event

import "github.com/ethereum/go-ethereum/common"

// LockCreated records base-asset collateral pulled into custody.
type LockCreated struct {
	Owner  common.Address `json:"owner"`
	Asset  string         `json:"asset"`
	Amount string         `json:"amount"`
}

func (e LockCreated) EventType() EventType    { return EventTypeLockCreated }
func (e LockCreated) Account() common.Address { return e.Owner }

// LockWithdrawn records locked collateral released back to its owner.
type LockWithdrawn struct {
	Owner  common.Address `json:"owner"`
	Asset  string         `json:"asset"`
	Amount string         `json:"amount"`
}

func (e LockWithdrawn) EventType() EventType    { return EventTypeLockWithdrawn }
func (e LockWithdrawn) Account() common.Address { return e.Owner }

// Converted records locked collateral turned into native tokens.
type Converted struct {
	Owner        common.Address `json:"owner"`
	Asset        string         `json:"asset"`
	BaseAmount   string         `json:"baseAmount"`
	NativeAmount string         `json:"nativeAmount"`
}

func (e Converted) EventType() EventType    { return EventTypeConverted }
func (e Converted) Account() common.Address { return e.Owner }
