package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeTransferApplied
	EventTypeEthlessTransferApplied
	EventTypeApproved
	EventTypeMinted
	EventTypeBurned
	EventTypeLockCreated
	EventTypeLockWithdrawn
	EventTypeConverted
	EventTypeReservationCreated
	EventTypeReservationExecuted
	EventTypeReservationReclaimed
	EventTypeExchangeConfigured
	EventTypeRoleGranted
	EventTypeRoleRevoked
)

// Envelope wraps every event in the log
type Envelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable identity for dedup and audit
	EventID uuid.UUID

	// Event type discriminator
	Type EventType

	// Primary account the event touches
	Account common.Address

	// Ledger height at which the event was applied
	Height uint64

	// Core-assigned apply timestamp
	Timestamp time.Time

	// JSON-encoded event-specific data
	Payload json.RawMessage

	// SHA-256 over (prev hash, sequence, payload)
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Payload is the interface all event payloads implement
type Payload interface {
	EventType() EventType
	Account() common.Address
}

// Seal wraps a payload into an envelope with a fresh event ID.
func Seal(sequence int64, height uint64, ts time.Time, p Payload) (Envelope, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", p.EventType(), err)
	}
	return Envelope{
		Sequence:  sequence,
		EventID:   uuid.New(),
		Type:      p.EventType(),
		Account:   p.Account(),
		Height:    height,
		Timestamp: ts,
		Payload:   raw,
	}, nil
}

func (et EventType) String() string {
	switch et {
	case EventTypeTransferApplied:
		return "TransferApplied"
	case EventTypeEthlessTransferApplied:
		return "EthlessTransferApplied"
	case EventTypeApproved:
		return "Approved"
	case EventTypeMinted:
		return "Minted"
	case EventTypeBurned:
		return "Burned"
	case EventTypeLockCreated:
		return "LockCreated"
	case EventTypeLockWithdrawn:
		return "LockWithdrawn"
	case EventTypeConverted:
		return "Converted"
	case EventTypeReservationCreated:
		return "ReservationCreated"
	case EventTypeReservationExecuted:
		return "ReservationExecuted"
	case EventTypeReservationReclaimed:
		return "ReservationReclaimed"
	case EventTypeExchangeConfigured:
		return "ExchangeConfigured"
	case EventTypeRoleGranted:
		return "RoleGranted"
	case EventTypeRoleRevoked:
		return "RoleRevoked"
	default:
		return "Unknown"
	}
}
