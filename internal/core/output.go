package core

import (
	"WrapLedger/internal/event"
	"WrapLedger/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
)

// StateDelta lists the state rows an operation touched. The persistence
// worker upserts exactly these rows alongside the event, so a restart
// can rebuild the in-memory books from the tables without replay.
// Amounts are decimal strings.
type StateDelta struct {
	Balances        []BalanceRow
	TotalSupply     string
	Allowances      []AllowanceRow
	Locks           []LockRow
	Reservations    []ReservationRow
	ExchangeConfigs []ExchangeConfigRow
	Roles           []RoleRow
	TransferNonces  []TransferNonceRow
}

type BalanceRow struct {
	Account common.Address
	Amount  string
}

type AllowanceRow struct {
	Owner   common.Address
	Spender common.Address
	Amount  string
}

type LockRow struct {
	Account common.Address
	Asset   string
	Amount  string
}

type ReservationRow struct {
	Sender      common.Address
	Nonce       uint64
	Recipient   common.Address
	Executor    common.Address
	Amount      string
	Fee         string
	ExpiryBlock uint64
	Status      ledger.ReservationStatus
}

type ExchangeConfigRow struct {
	Asset        string
	Rate         string
	RateBase     string
	BaseDecimals uint8
}

type RoleRow struct {
	Role    string
	Account common.Address
	Granted bool
}

type TransferNonceRow struct {
	Account common.Address
	Nonce   uint64
}

// CoreOutput pairs an applied event with its state rows. Every
// mutating operation emits exactly one.
type CoreOutput struct {
	Envelope event.Envelope
	Delta    StateDelta
}
