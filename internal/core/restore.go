package core

import (
	"fmt"
	"math/big"

	"WrapLedger/internal/ledger"
)

// RestoredState carries everything the loader read from the state
// tables at startup. Amounts are decimal strings as persisted.
// Sequence and StateHash describe the LAST APPLIED event; they are
// meaningful only when HasEvents is set, since a fresh ledger has no
// applied event to describe.
type RestoredState struct {
	HasEvents   bool
	Sequence    int64
	StateHash   [32]byte
	TotalSupply string

	Balances        []BalanceRow
	Allowances      []AllowanceRow
	Locks           []LockRow
	Reservations    []ReservationRow
	ExchangeConfigs []ExchangeConfigRow
	Roles           []RoleRow
	TransferNonces  []TransferNonceRow
}

// Restore installs persisted state into a fresh engine. Called once at
// startup before the engine accepts operations.
func (e *Engine) Restore(s RestoredState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.HasEvents {
		// The persisted sequence is the last one already written to
		// the event log; the next commit must not reuse it.
		e.sequence = s.Sequence + 1
		e.hasher.Reset(s.StateHash)
	}

	if s.TotalSupply != "" {
		supply, err := parseAmount(s.TotalSupply)
		if err != nil {
			return fmt.Errorf("restore total supply: %w", err)
		}
		e.balances.SetTotalSupply(supply)
	}
	for _, row := range s.Balances {
		v, err := parseAmount(row.Amount)
		if err != nil {
			return fmt.Errorf("restore balance %s: %w", row.Account.Hex(), err)
		}
		e.balances.SetBalance(row.Account, v)
	}
	for _, row := range s.Allowances {
		v, err := parseAmount(row.Amount)
		if err != nil {
			return fmt.Errorf("restore allowance %s->%s: %w", row.Owner.Hex(), row.Spender.Hex(), err)
		}
		e.balances.SetAllowance(row.Owner, row.Spender, v)
	}
	for _, row := range s.Locks {
		v, err := parseAmount(row.Amount)
		if err != nil {
			return fmt.Errorf("restore lock %s/%s: %w", row.Account.Hex(), row.Asset, err)
		}
		e.locks.SetLocked(row.Account, row.Asset, v)
	}
	for _, row := range s.Reservations {
		amount, err := parseAmount(row.Amount)
		if err != nil {
			return fmt.Errorf("restore reservation %s/%d: %w", row.Sender.Hex(), row.Nonce, err)
		}
		fee, err := parseAmount(row.Fee)
		if err != nil {
			return fmt.Errorf("restore reservation %s/%d: %w", row.Sender.Hex(), row.Nonce, err)
		}
		e.reservations.Restore(ledger.Reservation{
			Sender:      row.Sender,
			Recipient:   row.Recipient,
			Executor:    row.Executor,
			Amount:      amount,
			Fee:         fee,
			Nonce:       row.Nonce,
			ExpiryBlock: row.ExpiryBlock,
			Status:      row.Status,
		})
	}
	for _, row := range s.ExchangeConfigs {
		rate, err := parseAmount(row.Rate)
		if err != nil {
			return fmt.Errorf("restore exchange config %s: %w", row.Asset, err)
		}
		rateBase, err := parseAmount(row.RateBase)
		if err != nil {
			return fmt.Errorf("restore exchange config %s: %w", row.Asset, err)
		}
		if err := e.exchange.Set(row.Asset, rate, rateBase, row.BaseDecimals); err != nil {
			return fmt.Errorf("restore exchange config %s: %w", row.Asset, err)
		}
	}
	for _, row := range s.Roles {
		if row.Granted {
			e.roles.Bootstrap(row.Role, row.Account)
		}
	}
	for _, row := range s.TransferNonces {
		e.consumeTransferNonce(row.Account, row.Nonce)
	}
	return nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}
