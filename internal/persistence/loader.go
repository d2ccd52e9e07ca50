package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"WrapLedger/internal/core"
	"WrapLedger/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
)

// Loader rebuilds engine state from the state tables at startup. The
// persistence worker upserts every row an event touches in the same
// transaction as the event, so the tables are always consistent with
// ledger_meta and no log replay is needed.
type Loader struct {
	db *sql.DB
}

func NewLoader(db *sql.DB) *Loader {
	return &Loader{db: db}
}

// Load reads the full persisted state. When the ledger has never
// written an event there is no meta row; the returned state has
// HasEvents false and the engine starts from genesis.
func (l *Loader) Load(ctx context.Context) (core.RestoredState, error) {
	var s core.RestoredState

	var stateHash []byte
	err := l.db.QueryRowContext(ctx, `
		SELECT sequence, state_hash, total_supply::text
		FROM wrapledger.ledger_meta WHERE id = 1`,
	).Scan(&s.Sequence, &stateHash, &s.TotalSupply)
	if err == sql.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("load ledger meta: %w", err)
	}
	if len(stateHash) != len(s.StateHash) {
		return s, fmt.Errorf("load ledger meta: state hash is %d bytes, want %d", len(stateHash), len(s.StateHash))
	}
	copy(s.StateHash[:], stateHash)
	s.HasEvents = true

	if s.Balances, err = l.loadBalances(ctx); err != nil {
		return s, err
	}
	if s.Allowances, err = l.loadAllowances(ctx); err != nil {
		return s, err
	}
	if s.Locks, err = l.loadLocks(ctx); err != nil {
		return s, err
	}
	if s.Reservations, err = l.loadReservations(ctx); err != nil {
		return s, err
	}
	if s.ExchangeConfigs, err = l.loadExchangeConfigs(ctx); err != nil {
		return s, err
	}
	if s.Roles, err = l.loadRoles(ctx); err != nil {
		return s, err
	}
	if s.TransferNonces, err = l.loadTransferNonces(ctx); err != nil {
		return s, err
	}
	return s, nil
}

func (l *Loader) loadBalances(ctx context.Context) ([]core.BalanceRow, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT account, amount::text FROM wrapledger.balances`)
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	defer rows.Close()

	var out []core.BalanceRow
	for rows.Next() {
		var account, amount string
		if err := rows.Scan(&account, &amount); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, core.BalanceRow{
			Account: common.HexToAddress(account),
			Amount:  amount,
		})
	}
	return out, rows.Err()
}

func (l *Loader) loadAllowances(ctx context.Context) ([]core.AllowanceRow, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT owner, spender, amount::text FROM wrapledger.allowances`)
	if err != nil {
		return nil, fmt.Errorf("load allowances: %w", err)
	}
	defer rows.Close()

	var out []core.AllowanceRow
	for rows.Next() {
		var owner, spender, amount string
		if err := rows.Scan(&owner, &spender, &amount); err != nil {
			return nil, fmt.Errorf("scan allowance: %w", err)
		}
		out = append(out, core.AllowanceRow{
			Owner:   common.HexToAddress(owner),
			Spender: common.HexToAddress(spender),
			Amount:  amount,
		})
	}
	return out, rows.Err()
}

func (l *Loader) loadLocks(ctx context.Context) ([]core.LockRow, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT account, asset, amount::text FROM wrapledger.locks`)
	if err != nil {
		return nil, fmt.Errorf("load locks: %w", err)
	}
	defer rows.Close()

	var out []core.LockRow
	for rows.Next() {
		var account, asset, amount string
		if err := rows.Scan(&account, &asset, &amount); err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		out = append(out, core.LockRow{
			Account: common.HexToAddress(account),
			Asset:   asset,
			Amount:  amount,
		})
	}
	return out, rows.Err()
}

func (l *Loader) loadReservations(ctx context.Context) ([]core.ReservationRow, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT sender, nonce, recipient, executor, amount::text, fee::text, expiry_block, status
		FROM wrapledger.reservations`)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}
	defer rows.Close()

	var out []core.ReservationRow
	for rows.Next() {
		var (
			sender, recipient, executor string
			nonce, expiryBlock          int64
			amount, fee                 string
			status                      int16
		)
		if err := rows.Scan(&sender, &nonce, &recipient, &executor, &amount, &fee, &expiryBlock, &status); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, core.ReservationRow{
			Sender:      common.HexToAddress(sender),
			Nonce:       uint64(nonce),
			Recipient:   common.HexToAddress(recipient),
			Executor:    common.HexToAddress(executor),
			Amount:      amount,
			Fee:         fee,
			ExpiryBlock: uint64(expiryBlock),
			Status:      ledger.ReservationStatus(status),
		})
	}
	return out, rows.Err()
}

func (l *Loader) loadExchangeConfigs(ctx context.Context) ([]core.ExchangeConfigRow, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT asset, rate::text, rate_base::text, base_decimals
		FROM wrapledger.exchange_configs`)
	if err != nil {
		return nil, fmt.Errorf("load exchange configs: %w", err)
	}
	defer rows.Close()

	var out []core.ExchangeConfigRow
	for rows.Next() {
		var (
			asset, rate, rateBase string
			baseDecimals          int16
		)
		if err := rows.Scan(&asset, &rate, &rateBase, &baseDecimals); err != nil {
			return nil, fmt.Errorf("scan exchange config: %w", err)
		}
		out = append(out, core.ExchangeConfigRow{
			Asset:        asset,
			Rate:         rate,
			RateBase:     rateBase,
			BaseDecimals: uint8(baseDecimals),
		})
	}
	return out, rows.Err()
}

func (l *Loader) loadRoles(ctx context.Context) ([]core.RoleRow, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT role, account FROM wrapledger.roles`)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	defer rows.Close()

	var out []core.RoleRow
	for rows.Next() {
		var role, account string
		if err := rows.Scan(&role, &account); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, core.RoleRow{
			Role:    role,
			Account: common.HexToAddress(account),
			Granted: true,
		})
	}
	return out, rows.Err()
}

func (l *Loader) loadTransferNonces(ctx context.Context) ([]core.TransferNonceRow, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT account, nonce FROM wrapledger.transfer_nonces`)
	if err != nil {
		return nil, fmt.Errorf("load transfer nonces: %w", err)
	}
	defer rows.Close()

	var out []core.TransferNonceRow
	for rows.Next() {
		var account string
		var nonce int64
		if err := rows.Scan(&account, &nonce); err != nil {
			return nil, fmt.Errorf("scan transfer nonce: %w", err)
		}
		out = append(out, core.TransferNonceRow{
			Account: common.HexToAddress(account),
			Nonce:   uint64(nonce),
		})
	}
	return out, rows.Err()
}
