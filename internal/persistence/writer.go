package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"WrapLedger/internal/core"
	"WrapLedger/internal/observability"
)

// StateWriter writes events and state rows to Postgres using batch inserts.
// Events go into an append-only log keyed by sequence; state rows are
// upserted so the tables always hold the latest value and the loader can
// rebuild the in-memory books without replaying the log.
// Multi-row INSERT is used as a portable alternative to COPY; switch to
// pgx CopyFrom if event throughput ever makes this the bottleneck.
type StateWriter struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// EventRow represents a row in wrapledger.events
type EventRow struct {
	Sequence  int64
	EventID   string
	EventType string
	Account   string
	Height    int64
	Payload   []byte // JSON-encoded event payload
	StateHash []byte
	PrevHash  []byte
	Timestamp time.Time
}

func NewStateWriter(db *sql.DB, metrics *observability.Metrics) *StateWriter {
	return &StateWriter{db: db, metrics: metrics}
}

// DB exposes the underlying handle for transaction management.
func (w *StateWriter) DB() *sql.DB {
	return w.db
}

// WriteEvents appends a batch of events using a single multi-row INSERT.
// ON CONFLICT (sequence) DO NOTHING makes re-delivery after a crash
// idempotent: the sequence is assigned by the core exactly once.
func (w *StateWriter) WriteEvents(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO wrapledger.events
		(sequence, event_id, event_type, account, height, payload, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.EventID, e.EventType, e.Account,
			e.Height, e.Payload, e.StateHash, e.PrevHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	w.countRows("events", len(events))
	return nil
}

// ApplyDeltas upserts the state rows for a batch of outputs. Rows are
// coalesced last-write-wins per key before hitting the database, so a
// hot account touched by every event in the batch costs one row.
// Returns the last total supply seen in the batch, or "" if no event
// in the batch touched the supply.
func (w *StateWriter) ApplyDeltas(ctx context.Context, tx *sql.Tx, deltas []core.StateDelta) (string, error) {
	c := coalesce(deltas)

	if err := w.upsertBalances(ctx, tx, c.balances); err != nil {
		return "", fmt.Errorf("upsert balances: %w", err)
	}
	if err := w.upsertAllowances(ctx, tx, c.allowances); err != nil {
		return "", fmt.Errorf("upsert allowances: %w", err)
	}
	if err := w.upsertLocks(ctx, tx, c.locks); err != nil {
		return "", fmt.Errorf("upsert locks: %w", err)
	}
	if err := w.upsertReservations(ctx, tx, c.reservations); err != nil {
		return "", fmt.Errorf("upsert reservations: %w", err)
	}
	if err := w.upsertExchangeConfigs(ctx, tx, c.exchangeConfigs); err != nil {
		return "", fmt.Errorf("upsert exchange configs: %w", err)
	}
	if err := w.applyRoles(ctx, tx, c.rolesGranted, c.rolesRevoked); err != nil {
		return "", fmt.Errorf("apply roles: %w", err)
	}
	if err := w.insertTransferNonces(ctx, tx, c.transferNonces); err != nil {
		return "", fmt.Errorf("insert transfer nonces: %w", err)
	}
	return c.totalSupply, nil
}

// WriteMeta records the high-water mark the loader reads at startup.
// totalSupply is empty when no event in the batch touched the supply.
func (w *StateWriter) WriteMeta(ctx context.Context, tx *sql.Tx, sequence int64, stateHash []byte, totalSupply string) error {
	var err error
	if totalSupply != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO wrapledger.ledger_meta (id, sequence, state_hash, total_supply)
			VALUES (1, $1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET sequence = $1, state_hash = $2, total_supply = $3`,
			sequence, stateHash, totalSupply,
		)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO wrapledger.ledger_meta (id, sequence, state_hash)
			VALUES (1, $1, $2)
			ON CONFLICT (id) DO UPDATE SET sequence = $1, state_hash = $2`,
			sequence, stateHash,
		)
	}
	return err
}

func (w *StateWriter) upsertBalances(ctx context.Context, tx *sql.Tx, rows []core.BalanceRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO wrapledger.balances (account, amount) VALUES `
	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*2)
	for i, r := range rows {
		base := i * 2
		values = append(values, fmt.Sprintf("($%d, $%d)", base+1, base+2))
		args = append(args, r.Account.Hex(), r.Amount)
	}
	query += strings.Join(values, ", ")
	query += " ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount"

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	w.countRows("balances", len(rows))
	return nil
}

func (w *StateWriter) upsertAllowances(ctx context.Context, tx *sql.Tx, rows []core.AllowanceRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO wrapledger.allowances (owner, spender, amount) VALUES `
	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*3)
	for i, r := range rows {
		base := i * 3
		values = append(values, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, r.Owner.Hex(), r.Spender.Hex(), r.Amount)
	}
	query += strings.Join(values, ", ")
	query += " ON CONFLICT (owner, spender) DO UPDATE SET amount = EXCLUDED.amount"

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	w.countRows("allowances", len(rows))
	return nil
}

func (w *StateWriter) upsertLocks(ctx context.Context, tx *sql.Tx, rows []core.LockRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO wrapledger.locks (account, asset, amount) VALUES `
	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*3)
	for i, r := range rows {
		base := i * 3
		values = append(values, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, r.Account.Hex(), r.Asset, r.Amount)
	}
	query += strings.Join(values, ", ")
	query += " ON CONFLICT (account, asset) DO UPDATE SET amount = EXCLUDED.amount"

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	w.countRows("locks", len(rows))
	return nil
}

func (w *StateWriter) upsertReservations(ctx context.Context, tx *sql.Tx, rows []core.ReservationRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO wrapledger.reservations
		(sender, nonce, recipient, executor, amount, fee, expiry_block, status)
		VALUES `
	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*8)
	for i, r := range rows {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			r.Sender.Hex(), int64(r.Nonce), r.Recipient.Hex(), r.Executor.Hex(),
			r.Amount, r.Fee, int64(r.ExpiryBlock), int16(r.Status),
		)
	}
	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sender, nonce) DO UPDATE SET status = EXCLUDED.status"

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	w.countRows("reservations", len(rows))
	return nil
}

func (w *StateWriter) upsertExchangeConfigs(ctx context.Context, tx *sql.Tx, rows []core.ExchangeConfigRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO wrapledger.exchange_configs (asset, rate, rate_base, base_decimals) VALUES `
	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*4)
	for i, r := range rows {
		base := i * 4
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, r.Asset, r.Rate, r.RateBase, int16(r.BaseDecimals))
	}
	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (asset) DO UPDATE SET
		rate = EXCLUDED.rate, rate_base = EXCLUDED.rate_base, base_decimals = EXCLUDED.base_decimals`

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	w.countRows("exchange_configs", len(rows))
	return nil
}

func (w *StateWriter) applyRoles(ctx context.Context, tx *sql.Tx, granted, revoked []core.RoleRow) error {
	if len(granted) > 0 {
		query := `INSERT INTO wrapledger.roles (role, account) VALUES `
		values := make([]string, 0, len(granted))
		args := make([]interface{}, 0, len(granted)*2)
		for i, r := range granted {
			base := i * 2
			values = append(values, fmt.Sprintf("($%d, $%d)", base+1, base+2))
			args = append(args, r.Role, r.Account.Hex())
		}
		query += strings.Join(values, ", ")
		query += " ON CONFLICT (role, account) DO NOTHING"
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		w.countRows("roles", len(granted))
	}

	for _, r := range revoked {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM wrapledger.roles WHERE role = $1 AND account = $2`,
			r.Role, r.Account.Hex(),
		); err != nil {
			return err
		}
		w.countRows("roles", 1)
	}
	return nil
}

func (w *StateWriter) insertTransferNonces(ctx context.Context, tx *sql.Tx, rows []core.TransferNonceRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO wrapledger.transfer_nonces (account, nonce) VALUES `
	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*2)
	for i, r := range rows {
		base := i * 2
		values = append(values, fmt.Sprintf("($%d, $%d)", base+1, base+2))
		args = append(args, r.Account.Hex(), int64(r.Nonce))
	}
	query += strings.Join(values, ", ")
	query += " ON CONFLICT (account, nonce) DO NOTHING"

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	w.countRows("transfer_nonces", len(rows))
	return nil
}

func (w *StateWriter) countRows(table string, n int) {
	if w.metrics != nil {
		w.metrics.PersistRowsWritten.WithLabelValues(table).Add(float64(n))
	}
}

// coalesced holds the per-key last value for each state table across a
// batch of deltas, in first-touch order.
type coalesced struct {
	balances        []core.BalanceRow
	allowances      []core.AllowanceRow
	locks           []core.LockRow
	reservations    []core.ReservationRow
	exchangeConfigs []core.ExchangeConfigRow
	rolesGranted    []core.RoleRow
	rolesRevoked    []core.RoleRow
	transferNonces  []core.TransferNonceRow
	totalSupply     string
}

func coalesce(deltas []core.StateDelta) coalesced {
	var c coalesced

	balIdx := make(map[string]int)
	allowIdx := make(map[string]int)
	lockIdx := make(map[string]int)
	resIdx := make(map[string]int)
	exIdx := make(map[string]int)
	roleState := make(map[string]bool)
	var roleOrder []core.RoleRow
	nonceSeen := make(map[string]struct{})

	for _, d := range deltas {
		for _, r := range d.Balances {
			k := r.Account.Hex()
			if i, ok := balIdx[k]; ok {
				c.balances[i] = r
			} else {
				balIdx[k] = len(c.balances)
				c.balances = append(c.balances, r)
			}
		}
		for _, r := range d.Allowances {
			k := r.Owner.Hex() + "|" + r.Spender.Hex()
			if i, ok := allowIdx[k]; ok {
				c.allowances[i] = r
			} else {
				allowIdx[k] = len(c.allowances)
				c.allowances = append(c.allowances, r)
			}
		}
		for _, r := range d.Locks {
			k := r.Account.Hex() + "|" + r.Asset
			if i, ok := lockIdx[k]; ok {
				c.locks[i] = r
			} else {
				lockIdx[k] = len(c.locks)
				c.locks = append(c.locks, r)
			}
		}
		for _, r := range d.Reservations {
			k := fmt.Sprintf("%s|%d", r.Sender.Hex(), r.Nonce)
			if i, ok := resIdx[k]; ok {
				c.reservations[i] = r
			} else {
				resIdx[k] = len(c.reservations)
				c.reservations = append(c.reservations, r)
			}
		}
		for _, r := range d.ExchangeConfigs {
			if i, ok := exIdx[r.Asset]; ok {
				c.exchangeConfigs[i] = r
			} else {
				exIdx[r.Asset] = len(c.exchangeConfigs)
				c.exchangeConfigs = append(c.exchangeConfigs, r)
			}
		}
		for _, r := range d.Roles {
			k := r.Role + "|" + r.Account.Hex()
			if _, seen := roleState[k]; !seen {
				roleOrder = append(roleOrder, r)
			}
			roleState[k] = r.Granted
		}
		for _, r := range d.TransferNonces {
			k := fmt.Sprintf("%s|%d", r.Account.Hex(), r.Nonce)
			if _, ok := nonceSeen[k]; ok {
				continue
			}
			nonceSeen[k] = struct{}{}
			c.transferNonces = append(c.transferNonces, r)
		}
		if d.TotalSupply != "" {
			c.totalSupply = d.TotalSupply
		}
	}

	for _, r := range roleOrder {
		k := r.Role + "|" + r.Account.Hex()
		r.Granted = roleState[k]
		if r.Granted {
			c.rolesGranted = append(c.rolesGranted, r)
		} else {
			c.rolesRevoked = append(c.rolesRevoked, r)
		}
	}
	return c
}
