package query

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// QueryService provides read-only access to the event log and audit
// checks over the state tables. Live balances and reservations are
// answered by the engine directly; this service exists for history and
// integrity, where Postgres is the source.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetEvents returns a page of the event log in descending sequence
// order. account and eventType filter when non-empty; beforeSequence
// is the pagination cursor (0 means start from the newest event).
func (qs *QueryService) GetEvents(
	ctx context.Context,
	account string,
	eventType string,
	beforeSequence int64,
	limit int,
) (*EventPage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	query := `
		SELECT sequence, event_id, event_type, account, height,
		       payload, state_hash, prev_hash, timestamp
		FROM wrapledger.events
		WHERE TRUE
	`
	args := []interface{}{}
	argIdx := 1

	if account != "" {
		query += fmt.Sprintf(" AND account = $%d", argIdx)
		args = append(args, account)
		argIdx++
	}
	if eventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, eventType)
		argIdx++
	}
	if beforeSequence > 0 {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &EventPage{AsOfSequence: asOfSeq}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		page.Events = append(page.Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(page.Events) == limit {
		page.NextCursor = page.Events[len(page.Events)-1].Sequence
	}
	return page, nil
}

// GetEvent returns a single event by sequence.
func (qs *QueryService) GetEvent(ctx context.Context, sequence int64) (*EventEntry, error) {
	row := qs.db.QueryRowContext(ctx, `
		SELECT sequence, event_id, event_type, account, height,
		       payload, state_hash, prev_hash, timestamp
		FROM wrapledger.events
		WHERE sequence = $1
	`, sequence)

	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// VerifyIntegrity checks the hash chain and the supply invariant.
// The chain check finds events whose prev_hash does not match the
// previous event's state_hash. The supply check compares the sum of
// all balances against the recorded total supply.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM wrapledger.events e1
		LEFT JOIN wrapledger.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e2.sequence IS NOT NULL AND e1.prev_hash != e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var delta string
	err = qs.db.QueryRowContext(ctx, `
		SELECT (COALESCE((SELECT SUM(amount) FROM wrapledger.balances), 0)
		      - COALESCE((SELECT total_supply FROM wrapledger.ledger_meta WHERE id = 1), 0))::text
	`).Scan(&delta)
	if err != nil {
		return nil, err
	}
	if delta != "0" {
		report.SupplyDelta = delta
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && report.SupplyDelta == ""
	return report, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (EventEntry, error) {
	var e EventEntry
	var stateHash, prevHash []byte
	if err := row.Scan(
		&e.Sequence, &e.EventID, &e.EventType, &e.Account, &e.Height,
		&e.Payload, &stateHash, &prevHash, &e.Timestamp,
	); err != nil {
		return e, err
	}
	e.StateHash = hex.EncodeToString(stateHash)
	e.PrevHash = hex.EncodeToString(prevHash)
	return e, nil
}

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT sequence FROM wrapledger.ledger_meta WHERE id = 1
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
