package persistence

import (
	"context"
	"database/sql"
	"time"
)

// PostgresDedupChecker is the slow tier of operation dedup. The
// ingestion loop records every applied op id here so redelivered NATS
// messages are dropped even after a restart evicts the in-memory LRU.
// Satisfies core.DBDedupChecker.
type PostgresDedupChecker struct {
	db *sql.DB
}

func NewPostgresDedupChecker(db *sql.DB) *PostgresDedupChecker {
	return &PostgresDedupChecker{db: db}
}

// IsDuplicate reports whether an op with this kind and id has already
// been applied.
func (pc *PostgresDedupChecker) IsDuplicate(opKind string, opID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var exists int
	err := pc.db.QueryRowContext(ctx, `
		SELECT 1
		FROM wrapledger.applied_ops
		WHERE op_kind = $1 AND op_id = $2
		LIMIT 1`,
		opKind, opID,
	).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record persists an applied op id. Best effort: a miss here only
// means a redelivered op falls through to the engine's nonce checks.
func (pc *PostgresDedupChecker) Record(opKind string, opID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := pc.db.ExecContext(ctx, `
		INSERT INTO wrapledger.applied_ops (op_kind, op_id)
		VALUES ($1, $2)
		ON CONFLICT (op_kind, op_id) DO NOTHING`,
		opKind, opID,
	)
	return err
}
