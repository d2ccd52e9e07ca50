package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// migrationLockKey serializes concurrent migrators via pg_advisory_lock.
const migrationLockKey = 0x77726170 // "wrap"

// migration pairs the up and down files for one version. File naming
// follows golang-migrate: {version}_{name}.up.sql / {version}_{name}.down.sql.
type migration struct {
	version  string
	upFile   string
	downFile string
}

// Migrator applies SQL migration files from a directory, recording
// applied versions in public.wrapledger_migrations.
type Migrator struct {
	db  *sql.DB
	dir string
}

func NewMigrator(db *sql.DB, migrationsDir string) *Migrator {
	return &Migrator{db: db, dir: migrationsDir}
}

// Up applies every pending migration in version order. Safe to run from
// multiple replicas at once: an advisory lock serializes them and the
// version table makes each migration apply exactly once.
func (m *Migrator) Up(ctx context.Context) error {
	return m.withLock(ctx, func(conn *sql.Conn) error {
		applied, err := m.appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		migrations, err := m.discover()
		if err != nil {
			return err
		}

		for _, mig := range migrations {
			if applied[mig.version] {
				continue
			}
			if err := m.runOne(ctx, conn, mig); err != nil {
				return err
			}
			log.Printf("INFO: applied migration %s", mig.upFile)
		}
		return nil
	})
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	return m.withLock(ctx, func(conn *sql.Conn) error {
		var version string
		err := conn.QueryRowContext(ctx,
			`SELECT version FROM public.wrapledger_migrations ORDER BY version DESC LIMIT 1`,
		).Scan(&version)
		if err == sql.ErrNoRows {
			log.Println("INFO: no migrations to roll back")
			return nil
		}
		if err != nil {
			return fmt.Errorf("latest migration: %w", err)
		}

		migrations, err := m.discover()
		if err != nil {
			return err
		}
		var target *migration
		for i := range migrations {
			if migrations[i].version == version {
				target = &migrations[i]
			}
		}
		if target == nil || target.downFile == "" {
			return fmt.Errorf("no down file for version %s", version)
		}

		sqlText, err := os.ReadFile(filepath.Join(m.dir, target.downFile))
		if err != nil {
			return fmt.Errorf("read %s: %w", target.downFile, err)
		}

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, string(sqlText)); err != nil {
			return fmt.Errorf("exec %s: %w", target.downFile, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM public.wrapledger_migrations WHERE version = $1`, version,
		); err != nil {
			return fmt.Errorf("unrecord %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Printf("INFO: rolled back migration %s", target.downFile)
		return nil
	})
}

// withLock pins a single connection, takes the advisory lock on it, and
// makes sure the version table exists before fn runs.
func (m *Migrator) withLock(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	defer conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockKey)

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS public.wrapledger_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("ensure version table: %w", err)
	}

	return fn(conn)
}

func (m *Migrator) runOne(ctx context.Context, conn *sql.Conn, mig migration) error {
	sqlText, err := os.ReadFile(filepath.Join(m.dir, mig.upFile))
	if err != nil {
		return fmt.Errorf("read %s: %w", mig.upFile, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", mig.upFile, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(sqlText)); err != nil {
		return fmt.Errorf("exec %s: %w", mig.upFile, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO public.wrapledger_migrations (version, filename) VALUES ($1, $2)`,
		mig.version, mig.upFile,
	); err != nil {
		return fmt.Errorf("record %s: %w", mig.upFile, err)
	}
	return tx.Commit()
}

// discover pairs up/down files by version, sorted ascending.
func (m *Migrator) discover() ([]migration, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := make(map[string]*migration)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		version, ok := splitVersion(name)
		if !ok {
			continue
		}
		mig := byVersion[version]
		if mig == nil {
			mig = &migration{version: version}
			byVersion[version] = mig
		}
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			mig.upFile = name
		case strings.HasSuffix(name, ".down.sql"):
			mig.downFile = name
		}
	}

	out := make([]migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.upFile == "" {
			return nil, fmt.Errorf("version %s has a down file but no up file", mig.version)
		}
		out = append(out, *mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func (m *Migrator) appliedVersions(ctx context.Context, conn *sql.Conn) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM public.wrapledger_migrations`)
	if err != nil {
		return nil, fmt.Errorf("applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// splitVersion returns the numeric prefix of "000001_wrapledger.up.sql".
func splitVersion(name string) (string, bool) {
	if !strings.HasSuffix(name, ".sql") {
		return "", false
	}
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return "", false
	}
	return name[:idx], true
}

// AppliedMigration is one row of the version table, for cmd/migrate status.
type AppliedMigration struct {
	Version   string
	Filename  string
	AppliedAt time.Time
}

// Status lists applied migrations in order.
func (m *Migrator) Status(ctx context.Context) ([]AppliedMigration, error) {
	var out []AppliedMigration
	err := m.withLock(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT version, filename, applied_at FROM public.wrapledger_migrations ORDER BY version`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var a AppliedMigration
			if err := rows.Scan(&a.Version, &a.Filename, &a.AppliedAt); err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}
