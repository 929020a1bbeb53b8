package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version         int    `db:"version"`
	AppliedAt       string `db:"applied_at"`
	Checksum        string `db:"checksum"`
	ExecutionTimeMS int64  `db:"execution_time_ms"`
}

const createVersionTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL,
	checksum TEXT NOT NULL,
	execution_time_ms INTEGER NOT NULL DEFAULT 0
)`

// executor runs migrations and keeps the version table.
type executor struct {
	db *sqlx.DB
}

func (e *executor) initVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, createVersionTable); err != nil {
		return NewDatabaseError("", "create schema_migrations table", err)
	}
	return nil
}

func (e *executor) applied(ctx context.Context) (map[int]AppliedMigration, error) {
	var rows []AppliedMigration
	err := e.db.SelectContext(ctx, &rows,
		`SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, NewDatabaseError("", "list applied migrations", err)
	}
	applied := make(map[int]AppliedMigration, len(rows))
	for _, row := range rows {
		applied[row.Version] = row
	}
	return applied, nil
}

// execute runs every statement of m and records it in one transaction.
func (e *executor) execute(ctx context.Context, m Migration, now time.Time) (err error) {
	version := fmt.Sprint(m.Version)
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewDatabaseError(version, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	started := time.Now()
	for i, stmt := range splitStatements(m.SQL) {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			return NewDatabaseError(version, fmt.Sprintf("execute statement %d", i+1), execErr)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
		m.Version, now.UTC().Format(time.RFC3339), m.Checksum, time.Since(started).Milliseconds(),
	); err != nil {
		return NewDatabaseError(version, "record migration", err)
	}
	if err = tx.Commit(); err != nil {
		return NewDatabaseError(version, "commit transaction", err)
	}
	return nil
}
