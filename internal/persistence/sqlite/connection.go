package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/sqlite/migration"
)

// Store implements the persistence contracts on top of a SQLite database.
type Store struct {
	db    *sqlx.DB
	retry *RetryHelper
}

var (
	_ persistence.BranchRepository = (*Store)(nil)
	_ persistence.RoomRepository   = (*Store)(nil)
	_ persistence.ScheduleStore    = (*Store)(nil)
)

// New wraps an already opened database. The schema must be migrated.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, retry: NewRetryHelper(DefaultRetryConfig())}
}

// Open connects using config and applies the embedded schema migrations.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	db, err := migration.Open(config)
	if err != nil {
		return nil, err
	}
	if err := migration.NewManager(db, SchemaFS, SchemaDir, logger).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return New(db), nil
}

// WithRetryConfig replaces the retry policy for transient lock errors.
func (s *Store) WithRetryConfig(config RetryConfig) *Store {
	s.retry = NewRetryHelper(config)
	return s
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping tests the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// TransactionFunc is executed inside WithTransaction.
type TransactionFunc func(tx *sqlx.Tx) error

// WithTransaction runs fn in a transaction. It commits when fn returns nil and
// rolls back on error or panic.
func (s *Store) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// mapError translates driver errors into persistence sentinels. The driver
// reports constraint failures only through message text.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	for _, sentinel := range []error{
		persistence.ErrNotFound, persistence.ErrOverlap, persistence.ErrDuplicate,
		persistence.ErrConstraintViolation, persistence.ErrForeignKeyViolation, persistence.ErrUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "PRIMARY KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case strings.Contains(msg, "CHECK constraint failed"), strings.Contains(msg, "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "SQLITE_BUSY"), strings.Contains(msg, "sql: database is closed"):
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	return err
}

// RetryConfig configures retry behavior for transient database errors.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  20 * time.Millisecond,
		MaxDelay:      500 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

// RetryHelper retries operations that failed with persistence.ErrUnavailable.
type RetryHelper struct {
	config RetryConfig
}

// NewRetryHelper creates a new retry helper.
func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{config: config}
}

// WithRetry executes fn, retrying with exponential backoff while it reports
// a transient error. Other errors are returned immediately after mapping.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", persistence.ErrUnavailable, ctx.Err())
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
			if delay > rh.config.MaxDelay {
				delay = rh.config.MaxDelay
			}
		}

		lastErr = mapError(fn())
		if lastErr == nil || !errors.Is(lastErr, persistence.ErrUnavailable) {
			return lastErr
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", rh.config.MaxRetries, lastErr)
}
