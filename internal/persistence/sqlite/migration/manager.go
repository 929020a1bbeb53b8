package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// Status summarises the schema state of a database.
type Status struct {
	CurrentVersion int
	Applied        []int
	Pending        []Migration
}

// Manager applies migrations from a file system to a database.
type Manager struct {
	exec   *executor
	fsys   fs.FS
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewManager builds a manager reading *.sql files from dir of fsys.
func NewManager(db *sqlx.DB, fsys fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		exec:   &executor{db: db},
		fsys:   fsys,
		dir:    dir,
		logger: logger.With("component", "migration"),
		now:    time.Now,
	}
}

// Status reports applied and pending migrations without changing anything.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.exec.initVersionTable(ctx); err != nil {
		return Status{}, err
	}
	available, err := Scan(m.fsys, m.dir)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.exec.applied(ctx)
	if err != nil {
		return Status{}, err
	}

	var status Status
	for _, mig := range available {
		row, ok := applied[mig.Version]
		if !ok {
			status.Pending = append(status.Pending, mig)
			continue
		}
		if row.Checksum != mig.Checksum {
			return Status{}, NewMigrationError(strconv.Itoa(mig.Version), mig.FilePath, "verify checksum", ErrChecksumMismatch)
		}
		status.Applied = append(status.Applied, mig.Version)
		status.CurrentVersion = mig.Version
	}
	return status, nil
}

// Run applies pending migrations in version order and stops at the first failure.
func (m *Manager) Run(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "migration status failed", "error", err)
		return err
	}
	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "current_version", status.CurrentVersion, "pending", len(status.Pending))
	for _, mig := range status.Pending {
		started := time.Now()
		if err := m.exec.execute(ctx, mig, m.now()); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", mig.Version, "file", mig.FilePath, "error", err)
			return NewMigrationError(strconv.Itoa(mig.Version), mig.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", mig.Version,
			"description", mig.Description,
			"duration", time.Since(started),
		)
	}
	return nil
}
