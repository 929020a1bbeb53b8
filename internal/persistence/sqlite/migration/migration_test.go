package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openMemoryDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(InMemoryTestSQLiteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sqlFile(content string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(content)}
}

func TestScan(t *testing.T) {
	t.Parallel()

	t.Run("orders by version and skips other files", func(t *testing.T) {
		fsys := fstest.MapFS{
			"m/010_add_index.sql":     sqlFile("CREATE INDEX idx ON things(name);"),
			"m/002_create_things.sql": sqlFile("-- things\nCREATE TABLE things (name TEXT);"),
			"m/README.md":             sqlFile("not a migration"),
		}
		migrations, err := Scan(fsys, "m")
		require.NoError(t, err)
		require.Len(t, migrations, 2)
		assert.Equal(t, 2, migrations[0].Version)
		assert.Equal(t, "create things", migrations[0].Description)
		assert.Equal(t, 10, migrations[1].Version)
		assert.Len(t, migrations[0].Checksum, 64)
	})

	cases := []struct {
		name string
		fsys fstest.MapFS
		want error
	}{
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"m/001_a.sql": sqlFile("CREATE TABLE a (id INTEGER);"),
				"m/1_b.sql":   sqlFile("CREATE TABLE b (id INTEGER);"),
			},
			want: ErrDuplicateVersion,
		},
		{
			name: "invalid filename",
			fsys: fstest.MapFS{"m/create tables.sql": sqlFile("CREATE TABLE a (id INTEGER);")},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "comment only",
			fsys: fstest.MapFS{"m/001_empty.sql": sqlFile("-- nothing here\n;")},
			want: ErrInvalidMigrationFile,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Scan(tc.fsys, "m")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var migErr *MigrationError
			assert.True(t, errors.As(err, &migErr))
		})
	}

	t.Run("missing directory", func(t *testing.T) {
		_, err := Scan(fstest.MapFS{}, "nowhere")
		var fsErr *FileSystemError
		assert.True(t, errors.As(err, &fsErr))
	})
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	statements := splitStatements("-- header\nCREATE TABLE a (id INTEGER);\n\n  -- note\nCREATE TABLE b (id INTEGER);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id INTEGER)", "CREATE TABLE b (id INTEGER)"}, statements)

	statements = splitStatements("-- a; b; c\nCREATE TABLE a (id INTEGER);\n  -- trailing; note\n")
	assert.Equal(t, []string{"CREATE TABLE a (id INTEGER)"}, statements)
}

func TestManagerRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fsys := fstest.MapFS{
		"m/001_things.sql": sqlFile("CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT NOT NULL);"),
		"m/002_index.sql":  sqlFile("CREATE INDEX idx_things_name ON things(name);"),
	}

	t.Run("applies pending migrations once", func(t *testing.T) {
		db := openMemoryDB(t)
		manager := NewManager(db, fsys, "m", quietLogger())

		require.NoError(t, manager.Run(ctx))
		require.NoError(t, manager.Run(ctx))

		status, err := manager.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, status.CurrentVersion)
		assert.Equal(t, []int{1, 2}, status.Applied)
		assert.Empty(t, status.Pending)

		_, err = db.ExecContext(ctx, `INSERT INTO things (name) VALUES ('chair')`)
		assert.NoError(t, err)
	})

	t.Run("semicolons in comments do not split statements", func(t *testing.T) {
		db := openMemoryDB(t)
		commented := fstest.MapFS{
			"m/001_things.sql": sqlFile("-- Things have names; names are unique.\nCREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE);\n-- Lookups; by name.\nCREATE INDEX idx_things_name ON things(name);\n"),
		}
		require.NoError(t, NewManager(db, commented, "m", quietLogger()).Run(ctx))

		_, err := db.ExecContext(ctx, `INSERT INTO things (name) VALUES ('desk')`)
		assert.NoError(t, err)
	})

	t.Run("stops at a failing migration", func(t *testing.T) {
		db := openMemoryDB(t)
		broken := fstest.MapFS{
			"m/001_things.sql": fsys["m/001_things.sql"],
			"m/002_broken.sql": sqlFile("CREATE TABLE broken (;"),
		}
		manager := NewManager(db, broken, "m", quietLogger())

		err := manager.Run(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMigrationFailed)

		status, err := manager.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, status.Applied)
		require.Len(t, status.Pending, 1)
		assert.Equal(t, 2, status.Pending[0].Version)
	})

	t.Run("detects edited migrations", func(t *testing.T) {
		db := openMemoryDB(t)
		require.NoError(t, NewManager(db, fsys, "m", quietLogger()).Run(ctx))

		edited := fstest.MapFS{
			"m/001_things.sql": sqlFile("CREATE TABLE things (id INTEGER PRIMARY KEY);"),
			"m/002_index.sql":  fsys["m/002_index.sql"],
		}
		err := NewManager(db, edited, "m", quietLogger()).Run(ctx)
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})
}

func TestSQLiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("connection string carries pragmas", func(t *testing.T) {
		dsn := DefaultSQLiteConfig("data/rooms.db").ConnectionString()
		assert.Contains(t, dsn, "data/rooms.db?")
		assert.Contains(t, dsn, "_pragma=busy_timeout%285000%29")
		assert.Contains(t, dsn, "_pragma=foreign_keys%281%29")
		assert.Contains(t, dsn, "_pragma=journal_mode%28WAL%29")
	})

	t.Run("validation", func(t *testing.T) {
		assert.NoError(t, DefaultSQLiteConfig("rooms.db").Validate())

		cfg := DefaultSQLiteConfig("rooms.db")
		cfg.JournalMode = "SIDEWAYS"
		assert.Error(t, cfg.Validate())

		cfg = DefaultSQLiteConfig(" ")
		assert.Error(t, cfg.Validate())

		_, err := Open(SQLiteConfig{DSN: "rooms.db", BusyTimeout: -1})
		assert.Error(t, err)
	})

	t.Run("open creates the parent directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "rooms.db")
		db, err := Open(DefaultSQLiteConfig(path))
		require.NoError(t, err)
		assert.NoError(t, db.Close())
		assert.FileExists(t, path)
	})
}
