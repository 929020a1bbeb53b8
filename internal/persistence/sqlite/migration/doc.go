// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migration files are read from an fs.FS (normally an embed.FS compiled into
// the binary) and must be named {version}_{description}.sql, for example
// "001_rooms_and_schedules.sql". Each file runs in its own transaction and is
// recorded in the schema_migrations table so it is applied at most once.
//
// Example usage:
//
//	db, err := migration.Open(migration.DefaultSQLiteConfig("data/rooms.db"))
//	if err != nil {
//		return err
//	}
//	manager := migration.NewManager(db, schemaFS, ".", logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
