package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Migration is one forward/backward schema step, identified by a
// monotonic version number.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Migrator runs a fixed ordered list of Migrations against a sql.DB,
// tracking progress in a schema_version table.
type Migrator struct {
	DB         *sql.DB
	Migrations []Migration

	// InsertVersionSQL is the dialect-specific statement used to record
	// an applied migration; it takes (version, name, applied_at) in
	// that order. Defaults to "?"-style placeholders (sqlite, mysql).
	InsertVersionSQL string
}

const schemaVersionDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL
)
`

func NewMigrator(db *sql.DB, migrations []Migration) *Migrator {
	return &Migrator{
		DB:               db,
		Migrations:       migrations,
		InsertVersionSQL: "INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)",
	}
}

// NewPostgresMigrator builds a Migrator using $-style placeholders.
func NewPostgresMigrator(db *sql.DB, migrations []Migration) *Migrator {
	m := NewMigrator(db, migrations)
	m.InsertVersionSQL = "INSERT INTO schema_version (version, name, applied_at) VALUES ($1, $2, $3)"
	return m
}

// currentVersion returns the highest applied migration version, or 0 if
// none has run yet.
func (m *Migrator) currentVersion(ctx context.Context) (int, error) {
	if _, err := m.DB.ExecContext(ctx, schemaVersionDDL); err != nil {
		return 0, fmt.Errorf("migrate: ensure schema_version: %w", err)
	}
	var v sql.NullInt64
	err := m.DB.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("migrate: read current version: %w", err)
	}
	return int(v.Int64), nil
}

// Up applies every migration whose Version is greater than the current
// schema version, in ascending order.
func (m *Migrator) Up(ctx context.Context) error {
	current, err := m.currentVersion(ctx)
	if err != nil {
		return err
	}
	for _, mig := range m.Migrations {
		if mig.Version <= current {
			continue
		}
		tx, err := m.DB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migrate: begin: %w", err)
		}
		if _, err := tx.ExecContext(ctx, mig.Up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate: apply %d (%s): %w", mig.Version, mig.Name, err)
		}
		if _, err := tx.ExecContext(ctx, m.InsertVersionSQL, mig.Version, mig.Name, time.Now()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate: record %d: %w", mig.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate: commit %d: %w", mig.Version, err)
		}
	}
	return nil
}

// DryRun reports which migrations would run without applying any of
// them. Reading the current version still creates the schema_version
// table if it does not exist yet.
func (m *Migrator) DryRun(ctx context.Context) ([]Migration, error) {
	current, err := m.currentVersion(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range m.Migrations {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// BackupSQLite copies a SQLite database file to dst before a migration
// run, so RollbackFromBackup has somewhere to restore from. Other
// backends are expected to snapshot externally (pg_dump, mysqldump) and
// pass the resulting path straight to RollbackFromBackup.
func BackupSQLite(srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("migrate: backup read: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("migrate: backup mkdir: %w", err)
	}
	if err := os.WriteFile(dstPath, data, 0o600); err != nil {
		return fmt.Errorf("migrate: backup write: %w", err)
	}
	return nil
}

// RollbackFromBackup restores a SQLite database file from a snapshot
// taken by BackupSQLite. The caller must close and reopen the
// connection afterward.
func RollbackFromBackup(backupPath, dbPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("migrate: rollback read: %w", err)
	}
	if err := os.WriteFile(dbPath, data, 0o600); err != nil {
		return fmt.Errorf("migrate: rollback write: %w", err)
	}
	return nil
}
