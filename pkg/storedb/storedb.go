// Package storedb opens SQLite databases and applies versioned schema
// migrations, tracked per module in a shared schema_migrations table.
package storedb

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jingkaihe/enginelog/internal/errx"
)

// Migration is one schema step. Versions are per module and must increase.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

type OpenOptions struct {
	Path       string
	Module     string
	Migrations []Migration
}

const migrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  module TEXT NOT NULL,
  version INTEGER NOT NULL,
  name TEXT NOT NULL,
  applied_at TEXT NOT NULL,
  PRIMARY KEY (module, version)
);`

// Open opens (creating if needed) the database at opts.Path and brings the
// module's schema up to date.
func Open(opts OpenOptions) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, errx.Wrap(ErrCreateDir, err)
	}

	dsn := "file:" + opts.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errx.Wrap(ErrOpen, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errx.Wrap(ErrOpen, err)
	}

	if err := migrate(db, opts.Module, opts.Migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB, module string, migrations []Migration) error {
	if _, err := db.Exec(migrationsTable); err != nil {
		return errx.Wrap(ErrMigrate, err)
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations WHERE module = ?`, module)
	if err := row.Scan(&current); err != nil {
		return errx.Wrap(ErrMigrate, err)
	}

	last := 0
	for _, m := range migrations {
		if m.Version <= last {
			return errx.With(ErrMigrationSeq, ": %s version %d", module, m.Version)
		}
		last = m.Version
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return errx.Wrap(ErrMigrate, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return errx.With(ErrMigrate, " %s/%d (%s): %w", module, m.Version, m.Name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (module, version, name, applied_at) VALUES (?, ?, ?, ?)`,
			module, m.Version, m.Name, time.Now().UTC().Format(time.RFC3339Nano),
		); err != nil {
			tx.Rollback()
			return errx.Wrap(ErrMigrate, err)
		}
		if err := tx.Commit(); err != nil {
			return errx.Wrap(ErrMigrate, err)
		}
	}
	return nil
}
