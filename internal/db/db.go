package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/rolodex/internal/config"
	"github.com/hpungsan/rolodex/internal/contact"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 3

// Init initializes the SQLite database at baseDir/rolodex.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.rolodex.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Pragmas in the connection string apply to all pooled connections
	dbPath := filepath.Join(baseDir, "rolodex.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: contacts
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS contacts (
		  id               TEXT PRIMARY KEY,
		  name             TEXT NOT NULL,
		  name_norm        TEXT NOT NULL,
		  company          TEXT NOT NULL DEFAULT '',
		  position         TEXT NOT NULL DEFAULT '',
		  email            TEXT NOT NULL DEFAULT '',
		  email_norm       TEXT NOT NULL DEFAULT '',
		  phone            TEXT NOT NULL DEFAULT '',
		  links_json       TEXT NOT NULL DEFAULT '[]',
		  notes_json       TEXT NOT NULL DEFAULT '[]',
		  tags_json        TEXT NOT NULL DEFAULT '[]',
		  priority         TEXT NOT NULL DEFAULT 'medium',
		  created_at       INTEGER NOT NULL,
		  last_interaction INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_contacts_name_norm ON contacts(name_norm);

		CREATE INDEX IF NOT EXISTS idx_contacts_email_norm
		ON contacts(email_norm)
		WHERE email_norm != '';

		CREATE INDEX IF NOT EXISTS idx_contacts_created ON contacts(created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_contacts_priority ON contacts(priority);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: settings
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS settings (
		  key          TEXT PRIMARY KEY,
		  value        TEXT NOT NULL,
		  last_updated INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	// Migration 2 -> 3: Unicode search keys for company, phone and tags
	if version < 3 {
		schema := `
		ALTER TABLE contacts ADD COLUMN company_norm TEXT NOT NULL DEFAULT '';
		ALTER TABLE contacts ADD COLUMN phone_norm   TEXT NOT NULL DEFAULT '';
		ALTER TABLE contacts ADD COLUMN tags_norm    TEXT NOT NULL DEFAULT '[]';
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 3 failed: %w", err)
		}
		if err := backfillSearchKeys(db); err != nil {
			return fmt.Errorf("migration 3 backfill failed: %w", err)
		}
		if err := SetUserVersion(db, 3); err != nil {
			return err
		}
	}

	return nil
}

// backfillSearchKeys fills the *_norm columns added in migration 3.
func backfillSearchKeys(db *sql.DB) error {
	type row struct{ id, company, phone, tags string }

	rows, err := db.Query(`SELECT id, company, phone, tags_json FROM contacts`)
	if err != nil {
		return err
	}
	var pending []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.company, &r.phone, &r.tags); err != nil {
			rows.Close()
			return err
		}
		pending = append(pending, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range pending {
		var tags []string
		if err := json.Unmarshal([]byte(r.tags), &tags); err != nil {
			return fmt.Errorf("contact %s: %w", r.id, err)
		}
		tagsNorm, err := encodeTagKeys(tags)
		if err != nil {
			return err
		}
		if _, err := db.Exec(`UPDATE contacts SET company_norm = ?, phone_norm = ?, tags_norm = ? WHERE id = ?`,
			contact.Key(r.company), contact.Key(r.phone), tagsNorm, r.id); err != nil {
			return err
		}
	}
	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
