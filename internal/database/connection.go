package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("database: not found")

// DriverFor maps a configured database type to its database/sql driver name.
func DriverFor(dbType string) (string, error) {
	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	case "postgres", "postgresql":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported database type %q", dbType)
	}
}

// Connect establishes a connection to the configured database and applies the schema
func Connect(ctx context.Context, dbType, dsn string) (*sqlx.DB, error) {
	driver, err := DriverFor(dbType)
	if err != nil {
		return nil, err
	}

	// Create data directory if it doesn't exist
	if driver == "sqlite3" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	return Open(ctx, driver, dsn)
}

// Open connects with an explicit driver name and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if isSQLite(driver) {
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := initializeSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func isSQLite(driver string) bool {
	return driver == "sqlite3" || driver == "sqlite"
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(ctx context.Context, db *sqlx.DB) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if !isSQLite(db.DriverName()) {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	statements := []struct {
		name  string
		query string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id BIGINT PRIMARY KEY,
				username TEXT NOT NULL DEFAULT '',
				first_name TEXT NOT NULL DEFAULT '',
				is_admin BOOLEAN NOT NULL DEFAULT FALSE,
				notification_enabled BOOLEAN NOT NULL DEFAULT TRUE,
				notification_hour INTEGER NOT NULL DEFAULT 9,
				cards_per_day INTEGER NOT NULL DEFAULT 20
			)`},
		{"cards", `
			CREATE TABLE IF NOT EXISTS cards (
				id ` + idColumn + `,
				user_id BIGINT NOT NULL REFERENCES users(id),
				deck TEXT NOT NULL DEFAULT '',
				front TEXT NOT NULL,
				back TEXT NOT NULL,
				context TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL,
				UNIQUE(user_id, deck, front)
			)`},
		{"review_states", `
			CREATE TABLE IF NOT EXISTS review_states (
				user_id BIGINT NOT NULL REFERENCES users(id),
				card_id BIGINT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
				interval_days INTEGER NOT NULL DEFAULT 1,
				ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
				repetitions INTEGER NOT NULL DEFAULT 0,
				next_review TIMESTAMP NOT NULL,
				last_quality INTEGER NOT NULL DEFAULT 0,
				manual_priority INTEGER,
				updated_at TIMESTAMP NOT NULL,
				PRIMARY KEY (user_id, card_id)
			)`},
		{"review_log", `
			CREATE TABLE IF NOT EXISTS review_log (
				id ` + idColumn + `,
				user_id BIGINT NOT NULL,
				card_id BIGINT NOT NULL,
				quality INTEGER NOT NULL,
				interval_days INTEGER NOT NULL,
				review_duration_seconds DOUBLE PRECISION,
				session_id TEXT NOT NULL DEFAULT '',
				reviewed_at TIMESTAMP NOT NULL
			)`},
		{"review_log index", `CREATE INDEX IF NOT EXISTS idx_review_log_user ON review_log(user_id)`},
	}

	for _, st := range statements {
		if _, err := db.ExecContext(ctx, st.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", st.name, err)
		}
	}
	return nil
}
