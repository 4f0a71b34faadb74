package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a referenced alert id does not exist.
// Callers treat it as already-handled rather than fatal.
var ErrNotFound = errors.New("alert not found")

// Store owns the alert tables. All mutations are single statements, so
// they are atomic with respect to each other through the sql.DB pool.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite allows one writer at a time; confining the pool to a single
	// connection serializes writes and keeps every statement atomic
	db.SetMaxOpenConns(1)

	createPriceAlerts := `
	CREATE TABLE IF NOT EXISTS price_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_key TEXT NOT NULL,
		chat_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		token TEXT NOT NULL,
		target_price REAL NOT NULL,
		suppressed BOOLEAN NOT NULL DEFAULT FALSE,
		cooldown_until INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(createPriceAlerts); err != nil {
		return nil, fmt.Errorf("failed to create price_alerts table: %w", err)
	}

	createCronAlerts := `
	CREATE TABLE IF NOT EXISTS cron_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		token TEXT NOT NULL,
		cron_expr TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		last_triggered_at INTEGER,
		next_trigger_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cron_alerts_next_trigger
		ON cron_alerts (next_trigger_at);`
	if _, err := db.Exec(createCronAlerts); err != nil {
		return nil, fmt.Errorf("failed to create cron_alerts table: %w", err)
	}

	createMetricsTable := `
	CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT NOT NULL,
		label_key TEXT DEFAULT NULL,
		label_value TEXT DEFAULT NULL,
		metric_value REAL NOT NULL,
		PRIMARY KEY (metric_name, label_key, label_value)
	);`
	if _, err := db.Exec(createMetricsTable); err != nil {
		return nil, fmt.Errorf("failed to create metrics table: %w", err)
	}

	log.Println("Database initialized successfully.")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
