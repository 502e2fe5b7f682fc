package rrdp

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SqliteStore is the production Db implementation.
type SqliteStore struct {
	db *sql.DB
}

// NewSqliteStore opens (and if necessary creates) the run-state database.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return store, nil
}

// Init creates the schema.
func (s *SqliteStore) Init() error {
	// Fetch cycle audit trail
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS fetch_cycles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			outcome TEXT NOT NULL,
			serial INTEGER NOT NULL DEFAULT 0,
			object_count INTEGER NOT NULL DEFAULT 0,
			collision_count INTEGER NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create fetch_cycles table: %w", err)
	}

	// Configuration table
	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create configuration table: %w", err)
	}

	// Credentials table
	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create credentials table: %w", err)
	}

	// Scheduler status table
	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS scheduler_status (
			id INTEGER PRIMARY KEY,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			last_updated DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create scheduler_status table: %w", err)
	}

	// Kill switch attempts table
	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kill_switch_attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			attempt_type TEXT NOT NULL,
			attempted_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create kill_switch_attempts table: %w", err)
	}

	// Initialize scheduler status if not exists
	var count int
	err = s.db.QueryRow("SELECT COUNT(*) FROM scheduler_status").Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check scheduler status: %w", err)
	}
	if count == 0 {
		_, err = s.db.Exec("INSERT INTO scheduler_status (id, is_active, last_updated) VALUES (1, 1, ?)", time.Now())
		if err != nil {
			return fmt.Errorf("failed to initialize scheduler status: %w", err)
		}
	}

	return nil
}

// Close closes the database.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// RecordFetchCycle appends one cycle outcome to the audit trail.
func (s *SqliteStore) RecordFetchCycle(cycle FetchCycle) error {
	_, err := s.db.Exec(
		`INSERT INTO fetch_cycles (outcome, serial, object_count, collision_count, detail, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cycle.Outcome, cycle.Serial, cycle.ObjectCount, cycle.CollisionCount, cycle.Detail,
		cycle.StartedAt, cycle.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record fetch cycle: %w", err)
	}
	return nil
}

// GetRecentFetchCycles retrieves the most recent cycles, newest first.
func (s *SqliteStore) GetRecentFetchCycles(limit int) ([]FetchCycle, error) {
	rows, err := s.db.Query(
		`SELECT id, outcome, serial, object_count, collision_count, detail, started_at, finished_at
		 FROM fetch_cycles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query for fetch cycles: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Error("failed to close fetch cycles query", "err", closeErr)
		}
	}()

	var cycles []FetchCycle
	for rows.Next() {
		var cycle FetchCycle
		if err := rows.Scan(&cycle.ID, &cycle.Outcome, &cycle.Serial, &cycle.ObjectCount,
			&cycle.CollisionCount, &cycle.Detail, &cycle.StartedAt, &cycle.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fetch cycle row: %w", err)
		}
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fetch cycle rows: %w", err)
	}

	return cycles, nil
}

// GetConfigValue retrieves a configuration value.
func (s *SqliteStore) GetConfigValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM configuration WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get config value for key %s: %w", key, err)
	}
	return value, nil
}

// SetConfigValue sets a configuration value.
func (s *SqliteStore) SetConfigValue(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO configuration (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to set config value for key %s: %w", key, err)
	}
	return nil
}

// GetCredential retrieves a credential value.
func (s *SqliteStore) GetCredential(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM credentials WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get credential for key %s: %w", key, err)
	}
	return value, nil
}

// SetCredential sets a credential value.
func (s *SqliteStore) SetCredential(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO credentials (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to set credential for key %s: %w", key, err)
	}
	return nil
}

// GetSchedulerStatus retrieves the scheduler status.
func (s *SqliteStore) GetSchedulerStatus() (bool, error) {
	var isActive bool
	err := s.db.QueryRow("SELECT is_active FROM scheduler_status WHERE id = 1").Scan(&isActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// If no status exists, default to active
			return true, nil
		}
		return false, fmt.Errorf("failed to get scheduler status: %w", err)
	}
	return isActive, nil
}

// SetSchedulerStatus sets the scheduler status.
func (s *SqliteStore) SetSchedulerStatus(isActive bool) error {
	_, err := s.db.Exec("UPDATE scheduler_status SET is_active = ?, last_updated = ? WHERE id = 1", isActive, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set scheduler status: %w", err)
	}
	return nil
}

// RecordKillSwitchAttempt records a kill switch attempt.
func (s *SqliteStore) RecordKillSwitchAttempt(attemptType string) error {
	_, err := s.db.Exec("INSERT INTO kill_switch_attempts (attempt_type, attempted_at) VALUES (?, ?)", attemptType, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record kill switch attempt: %w", err)
	}
	return nil
}

// GetRecentKillSwitchAttempts retrieves recent kill switch attempts within the specified duration.
func (s *SqliteStore) GetRecentKillSwitchAttempts(attemptType string, duration time.Duration) (int, error) {
	cutoff := time.Now().Add(-duration)
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM kill_switch_attempts WHERE attempt_type = ? AND attempted_at >= ?",
		attemptType, cutoff,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get recent kill switch attempts: %w", err)
	}
	return count, nil
}

// CleanupOldKillSwitchAttempts removes old kill switch attempts.
func (s *SqliteStore) CleanupOldKillSwitchAttempts(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	_, err := s.db.Exec("DELETE FROM kill_switch_attempts WHERE attempted_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old kill switch attempts: %w", err)
	}
	return nil
}
