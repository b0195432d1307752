package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/sealfile/internal/events"
)

// SQLiteStore implements SQLite-based history storage.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore creates a SQLite history store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_history_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS history (
        id TEXT PRIMARY KEY,
        file_name TEXT NOT NULL,
        file_size INTEGER NOT NULL DEFAULT 0,
        output_name TEXT,
        location TEXT,
        algorithm TEXT NOT NULL,
        hash TEXT NOT NULL,
        iterations INTEGER NOT NULL,
        outcome TEXT NOT NULL,
        error_code TEXT,
        error TEXT,
        started_at TIMESTAMP NOT NULL,
        duration_ns INTEGER NOT NULL DEFAULT 0
    );

    CREATE INDEX IF NOT EXISTS idx_history_started ON history(started_at);

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Append inserts a record.
func (s *SQLiteStore) Append(record *Record) error {
	s.logger.WithFields(map[string]interface{}{
		"id":      record.ID,
		"outcome": record.Outcome,
	}).Debug("Appending history record")

	_, err := s.db.Exec(`
        INSERT INTO history (id, file_name, file_size, output_name, location, algorithm, hash,
            iterations, outcome, error_code, error, started_at, duration_ns)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, record.ID, record.FileName, record.FileSize,
		nullString(record.OutputName), nullString(record.Location),
		record.Algorithm, record.Hash, record.Iterations, string(record.Outcome),
		nullString(record.ErrorCode), nullString(record.Error),
		record.StartedAt.UTC(), int64(record.Duration))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

// List returns records newest first.
func (s *SQLiteStore) List(limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.Query(`
        SELECT id, file_name, file_size, output_name, location, algorithm, hash,
            iterations, outcome, error_code, error, started_at, duration_ns
        FROM history
        ORDER BY started_at DESC, rowid DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			r                                         Record
			outcome                                   string
			outputName, location, errorCode, errorMsg sql.NullString
			startedAt                                 time.Time
			durationNs                                int64
		)

		if err := rows.Scan(&r.ID, &r.FileName, &r.FileSize, &outputName, &location,
			&r.Algorithm, &r.Hash, &r.Iterations, &outcome, &errorCode, &errorMsg,
			&startedAt, &durationNs); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		r.Outcome = Outcome(outcome)
		r.OutputName = outputName.String
		r.Location = location.String
		r.ErrorCode = errorCode.String
		r.Error = errorMsg.String
		r.StartedAt = startedAt
		r.Duration = time.Duration(durationNs)

		records = append(records, &r)
	}

	return records, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
