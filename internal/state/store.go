package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/TheMichaelB/sealfile/internal/config"
	"github.com/TheMichaelB/sealfile/internal/events"
)

// Store keeps a history of encryption attempts. Records never hold
// passwords, keys, salts or nonces.
type Store interface {
	// Append adds a record.
	Append(record *Record) error

	// List returns up to limit records, newest first. A limit <= 0 returns all.
	List(limit int) ([]*Record, error)

	// Close releases resources.
	Close() error
}

// Outcome of an encryption attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Record describes one encryption attempt.
type Record struct {
	ID         string        `json:"id"`
	FileName   string        `json:"file_name"`
	FileSize   int64         `json:"file_size"`
	OutputName string        `json:"output_name,omitempty"`
	Location   string        `json:"location,omitempty"`
	Algorithm  string        `json:"algorithm"`
	Hash       string        `json:"hash"`
	Iterations int           `json:"iterations"`
	Outcome    Outcome       `json:"outcome"`
	ErrorCode  string        `json:"error_code,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Errors
var (
	ErrHistoryCorrupt = errors.New("history entry is corrupt")
)

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1

// Open creates the store selected by cfg.
func Open(cfg config.HistoryConfig, logger *events.Logger) (Store, error) {
	switch cfg.Backend {
	case config.HistoryNone, "":
		return NopStore{}, nil
	case config.HistoryJSON:
		return NewJSONStore(cfg.Path, logger)
	case config.HistorySQLite:
		return NewSQLiteStore(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.Backend)
	}
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(*Record) error        { return nil }
func (NopStore) List(int) ([]*Record, error) { return nil, nil }
func (NopStore) Close() error                { return nil }
