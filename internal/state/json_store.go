package state

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/TheMichaelB/sealfile/internal/events"
)

// JSONStore appends records to a JSON-lines file.
type JSONStore struct {
	path   string
	logger *events.Logger

	mu sync.Mutex
}

// entry wraps a record with store metadata.
type entry struct {
	*Record

	SchemaVersion int    `json:"schema_version"`
	Checksum      string `json:"checksum,omitempty"`
}

// NewJSONStore creates a JSON-lines history store at path.
func NewJSONStore(path string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	return &JSONStore{
		path:   path,
		logger: logger.WithField("component", "json_history_store"),
	}, nil
}

// Append writes one line for record.
func (s *JSONStore) Append(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	checksum, err := recordChecksum(record)
	if err != nil {
		return err
	}

	line, err := json.Marshal(entry{
		Record:        record,
		SchemaVersion: CurrentSchemaVersion,
		Checksum:      checksum,
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')

	s.logger.WithFields(map[string]interface{}{
		"id":      record.ID,
		"outcome": record.Outcome,
	}).Debug("Appending history record")

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(line); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}

	return file.Sync()
}

// List reads the file and returns records newest first. Corrupt lines are
// skipped with a warning.
func (s *JSONStore) List(limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	var records []*Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		record, err := decodeEntry(line)
		if err != nil {
			s.logger.WithError(err).WithField("line", lineNo).Warn("Skipping history entry")
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}

	// Newest first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

func decodeEntry(line []byte) (*Record, error) {
	var e entry
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryCorrupt, err)
	}
	if e.Record == nil {
		return nil, ErrHistoryCorrupt
	}

	if e.Checksum != "" {
		calculated, err := recordChecksum(e.Record)
		if err != nil {
			return nil, err
		}
		if calculated != e.Checksum {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrHistoryCorrupt)
		}
	}

	return e.Record, nil
}

func recordChecksum(record *Record) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal record for checksum: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
