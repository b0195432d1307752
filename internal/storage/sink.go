package storage

import (
	"context"
	"errors"
	"fmt"
)

// OutputSink delivers a finished artifact. It stands in for the host's
// "save as" side effect.
type OutputSink interface {
	// Write stores data under name and returns where it was written.
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// Errors
var (
	ErrFileExists   = errors.New("file already exists")
	ErrFileTooLarge = errors.New("file too large")
	ErrInvalidName  = errors.New("invalid output name")
)

// ConflictStrategy defines how to handle an existing output file.
type ConflictStrategy int

const (
	// ConflictOverwrite replaces existing files.
	ConflictOverwrite ConflictStrategy = iota

	// ConflictRename creates a new file with suffix.
	ConflictRename

	// ConflictError returns an error on conflict.
	ConflictError
)

// ParseConflictStrategy converts a config value.
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	switch s {
	case "", "overwrite":
		return ConflictOverwrite, nil
	case "rename":
		return ConflictRename, nil
	case "error":
		return ConflictError, nil
	default:
		return ConflictOverwrite, fmt.Errorf("unknown conflict strategy: %s", s)
	}
}

func (c ConflictStrategy) String() string {
	switch c {
	case ConflictOverwrite:
		return "overwrite"
	case ConflictRename:
		return "rename"
	case ConflictError:
		return "error"
	default:
		return "unknown"
	}
}
