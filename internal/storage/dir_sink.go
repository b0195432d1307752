package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/TheMichaelB/sealfile/internal/config"
	"github.com/TheMichaelB/sealfile/internal/events"
)

// DirSink writes artifacts into a directory.
type DirSink struct {
	baseDir          string
	conflictStrategy ConflictStrategy
	logger           *events.Logger

	// Security settings
	allowSymlinks bool
	maxPathLength int
	maxFileSize   int64
	fileMode      os.FileMode
}

// NewDirSink creates a directory sink.
func NewDirSink(baseDir string, logger *events.Logger) (*DirSink, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &DirSink{
		baseDir:          absPath,
		conflictStrategy: ConflictOverwrite,
		logger:           logger.WithField("component", "dir_sink"),
		allowSymlinks:    false,
		maxPathLength:    260, // Windows compatibility
		maxFileSize:      100 * 1024 * 1024,
		fileMode:         0600,
	}, nil
}

// NewDirSinkFromConfig creates a directory sink with configured limits.
func NewDirSinkFromConfig(cfg *config.OutputConfig, logger *events.Logger) (*DirSink, error) {
	strategy, err := ParseConflictStrategy(cfg.Conflict)
	if err != nil {
		return nil, err
	}

	sink, err := NewDirSink(cfg.Dir, logger)
	if err != nil {
		return nil, err
	}

	sink.SetConflictStrategy(strategy)
	sink.SetMaxFileSize(cfg.MaxFileSize)

	return sink, nil
}

// SetConflictStrategy sets the conflict resolution strategy.
func (s *DirSink) SetConflictStrategy(strategy ConflictStrategy) {
	s.conflictStrategy = strategy
}

// SetMaxFileSize sets the maximum output size.
func (s *DirSink) SetMaxFileSize(size int64) {
	s.maxFileSize = size
}

// BaseDir returns the absolute output directory.
func (s *DirSink) BaseDir() string {
	return s.baseDir
}

// Write saves data atomically and returns the final path.
func (s *DirSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	safePath, err := s.sanitizeName(name)
	if err != nil {
		return "", err
	}

	if int64(len(data)) > s.maxFileSize {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, len(data), s.maxFileSize)
	}

	if stat, err := os.Lstat(safePath); err == nil {
		if stat.Mode()&os.ModeSymlink != 0 && !s.allowSymlinks {
			return "", fmt.Errorf("refusing to replace symlink: %s", name)
		}
		if stat.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrFileExists, name)
		}

		switch s.conflictStrategy {
		case ConflictError:
			return "", fmt.Errorf("%w: %s", ErrFileExists, name)
		case ConflictRename:
			safePath = s.generateConflictPath(safePath)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"path": safePath,
		"size": len(data),
	}).Debug("Writing output")

	if err := s.writeAtomic(safePath, data); err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	s.logger.WithFields(map[string]interface{}{
		"path": safePath,
		"hash": hex.EncodeToString(sum[:]),
	}).Debug("Output written")

	return safePath, nil
}

// writeAtomic writes to a temp file in the same directory and renames it.
func (s *DirSink) writeAtomic(path string, data []byte) error {
	tempPath := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, s.fileMode)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}

// sanitizeName validates an output file name and returns its full path.
// Names are single path elements; directories come only from the sink.
func (s *DirSink) sanitizeName(name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: name contains null bytes", ErrInvalidName)
	}

	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: name contains a path separator: %q", ErrInvalidName, name)
	}

	fullPath := filepath.Join(s.baseDir, name)

	if filepath.Dir(fullPath) != s.baseDir {
		return "", fmt.Errorf("%w: name escapes output directory", ErrInvalidName)
	}

	if len(fullPath) > s.maxPathLength {
		return "", fmt.Errorf("%w: path too long: %d characters (max: %d)",
			ErrInvalidName, len(fullPath), s.maxPathLength)
	}

	if err := validatePlatformName(name); err != nil {
		return "", err
	}

	return fullPath, nil
}

// validatePlatformName checks platform-specific name restrictions.
func validatePlatformName(name string) error {
	if runtime.GOOS != "windows" {
		return nil
	}

	reserved := []string{"CON", "PRN", "AUX", "NUL", "COM1", "COM2", "COM3", "COM4",
		"COM5", "COM6", "COM7", "COM8", "COM9", "LPT1", "LPT2", "LPT3",
		"LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9"}

	baseName := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
	for _, r := range reserved {
		if baseName == r {
			return fmt.Errorf("%w: reserved name '%s'", ErrInvalidName, name)
		}
	}

	for _, char := range `<>:"|?*` {
		if strings.ContainsRune(name, char) {
			return fmt.Errorf("%w: contains character '%c'", ErrInvalidName, char)
		}
	}

	return nil
}

// generateConflictPath creates a unique path next to path.
func (s *DirSink) generateConflictPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	timestamp := time.Now().Format("20060102-150405")
	candidate := filepath.Join(dir, fmt.Sprintf("%s.conflict-%s%s", name, timestamp, ext))

	for i := 1; ; i++ {
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s.conflict-%s-%d%s", name, timestamp, i, ext))
	}
}
