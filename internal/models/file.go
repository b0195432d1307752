package models

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SourceFile is a file selected for encryption.
type SourceFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`

	open func() (io.ReadCloser, error)
}

// NewSourceFile wraps in-memory content.
func NewSourceFile(name string, data []byte) *SourceFile {
	return &SourceFile{
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// NewSourceFileFromReader creates a file whose content is produced by open.
func NewSourceFileFromReader(name string, size int64, open func() (io.ReadCloser, error)) *SourceFile {
	return &SourceFile{
		Name: name,
		Size: size,
		open: open,
	}
}

// OpenSourceFile references a file on disk. Content is read lazily.
func OpenSourceFile(path string) (*SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &SourceFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// Open returns a reader over the file content.
func (f *SourceFile) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no content", f.Name)
	}
	return f.open()
}
