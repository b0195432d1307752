package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterSink streams artifacts to a writer such as stdout.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write copies data to the writer. The name is only echoed back.
func (s *WriterSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(data); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	return name, nil
}
