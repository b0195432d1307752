package testutil

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/TheMichaelB/sealfile/internal/crypto"
	"github.com/TheMichaelB/sealfile/internal/models"
)

// MockSink mocks the output sink interface.
type MockSink struct {
	mock.Mock
}

func NewMockSink() *MockSink {
	return &MockSink{}
}

func (m *MockSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	args := m.Called(ctx, name, data)
	return args.String(0), args.Error(1)
}

// MockRandom mocks the random source interface.
type MockRandom struct {
	mock.Mock
}

func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

func (m *MockRandom) Bytes(n int) ([]byte, error) {
	args := m.Called(n)
	if data := args.Get(0); data != nil {
		return data.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

// CountingRandom counts draws from an underlying source.
type CountingRandom struct {
	source crypto.RandomSource
	calls  atomic.Int64
}

// NewCountingRandom wraps the system CSPRNG.
func NewCountingRandom() *CountingRandom {
	return &CountingRandom{source: crypto.SystemRandom()}
}

func (c *CountingRandom) Bytes(n int) ([]byte, error) {
	c.calls.Add(1)
	return c.source.Bytes(n)
}

// Calls returns the number of draws so far.
func (c *CountingRandom) Calls() int {
	return int(c.calls.Load())
}

// BlockingFile is a source file whose content is withheld until Release.
type BlockingFile struct {
	*models.SourceFile

	opened  chan struct{}
	release chan struct{}
	once    sync.Once
}

// NewBlockingFile creates a file that blocks readers after Open.
func NewBlockingFile(name string, content []byte) *BlockingFile {
	b := &BlockingFile{
		opened:  make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	b.SourceFile = models.NewSourceFileFromReader(name, int64(len(content)), func() (io.ReadCloser, error) {
		select {
		case b.opened <- struct{}{}:
		default:
		}
		return &blockingReader{content: content, release: b.release}, nil
	})
	return b
}

// Opened is signalled once a reader has been opened.
func (b *BlockingFile) Opened() <-chan struct{} {
	return b.opened
}

// Release lets readers proceed.
func (b *BlockingFile) Release() {
	b.once.Do(func() { close(b.release) })
}

type blockingReader struct {
	content []byte
	release chan struct{}
	off     int
}

func (r *blockingReader) Read(p []byte) (int, error) {
	<-r.release
	if r.off >= len(r.content) {
		return 0, io.EOF
	}
	n := copy(p, r.content[r.off:])
	r.off += n
	return n, nil
}

func (r *blockingReader) Close() error {
	return nil
}

// FailingFile returns a source file whose reader fails with err after
// delivering nothing.
func FailingFile(name string, size int64, err error) *models.SourceFile {
	if err == nil {
		err = errors.New("read failed")
	}
	return models.NewSourceFileFromReader(name, size, func() (io.ReadCloser, error) {
		return io.NopCloser(errReader{err: err}), nil
	})
}

type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}
