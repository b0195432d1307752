package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/TheMichaelB/sealfile/internal/models"
)

// RandomSource supplies cryptographically secure random bytes.
type RandomSource interface {
	// Bytes returns n fresh random bytes.
	Bytes(n int) ([]byte, error)
}

// readerSource draws bytes from an io.Reader.
type readerSource struct {
	r io.Reader
}

// SystemRandom returns the operating system CSPRNG.
func SystemRandom() RandomSource {
	return &readerSource{r: rand.Reader}
}

// NewReaderSource wraps r. Only tests should pass anything but crypto/rand.Reader.
func NewReaderSource(r io.Reader) RandomSource {
	return &readerSource{r: r}
}

// Bytes reads exactly n bytes or fails; a short read is never padded.
func (s *readerSource) Bytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: invalid length %d", models.ErrEntropyUnavailable, n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEntropyUnavailable, err)
	}

	return buf, nil
}
