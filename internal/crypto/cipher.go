package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/TheMichaelB/sealfile/internal/config"
	"github.com/TheMichaelB/sealfile/internal/models"
)

// Errors
var (
	ErrInvalidKey           = errors.New("invalid key size")
	ErrInvalidNonce         = errors.New("invalid nonce size")
	ErrUnsupportedAlgorithm = errors.New("unsupported cipher algorithm")
	ErrUnsupportedParams    = errors.New("unsupported nonce and tag combination")
)

// Cipher performs authenticated encryption with fixed parameters.
type Cipher struct {
	algorithm string
	keyLen    int
	nonceSize int
	tagSize   int
}

// NewCipher creates a cipher from configuration.
func NewCipher(cfg config.CipherConfig) (*Cipher, error) {
	c := &Cipher{
		algorithm: cfg.Algorithm,
		keyLen:    cfg.KeyBytes(),
		nonceSize: cfg.NonceSize,
		tagSize:   cfg.TagBytes(),
	}

	// Build once with a zero key to reject bad parameters up front.
	zeroKey := make([]byte, c.keyLen)
	if _, err := c.newAEAD(zeroKey); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEncryptionFailed, err)
	}

	return c, nil
}

// Algorithm returns the configured algorithm name.
func (c *Cipher) Algorithm() string {
	return c.algorithm
}

// KeySize returns the key length in bytes.
func (c *Cipher) KeySize() int {
	return c.keyLen
}

// NonceSize returns the nonce length in bytes.
func (c *Cipher) NonceSize() int {
	return c.nonceSize
}

// Overhead returns the tag length in bytes.
func (c *Cipher) Overhead() int {
	return c.tagSize
}

// Seal encrypts plaintext and returns ciphertext || tag.
// The nonce must never be reused with the same key.
func (c *Cipher) Seal(plaintext []byte, key *DerivedKey, nonce []byte) ([]byte, error) {
	if key.Len() != c.keyLen {
		return nil, fmt.Errorf("%w: %w: expected %d bytes, got %d",
			models.ErrEncryptionFailed, ErrInvalidKey, c.keyLen, key.Len())
	}
	if len(nonce) != c.nonceSize {
		return nil, fmt.Errorf("%w: %w: expected %d bytes, got %d",
			models.ErrEncryptionFailed, ErrInvalidNonce, c.nonceSize, len(nonce))
	}

	aead, err := c.newAEAD(key.material)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEncryptionFailed, err)
	}

	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func (c *Cipher) newAEAD(key []byte) (cipher.AEAD, error) {
	switch c.algorithm {
	case config.AlgorithmAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("create cipher: %w", err)
		}

		var aead cipher.AEAD
		switch {
		case c.nonceSize == 12 && c.tagSize == 16:
			aead, err = cipher.NewGCM(block)
		case c.nonceSize == 12:
			aead, err = cipher.NewGCMWithTagSize(block, c.tagSize)
		case c.tagSize == 16:
			aead, err = cipher.NewGCMWithNonceSize(block, c.nonceSize)
		default:
			return nil, fmt.Errorf("%w: nonce %d bytes, tag %d bytes", ErrUnsupportedParams, c.nonceSize, c.tagSize)
		}
		if err != nil {
			return nil, fmt.Errorf("create GCM: %w", err)
		}
		return aead, nil

	case config.AlgorithmChaCha20Poly1305, config.AlgorithmXChaCha20Poly1305:
		want := chacha20poly1305.NonceSize
		newAEAD := chacha20poly1305.New
		if c.algorithm == config.AlgorithmXChaCha20Poly1305 {
			want = chacha20poly1305.NonceSizeX
			newAEAD = chacha20poly1305.NewX
		}
		if c.nonceSize != want || c.tagSize != chacha20poly1305.Overhead {
			return nil, fmt.Errorf("%w: %s needs a %d-byte nonce and %d-byte tag",
				ErrUnsupportedParams, c.algorithm, want, chacha20poly1305.Overhead)
		}

		aead, err := newAEAD(key)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.algorithm, err)
		}
		return aead, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, c.algorithm)
	}
}
