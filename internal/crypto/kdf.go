package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"

	"github.com/TheMichaelB/sealfile/internal/config"
	"github.com/TheMichaelB/sealfile/internal/models"
)

// Errors
var (
	ErrSaltSizeMismatch     = errors.New("salt size mismatch")
	ErrUnsupportedHash      = errors.New("unsupported hash algorithm")
	ErrPasswordNotLatin1    = errors.New("password contains characters outside Latin-1")
	ErrInvalidIterations    = errors.New("iteration count must be positive")
	ErrInvalidDerivedKeyLen = errors.New("derived key length must be positive")
)

// DerivedKey is key material produced by Deriver. It is never printed.
type DerivedKey struct {
	material []byte
}

// Len returns the key length in bytes.
func (k *DerivedKey) Len() int {
	if k == nil {
		return 0
	}
	return len(k.material)
}

// Destroy zeroes the key material.
func (k *DerivedKey) Destroy() {
	if k == nil {
		return
	}
	for i := range k.material {
		k.material[i] = 0
	}
	k.material = nil
}

func (k *DerivedKey) String() string   { return "DerivedKey(redacted)" }
func (k *DerivedKey) GoString() string { return "DerivedKey(redacted)" }

// Deriver turns passwords into keys with PBKDF2.
type Deriver struct {
	iterations int
	saltSize   int
	keyLen     int
	hashName   string
	newHash    func() hash.Hash
	encoding   string
}

// NewDeriver creates a deriver producing keyLen-byte keys.
func NewDeriver(cfg config.DerivationConfig, keyLen int) (*Deriver, error) {
	newHash, err := hashFunc(cfg.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDerivationFailed, err)
	}
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("%w: %w", models.ErrDerivationFailed, ErrInvalidIterations)
	}
	if keyLen <= 0 {
		return nil, fmt.Errorf("%w: %w", models.ErrDerivationFailed, ErrInvalidDerivedKeyLen)
	}

	encoding := cfg.PasswordEncoding
	if encoding == "" {
		encoding = config.PasswordEncodingBase64
	}

	return &Deriver{
		iterations: cfg.Iterations,
		saltSize:   cfg.SaltSize,
		keyLen:     keyLen,
		hashName:   cfg.Hash,
		newHash:    newHash,
		encoding:   encoding,
	}, nil
}

// SaltSize returns the configured salt length in bytes.
func (d *Deriver) SaltSize() int {
	return d.saltSize
}

// Derive computes the key for password and salt. Identical inputs always
// produce identical keys.
func (d *Deriver) Derive(password string, salt []byte) (*DerivedKey, error) {
	if len(salt) != d.saltSize {
		return nil, fmt.Errorf("%w: %w: expected %d bytes, got %d",
			models.ErrDerivationFailed, ErrSaltSizeMismatch, d.saltSize, len(salt))
	}

	input, err := d.passwordBytes(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDerivationFailed, err)
	}
	defer wipe(input)

	key := pbkdf2.Key(input, salt, d.iterations, d.keyLen, d.newHash)

	return &DerivedKey{material: key}, nil
}

// passwordBytes returns the PBKDF2 password input. In base64 mode the
// password is first read as Latin-1 bytes, base64 encoded, and the ASCII of
// that encoding is used.
func (d *Deriver) passwordBytes(password string) ([]byte, error) {
	if d.encoding == config.PasswordEncodingRaw {
		return []byte(password), nil
	}

	latin1 := make([]byte, 0, len(password))
	for _, r := range password {
		if r > 0xFF {
			wipe(latin1)
			return nil, ErrPasswordNotLatin1
		}
		latin1 = append(latin1, byte(r))
	}
	defer wipe(latin1)

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(latin1)))
	base64.StdEncoding.Encode(encoded, latin1)

	return encoded, nil
}

func hashFunc(name string) (func() hash.Hash, error) {
	switch name {
	case config.HashSHA1:
		return sha1.New, nil
	case config.HashSHA256:
		return sha256.New, nil
	case config.HashSHA384:
		return sha512.New384, nil
	case config.HashSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedHash, name)
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
