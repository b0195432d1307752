package crypto

import (
	"fmt"

	"github.com/TheMichaelB/sealfile/internal/config"
)

// CryptoProvider handles all cryptographic operations.
type CryptoProvider struct {
	random  RandomSource
	deriver *Deriver
	cipher  *Cipher
	params  Params
}

// NewProvider creates a crypto provider from configuration. A nil random
// source selects the system CSPRNG.
func NewProvider(cfg *config.Config, random RandomSource) (*CryptoProvider, error) {
	if random == nil {
		random = SystemRandom()
	}

	cipher, err := NewCipher(cfg.Cipher)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	deriver, err := NewDeriver(cfg.Derivation, cipher.KeySize())
	if err != nil {
		return nil, fmt.Errorf("create deriver: %w", err)
	}

	return &CryptoProvider{
		random:  random,
		deriver: deriver,
		cipher:  cipher,
		params: Params{
			Algorithm:  cipher.Algorithm(),
			KeySize:    cipher.KeySize(),
			NonceSize:  cipher.NonceSize(),
			TagSize:    cipher.Overhead(),
			Hash:       cfg.Derivation.Hash,
			Iterations: cfg.Derivation.Iterations,
			SaltSize:   deriver.SaltSize(),
		},
	}, nil
}

// NewSalt returns a fresh salt.
func (p *CryptoProvider) NewSalt() ([]byte, error) {
	salt, err := p.random.Bytes(p.deriver.SaltSize())
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// NewNonce returns a fresh nonce.
func (p *CryptoProvider) NewNonce() ([]byte, error) {
	nonce, err := p.random.Bytes(p.cipher.NonceSize())
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, nil
}

// DeriveKey derives a cipher key from password and salt.
func (p *CryptoProvider) DeriveKey(password string, salt []byte) (*DerivedKey, error) {
	return p.deriver.Derive(password, salt)
}

// Seal encrypts plaintext under key and nonce.
func (p *CryptoProvider) Seal(plaintext []byte, key *DerivedKey, nonce []byte) ([]byte, error) {
	return p.cipher.Seal(plaintext, key, nonce)
}

// Params returns the active parameters.
func (p *CryptoProvider) Params() Params {
	return p.params
}
