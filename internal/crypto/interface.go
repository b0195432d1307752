package crypto

// Provider defines the interface for the cryptographic steps of one
// encryption: fresh randomness, key derivation and sealing.
type Provider interface {
	// NewSalt returns a fresh salt of the configured size.
	NewSalt() ([]byte, error)

	// NewNonce returns a fresh nonce of the configured size.
	NewNonce() ([]byte, error)

	// DeriveKey derives a cipher key from a password and salt.
	DeriveKey(password string, salt []byte) (*DerivedKey, error)

	// Seal encrypts plaintext and returns ciphertext with the tag appended.
	Seal(plaintext []byte, key *DerivedKey, nonce []byte) ([]byte, error)

	// Params describes the active parameters.
	Params() Params
}

// Params is a loggable description of the provider configuration.
type Params struct {
	Algorithm  string `json:"algorithm"`
	KeySize    int    `json:"key_size"`
	NonceSize  int    `json:"nonce_size"`
	TagSize    int    `json:"tag_size"`
	Hash       string `json:"hash"`
	Iterations int    `json:"iterations"`
	SaltSize   int    `json:"salt_size"`
}
