package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/TheMichaelB/sealfile/internal/models"
)

// Config holds all application configuration.
type Config struct {
	// Password input limits
	Password PasswordConfig `json:"password" mapstructure:"password"`

	// Password-based key derivation
	Derivation DerivationConfig `json:"derivation" mapstructure:"derivation"`

	// Authenticated encryption
	Cipher CipherConfig `json:"cipher" mapstructure:"cipher"`

	// Text encoding used to decode file content
	Encoding string `json:"encoding" mapstructure:"encoding"`

	// Output delivery
	Output OutputConfig `json:"output" mapstructure:"output"`

	// Operation history
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Logging
	Log LogConfig `json:"log" mapstructure:"log"`
}

// PasswordConfig bounds password input.
type PasswordConfig struct {
	MaxLength int `json:"max_length" mapstructure:"max_length"`
}

// DerivationConfig for PBKDF2 key derivation.
type DerivationConfig struct {
	KeyType          string `json:"key_type" mapstructure:"key_type"`                   // raw
	KeyName          string `json:"key_name" mapstructure:"key_name"`                   // PBKDF2
	Extractable      bool   `json:"extractable" mapstructure:"extractable"`             // must be false
	Iterations       int    `json:"iterations" mapstructure:"iterations"`               // PBKDF2 rounds
	Hash             string `json:"hash" mapstructure:"hash"`                           // SHA-1, SHA-256, SHA-384, SHA-512
	SaltSize         int    `json:"salt_size" mapstructure:"salt_size"`                 // bytes
	PasswordEncoding string `json:"password_encoding" mapstructure:"password_encoding"` // base64, raw
}

// CipherConfig for AEAD encryption.
type CipherConfig struct {
	Algorithm     string `json:"algorithm" mapstructure:"algorithm"`           // AES-GCM, ChaCha20-Poly1305, XChaCha20-Poly1305
	KeySize       int    `json:"key_size" mapstructure:"key_size"`             // bits
	NonceSize     int    `json:"nonce_size" mapstructure:"nonce_size"`         // bytes
	TagLength     int    `json:"tag_length" mapstructure:"tag_length"`         // bits
	FileExtension string `json:"file_extension" mapstructure:"file_extension"` // appended to the source name
}

// OutputConfig for encrypted file delivery.
type OutputConfig struct {
	Dir              string `json:"dir" mapstructure:"dir"`
	Conflict         string `json:"conflict" mapstructure:"conflict"`                   // overwrite, rename, error
	MaxFileSize      int64  `json:"max_file_size" mapstructure:"max_file_size"`         // bytes
	CiphertextFormat string `json:"ciphertext_format" mapstructure:"ciphertext_format"` // text, raw
}

// HistoryConfig for the operation log.
type HistoryConfig struct {
	Backend string `json:"backend" mapstructure:"backend"` // none, json, sqlite
	Path    string `json:"path" mapstructure:"path"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text, json
	File   string `json:"file" mapstructure:"file"`     // Log file path (empty = stderr)
	Color  bool   `json:"color" mapstructure:"color"`   // Enable colored output
}

// Supported parameter values.
const (
	HashSHA1   = "SHA-1"
	HashSHA256 = "SHA-256"
	HashSHA384 = "SHA-384"
	HashSHA512 = "SHA-512"

	AlgorithmAESGCM            = "AES-GCM"
	AlgorithmChaCha20Poly1305  = "ChaCha20-Poly1305"
	AlgorithmXChaCha20Poly1305 = "XChaCha20-Poly1305"

	PasswordEncodingBase64 = "base64"
	PasswordEncodingRaw    = "raw"

	CiphertextText = "text"
	CiphertextRaw  = "raw"

	HistoryNone   = "none"
	HistoryJSON   = "json"
	HistorySQLite = "sqlite"
)

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()

	return &Config{
		Password: PasswordConfig{
			MaxLength: 64,
		},
		Derivation: DerivationConfig{
			KeyType:          "raw",
			KeyName:          "PBKDF2",
			Extractable:      false,
			Iterations:       100000,
			Hash:             HashSHA256,
			SaltSize:         16,
			PasswordEncoding: PasswordEncodingBase64,
		},
		Cipher: CipherConfig{
			Algorithm:     AlgorithmAESGCM,
			KeySize:       256,
			NonceSize:     12,
			TagLength:     128,
			FileExtension: "enc",
		},
		Encoding: "utf-8",
		Output: OutputConfig{
			Dir:              ".",
			Conflict:         "overwrite",
			MaxFileSize:      100 * 1024 * 1024, // 100MB
			CiphertextFormat: CiphertextText,
		},
		History: HistoryConfig{
			Backend: HistoryNone,
			Path:    filepath.Join(dataDir, "history.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
			Color:  true,
		},
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".sealfile")
	}
	return ".sealfile"
}

// KeyBytes returns the cipher key size in bytes.
func (c *CipherConfig) KeyBytes() int {
	return c.KeySize / 8
}

// TagBytes returns the authentication tag size in bytes.
func (c *CipherConfig) TagBytes() int {
	return c.TagLength / 8
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Password.MaxLength <= 0 {
		return invalid("password.max_length must be positive")
	}

	if err := c.Derivation.validate(); err != nil {
		return err
	}

	if err := c.Cipher.validate(); err != nil {
		return err
	}

	if c.Encoding == "" {
		return invalid("encoding is required")
	}

	if err := c.Output.validate(); err != nil {
		return err
	}

	validBackends := map[string]bool{HistoryNone: true, HistoryJSON: true, HistorySQLite: true}
	if !validBackends[c.History.Backend] {
		return invalid("invalid history backend: %s", c.History.Backend)
	}
	if c.History.Backend != HistoryNone && c.History.Path == "" {
		return invalid("history.path is required for backend %s", c.History.Backend)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return invalid("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return invalid("invalid log format: %s", c.Log.Format)
	}

	return nil
}

func (d *DerivationConfig) validate() error {
	if !strings.EqualFold(d.KeyType, "raw") {
		return invalid("unsupported derivation.key_type: %s", d.KeyType)
	}
	if !strings.EqualFold(d.KeyName, "PBKDF2") {
		return invalid("unsupported derivation.key_name: %s", d.KeyName)
	}
	if d.Extractable {
		return invalid("derivation.extractable must be false")
	}
	if d.Iterations <= 0 {
		return invalid("derivation.iterations must be positive")
	}
	if d.SaltSize <= 0 {
		return invalid("derivation.salt_size must be positive")
	}
	switch d.Hash {
	case HashSHA1, HashSHA256, HashSHA384, HashSHA512:
	default:
		return invalid("unsupported derivation.hash: %s", d.Hash)
	}
	switch d.PasswordEncoding {
	case PasswordEncodingBase64, PasswordEncodingRaw:
	default:
		return invalid("unsupported derivation.password_encoding: %s", d.PasswordEncoding)
	}
	return nil
}

func (c *CipherConfig) validate() error {
	if c.KeySize <= 0 || c.KeySize%8 != 0 {
		return invalid("cipher.key_size must be a positive multiple of 8")
	}
	if c.NonceSize <= 0 {
		return invalid("cipher.nonce_size must be positive")
	}
	if c.TagLength <= 0 || c.TagLength%8 != 0 {
		return invalid("cipher.tag_length must be a positive multiple of 8")
	}
	if c.FileExtension == "" || strings.ContainsAny(c.FileExtension, `/\`) {
		return invalid("invalid cipher.file_extension: %q", c.FileExtension)
	}

	switch c.Algorithm {
	case AlgorithmAESGCM:
		switch c.KeySize {
		case 128, 192, 256:
		default:
			return invalid("AES-GCM key_size must be 128, 192 or 256, got %d", c.KeySize)
		}
		if c.TagLength < 96 || c.TagLength > 128 {
			return invalid("AES-GCM tag_length must be between 96 and 128, got %d", c.TagLength)
		}
		if c.TagLength != 128 && c.NonceSize != 12 {
			return invalid("AES-GCM supports a custom tag_length only with a 12-byte nonce")
		}
	case AlgorithmChaCha20Poly1305, AlgorithmXChaCha20Poly1305:
		wantNonce := 12
		if c.Algorithm == AlgorithmXChaCha20Poly1305 {
			wantNonce = 24
		}
		if c.KeySize != 256 || c.TagLength != 128 || c.NonceSize != wantNonce {
			return invalid("%s requires key_size=256, tag_length=128, nonce_size=%d", c.Algorithm, wantNonce)
		}
	default:
		return invalid("unsupported cipher.algorithm: %s", c.Algorithm)
	}
	return nil
}

func (o *OutputConfig) validate() error {
	if o.MaxFileSize <= 0 {
		return invalid("output.max_file_size must be positive")
	}
	switch o.Conflict {
	case "overwrite", "rename", "error":
	default:
		return invalid("invalid output.conflict: %s", o.Conflict)
	}
	switch o.CiphertextFormat {
	case CiphertextText, CiphertextRaw:
	default:
		return invalid("invalid output.ciphertext_format: %s", o.CiphertextFormat)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	var dirs []string

	if c.Output.Dir != "" {
		dirs = append(dirs, c.Output.Dir)
	}

	if c.History.Backend != HistoryNone {
		dirs = append(dirs, filepath.Dir(c.History.Path))
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
