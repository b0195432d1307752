package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
	v          *viper.Viper
}

// NewLoader creates a config loader.
func NewLoader(configPath string) *Loader {
	l := &Loader{
		configPath: configPath,
		envPrefix:  "SEALFILE",
		v:          viper.New(),
	}

	setDefaults(l.v, DefaultConfig())

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	return l
}

// Viper exposes the underlying registry so callers can bind flags.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads configuration from file, environment and bound flags.
func (l *Loader) Load() (*Config, error) {
	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		l.v.SetConfigName("sealfile")
		for _, dir := range l.defaultPaths() {
			l.v.AddConfigPath(dir)
		}

		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("load config file %s: %w", l.v.ConfigFileUsed(), err)
			}
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ConfigFileUsed returns the file the configuration was read from, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// defaultPaths returns directories searched for sealfile.{json,yaml,toml}.
func (l *Loader) defaultPaths() []string {
	paths := []string{"."}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "sealfile"),
			filepath.Join(homeDir, ".sealfile"),
		)
	}

	return paths
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("password.max_length", cfg.Password.MaxLength)

	v.SetDefault("derivation.key_type", cfg.Derivation.KeyType)
	v.SetDefault("derivation.key_name", cfg.Derivation.KeyName)
	v.SetDefault("derivation.extractable", cfg.Derivation.Extractable)
	v.SetDefault("derivation.iterations", cfg.Derivation.Iterations)
	v.SetDefault("derivation.hash", cfg.Derivation.Hash)
	v.SetDefault("derivation.salt_size", cfg.Derivation.SaltSize)
	v.SetDefault("derivation.password_encoding", cfg.Derivation.PasswordEncoding)

	v.SetDefault("cipher.algorithm", cfg.Cipher.Algorithm)
	v.SetDefault("cipher.key_size", cfg.Cipher.KeySize)
	v.SetDefault("cipher.nonce_size", cfg.Cipher.NonceSize)
	v.SetDefault("cipher.tag_length", cfg.Cipher.TagLength)
	v.SetDefault("cipher.file_extension", cfg.Cipher.FileExtension)

	v.SetDefault("encoding", cfg.Encoding)

	v.SetDefault("output.dir", cfg.Output.Dir)
	v.SetDefault("output.conflict", cfg.Output.Conflict)
	v.SetDefault("output.max_file_size", cfg.Output.MaxFileSize)
	v.SetDefault("output.ciphertext_format", cfg.Output.CiphertextFormat)

	v.SetDefault("history.backend", cfg.History.Backend)
	v.SetDefault("history.path", cfg.History.Path)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.color", cfg.Log.Color)
}

// SaveExample writes the default configuration to path. The format follows
// the file extension (json, yaml or toml).
func SaveExample(path string) error {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("chmod file: %w", err)
	}

	return nil
}
