package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/sealfile/internal/config"
	"github.com/TheMichaelB/sealfile/internal/events"
)

var (
	cfgFile    string
	jsonOutput bool
	verbose    bool

	loader *config.Loader
	cfg    *config.Config
	logger *events.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sealfile",
	Short: "Encrypt files with a password",
	Long: `sealfile encrypts a single file with a key derived from a password.

The output is written to the configured output directory as
<name>.<extension> and holds the ciphertext followed by the salt and nonce.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./sealfile.* or ~/.config/sealfile/sealfile.*)")
	flags.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (text, json)")
	flags.Int("iterations", 0, "PBKDF2 iteration count")
	flags.String("algorithm", "", "Cipher algorithm (AES-GCM, ChaCha20-Poly1305, XChaCha20-Poly1305)")
	flags.String("encoding", "", "Text encoding of source files")
}

// bindFlags maps changed persistent flags onto config keys.
func bindFlags(cmd *cobra.Command) error {
	bindings := map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
		"iterations": "derivation.iterations",
		"algorithm":  "cipher.algorithm",
		"encoding":   "encoding",
	}

	v := loader.Viper()
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if verbose {
		v.Set("log.level", "debug")
	}
	return nil
}

func setup(cmd *cobra.Command, args []string) error {
	loader = config.NewLoader(cfgFile)
	if err := bindFlags(cmd); err != nil {
		return err
	}

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return err
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	events.SetDefault(logger)

	if used := loader.ConfigFileUsed(); used != "" {
		logger.WithField("file", used).Debug("Loaded config")
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !jsonOutput {
			printError("%v", err)
		}
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	printJSONTo(os.Stdout, v)
}

func printJSONTo(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		printError("encode output: %v", err)
	}
}

func printError(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

func printSuccess(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(os.Stderr, format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(os.Stderr, format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(os.Stderr, format+"\n", args...)
}
