package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TheMichaelB/sealfile/internal/codec"
	"github.com/TheMichaelB/sealfile/internal/models"
	"github.com/TheMichaelB/sealfile/internal/services/encrypt"
	"github.com/TheMichaelB/sealfile/internal/storage"
	"github.com/TheMichaelB/sealfile/internal/strength"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <file>",
	Short: "Encrypt a file with a password",
	Long: `Encrypt reads a file as text, derives a key from the password with
PBKDF2 and writes <file>.<extension> to the output directory.

The password is prompted for twice without echo unless --show-password
or --password-stdin is given.`,
	Example: `  sealfile encrypt notes.txt
  sealfile encrypt notes.txt --out ./sealed --conflict rename
  echo "$PASS" | sealfile encrypt notes.txt --password-stdin --out - > notes.txt.enc`,
	Args: cobra.ExactArgs(1),
	RunE: runEncrypt,
}

var (
	encryptOut           string
	encryptConflict      string
	encryptFormat        string
	encryptPasswordStdin bool
	encryptShowPassword  bool
)

func init() {
	rootCmd.AddCommand(encryptCmd)

	encryptCmd.Flags().StringVarP(&encryptOut, "out", "o", "",
		`Output directory, or "-" for stdout`)
	encryptCmd.Flags().StringVar(&encryptConflict, "conflict", "",
		"Existing output handling (overwrite, rename, error)")
	encryptCmd.Flags().StringVar(&encryptFormat, "format", "",
		"Ciphertext representation (text, raw)")
	encryptCmd.Flags().BoolVar(&encryptPasswordStdin, "password-stdin", false,
		"Read the password from the first line of stdin")
	encryptCmd.Flags().BoolVar(&encryptShowPassword, "show-password", false,
		"Type the password visibly, without confirmation")
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	path := args[0]

	var opts []encrypt.ServiceOption
	switch encryptOut {
	case "":
	case "-":
		opts = append(opts, encrypt.WithSink(storage.NewWriterSink(os.Stdout)))
	default:
		cfg.Output.Dir = encryptOut
	}
	if encryptConflict != "" {
		cfg.Output.Conflict = encryptConflict
	}
	if encryptFormat != "" {
		cfg.Output.CiphertextFormat = encryptFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	file, err := models.OpenSourceFile(path)
	if err != nil {
		return err
	}

	password, retype, shown, err := readPassword()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	if !jsonOutput {
		score, rating := strength.NewScorer(cfg.Password.MaxLength).Rate(password)
		printRating(score, rating)
	}

	svc, err := encrypt.NewService(cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	o := svc.Orchestrator()
	if err := o.SelectFile(file); err != nil {
		return err
	}
	if err := o.SetInputs(password, retype); err != nil {
		return err
	}

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			printWarning("\nInterrupted, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var progress *spinner.Spinner
	if !jsonOutput && term.IsTerminal(int(os.Stderr.Fd())) {
		progress = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		progress.Suffix = " Starting..."
		progress.Start()
		defer progress.Stop()
	}

	var collected []map[string]interface{}
	stop := make(chan struct{})
	done := watchEvents(o.Events(), stop, func(event encrypt.Event) {
		if jsonOutput {
			entry := map[string]interface{}{
				"type":      event.Type,
				"timestamp": event.Timestamp,
			}
			if event.Stage != models.StageNone {
				entry["stage"] = event.Stage
			}
			if event.Error != nil {
				entry["error"] = event.Error.Error()
			}
			collected = append(collected, entry)
		} else if event.Type == encrypt.EventStage {
			label := fmt.Sprintf("%s %s...", stageLabel(event.Stage), event.File)
			if progress != nil {
				progress.Lock()
				progress.Suffix = " " + label
				progress.Unlock()
			} else {
				printInfo("%s", label)
			}
		}
	})

	start := time.Now()
	result, err := o.SubmitForm(ctx, shown)

	// Only a started pipeline ends with a terminal event.
	var pe *models.PipelineError
	if err != nil && !errors.As(err, &pe) {
		close(stop)
	}
	<-done

	if progress != nil {
		if err == nil {
			progress.FinalMSG = color.GreenString("✓") + " Encrypted\n"
		} else {
			progress.FinalMSG = color.RedString("✗") + " Encryption failed\n"
		}
		progress.Stop()
	}

	if jsonOutput {
		out := map[string]interface{}{
			"success": err == nil,
			"file":    file.Name,
			"params":  svc.Params(),
			"events":  collected,
		}
		if err != nil {
			out["error"] = err.Error()
			if pe != nil {
				out["code"] = pe.Code
			}
		} else {
			out["operation_id"] = result.OperationID
			out["output"] = result.OutputName
			out["location"] = result.Location
			out["size"] = result.Size
		}
		printJSONTo(resultWriter(encryptOut), out)
		return err
	}

	if err != nil {
		if errors.Is(err, models.ErrPasswordMismatch) {
			return fmt.Errorf("%w; nothing was written", err)
		}
		return err
	}

	printSuccess("Encrypted %s (%s) -> %s (%s) in %s",
		file.Name, codec.SizeString(file.Size),
		result.Location, codec.SizeString(int64(result.Size)),
		time.Since(start).Round(time.Millisecond))
	return nil
}

// watchEvents passes events to handle until a terminal event arrives or
// stop is closed. The returned channel closes when it returns.
func watchEvents(events <-chan encrypt.Event, stop <-chan struct{}, handle func(encrypt.Event)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				handle(event)
				if event.Terminal() {
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return done
}

// resultWriter keeps --json documents off stdout when the artifact is
// written there.
func resultWriter(out string) io.Writer {
	if out == "-" {
		return os.Stderr
	}
	return os.Stdout
}

// readPassword returns the password, its confirmation and whether it was
// entered visibly.
func readPassword() (string, string, bool, error) {
	if encryptPasswordStdin {
		password, err := readLine(os.Stdin)
		return password, password, true, err
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", "", false, errors.New("stdin is not a terminal; use --password-stdin")
	}

	if encryptShowPassword {
		fmt.Fprint(os.Stderr, "Password: ")
		password, err := readLine(os.Stdin)
		return password, password, true, err
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return "", "", false, err
	}
	retype, err := promptPassword("Retype password: ")
	if err != nil {
		return "", "", false, err
	}
	return password, retype, false, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return "", err
	}

	return string(password), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func stageLabel(stage models.Stage) string {
	switch stage {
	case models.StageReading:
		return "Reading"
	case models.StageDeriving:
		return "Deriving key for"
	case models.StageEncrypting:
		return "Encrypting"
	case models.StageWriting:
		return "Writing"
	default:
		return string(stage)
	}
}
