// Package encrypt runs the password-based file encryption workflow.
package encrypt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/TheMichaelB/sealfile/internal/codec"
	"github.com/TheMichaelB/sealfile/internal/config"
	"github.com/TheMichaelB/sealfile/internal/crypto"
	"github.com/TheMichaelB/sealfile/internal/events"
	"github.com/TheMichaelB/sealfile/internal/models"
	"github.com/TheMichaelB/sealfile/internal/state"
	"github.com/TheMichaelB/sealfile/internal/storage"
	"github.com/TheMichaelB/sealfile/internal/strength"
)

// Orchestrator sequences one encryption at a time and owns the workflow
// state. It is safe for concurrent use; a Submit while another is running
// fails with models.ErrPipelineBusy.
type Orchestrator struct {
	provider crypto.Provider
	codec    *codec.Codec
	sink     storage.OutputSink
	history  state.Store
	scorer   *strength.Scorer
	logger   *events.Logger

	// Configuration
	maxPasswordLength int
	fileExtension     string

	events chan Event

	mu    sync.Mutex
	state models.WorkflowState
}

// Result describes a successful encryption.
type Result struct {
	OperationID string
	OutputName  string
	Location    string
	Size        int
}

// New creates an orchestrator. A nil history disables the operation log.
func New(
	cfg *config.Config,
	provider crypto.Provider,
	c *codec.Codec,
	sink storage.OutputSink,
	history state.Store,
	logger *events.Logger,
) *Orchestrator {
	if history == nil {
		history = state.NopStore{}
	}

	return &Orchestrator{
		provider:          provider,
		codec:             c,
		sink:              sink,
		history:           history,
		scorer:            strength.NewScorer(cfg.Password.MaxLength),
		logger:            logger.WithField("component", "orchestrator"),
		maxPasswordLength: cfg.Password.MaxLength,
		fileExtension:     cfg.Cipher.FileExtension,
		events:            make(chan Event, 100),
		state:             models.NewWorkflowState(),
	}
}

// Events returns the event channel. Events are dropped when it is full.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// State returns a snapshot of the workflow state.
func (o *Orchestrator) State() models.WorkflowState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Score rates a candidate password. It never blocks submission.
func (o *Orchestrator) Score(password string) float64 {
	return o.scorer.Score(password)
}

// SetInputs records the password form fields.
func (o *Orchestrator) SetInputs(password, retype string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.IsWorking() {
		return models.ErrPipelineBusy
	}
	o.state.PasswordInput = password
	o.state.RetypeInput = retype
	return nil
}

// SelectFile sets the file the form will encrypt. Nil clears it.
func (o *Orchestrator) SelectFile(file *models.SourceFile) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.IsWorking() {
		return models.ErrPipelineBusy
	}
	o.state.ActiveFile = file
	return nil
}

// SubmitForm encrypts the selected file with the password held in the form
// inputs. Unless the password is shown, the retyped value must match.
func (o *Orchestrator) SubmitForm(ctx context.Context, shown bool) (*Result, error) {
	o.mu.Lock()
	file := o.state.ActiveFile
	password, retype := o.state.PasswordInput, o.state.RetypeInput
	working := o.state.IsWorking()
	o.mu.Unlock()

	if working {
		return nil, models.ErrPipelineBusy
	}
	if !strength.PasswordsMatch(password, retype, shown) {
		return nil, models.ErrPasswordMismatch
	}

	return o.Submit(ctx, file, password)
}

// Submit encrypts file with password and hands the artifact to the sink.
//
// Argument errors (busy, no file, empty or over-long password) are returned
// without touching the state. Pipeline failures move the state to the error
// phase, keep the file selected and are returned as *models.PipelineError.
func (o *Orchestrator) Submit(ctx context.Context, file *models.SourceFile, password string) (result *Result, err error) {
	opID, err := o.begin(file, password)
	if err != nil {
		return nil, err
	}

	ctx = events.WithLogger(ctx, o.logger)
	ctx = events.WithOperationID(ctx, opID)
	ctx = events.WithFileName(ctx, file.Name)
	logger := events.FromContext(ctx)

	startedAt := time.Now().UTC()
	params := o.provider.Params()

	logger.WithFields(map[string]interface{}{
		"size":       file.Size,
		"algorithm":  params.Algorithm,
		"hash":       params.Hash,
		"iterations": params.Iterations,
	}).Info("Starting encryption")

	o.emit(Event{
		Type:        EventStarted,
		OperationID: opID,
		Timestamp:   time.Now(),
		File:        file.Name,
	})

	// The working flag is released however the pipeline ends.
	defer func() {
		if r := recover(); r != nil {
			err = models.NewPipelineError(o.State().Stage, file.Name, fmt.Errorf("panic: %v", r))
			result = nil
		}
		o.finish(ctx, opID, file, startedAt, result, err)
	}()

	result, err = o.run(ctx, opID, file, password)
	return result, err
}

// begin validates a submission and enters the working phase.
func (o *Orchestrator) begin(file *models.SourceFile, password string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.IsWorking() {
		return "", models.ErrPipelineBusy
	}
	if file == nil {
		return "", models.ErrNoFile
	}
	if password == "" {
		return "", models.ErrEmptyPassword
	}
	if n := utf8.RuneCountInString(password); n > o.maxPasswordLength {
		return "", fmt.Errorf("%w: %d characters (max: %d)", models.ErrPasswordTooLong, n, o.maxPasswordLength)
	}

	o.state.Phase = models.PhaseWorking
	o.state.Stage = models.StageNone
	o.state.Message = ""
	o.state.ClearInputs()
	o.state.ActiveFile = file

	return uuid.NewString(), nil
}

// run executes the stages in order. The first failure stops the pipeline;
// nothing is written unless every earlier stage succeeded.
func (o *Orchestrator) run(ctx context.Context, opID string, file *models.SourceFile, password string) (*Result, error) {
	logger := events.FromContext(ctx)

	// Reading
	if err := o.enterStage(ctx, opID, file, models.StageReading); err != nil {
		return nil, err
	}
	text, err := o.codec.ReadAsText(ctx, file)
	if err != nil {
		return nil, models.NewPipelineError(models.StageReading, file.Name, err)
	}
	plaintext := o.codec.EncodeText(text)

	if codec.LooksBinary(file.Name, plaintext) {
		logger.WithField("encoding", o.codec.Encoding()).Warn("File looks binary; text decoding may lose data")
	}

	// Deriving
	if err := o.enterStage(ctx, opID, file, models.StageDeriving); err != nil {
		return nil, err
	}
	salt, err := o.provider.NewSalt()
	if err != nil {
		return nil, models.NewPipelineError(models.StageDeriving, file.Name, err)
	}
	key, err := o.provider.DeriveKey(password, salt)
	if err != nil {
		return nil, models.NewPipelineError(models.StageDeriving, file.Name, err)
	}
	defer key.Destroy()

	// Encrypting
	if err := o.enterStage(ctx, opID, file, models.StageEncrypting); err != nil {
		return nil, err
	}
	nonce, err := o.provider.NewNonce()
	if err != nil {
		return nil, models.NewPipelineError(models.StageEncrypting, file.Name, err)
	}
	ciphertext, err := o.provider.Seal(plaintext, key, nonce)
	key.Destroy()
	if err != nil {
		return nil, models.NewPipelineError(models.StageEncrypting, file.Name, err)
	}

	// Writing
	if err := o.enterStage(ctx, opID, file, models.StageWriting); err != nil {
		return nil, err
	}
	data := o.codec.SerializeOutput(ciphertext, salt, nonce)
	name := codec.OutputName(file.Name, o.fileExtension)

	location, err := codec.WriteOutput(ctx, o.sink, name, data)
	if err != nil {
		return nil, models.NewPipelineError(models.StageWriting, file.Name, err)
	}

	return &Result{
		OperationID: opID,
		OutputName:  name,
		Location:    location,
		Size:        len(data),
	}, nil
}

// enterStage records the stage and checks for cancellation.
func (o *Orchestrator) enterStage(ctx context.Context, opID string, file *models.SourceFile, stage models.Stage) error {
	o.mu.Lock()
	o.state.Stage = stage
	o.mu.Unlock()

	events.FromContext(ctx).WithField("stage", stage).Debug("Entering stage")

	o.emit(Event{
		Type:        EventStage,
		OperationID: opID,
		Timestamp:   time.Now(),
		File:        file.Name,
		Stage:       stage,
	})

	if err := ctx.Err(); err != nil {
		return models.NewPipelineError(stage, file.Name, err)
	}
	return nil
}

// finish leaves the working phase and records the attempt.
func (o *Orchestrator) finish(ctx context.Context, opID string, file *models.SourceFile, startedAt time.Time, result *Result, err error) {
	logger := events.FromContext(ctx)
	duration := time.Since(startedAt)

	o.mu.Lock()
	if err != nil {
		o.state.SetError(err)
	} else {
		o.state.Phase = models.PhaseIdle
		o.state.Stage = models.StageNone
		o.state.Message = ""
		o.state.ActiveFile = nil
	}
	o.mu.Unlock()

	params := o.provider.Params()
	record := &state.Record{
		ID:         opID,
		FileName:   file.Name,
		FileSize:   file.Size,
		Algorithm:  params.Algorithm,
		Hash:       params.Hash,
		Iterations: params.Iterations,
		StartedAt:  startedAt,
		Duration:   duration,
	}

	if err != nil {
		var pe *models.PipelineError
		code := models.ErrCodeUnknown
		if errors.As(err, &pe) {
			code = pe.Code
		}

		record.Outcome = state.OutcomeFailure
		record.ErrorCode = code
		record.Error = err.Error()

		logger.WithError(err).WithFields(map[string]interface{}{
			"code":     code,
			"duration": duration,
		}).Error("Encryption failed")

		o.emit(Event{
			Type:        EventFailed,
			OperationID: opID,
			Timestamp:   time.Now(),
			File:        file.Name,
			Error:       err,
		})
	} else {
		record.Outcome = state.OutcomeSuccess
		record.OutputName = result.OutputName
		record.Location = result.Location

		logger.WithFields(map[string]interface{}{
			"output":   result.OutputName,
			"location": result.Location,
			"size":     codec.SizeString(int64(result.Size)),
			"duration": duration,
		}).Info("Encryption completed")

		o.emit(Event{
			Type:        EventCompleted,
			OperationID: opID,
			Timestamp:   time.Now(),
			File:        file.Name,
			Location:    result.Location,
		})
	}

	if herr := o.history.Append(record); herr != nil {
		logger.WithError(herr).Warn("Failed to record history")
	}
}

func (o *Orchestrator) emit(event Event) {
	select {
	case o.events <- event:
	default:
		// Channel full, drop event
		o.logger.Debug("Event channel full, dropping event")
	}
}
