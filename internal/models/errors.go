package models

import (
	"context"
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeEntropy    = "ENTROPY_UNAVAILABLE"
	ErrCodeDerivation = "DERIVATION_FAILED"
	ErrCodeEncryption = "ENCRYPTION_FAILED"
	ErrCodeFileRead   = "FILE_READ_FAILED"
	ErrCodeWrite      = "OUTPUT_WRITE_FAILED"
	ErrCodeCancelled  = "CANCELLED"
	ErrCodeConfig     = "CONFIG_ERROR"
	ErrCodeUnknown    = "UNKNOWN_ERROR"
)

// Error kinds. Every pipeline failure matches exactly one of the first five.
var (
	ErrEntropyUnavailable = errors.New("entropy unavailable")
	ErrDerivationFailed   = errors.New("key derivation failed")
	ErrEncryptionFailed   = errors.New("encryption failed")
	ErrFileReadFailed     = errors.New("file read failed")
	ErrOutputWriteFailed  = errors.New("output write failed")
)

// Sentinel errors
var (
	ErrReadAborted      = errors.New("file reading aborted")
	ErrPipelineBusy     = errors.New("encryption already in progress")
	ErrNoFile           = errors.New("no file selected")
	ErrEmptyPassword    = errors.New("password is empty")
	ErrPasswordTooLong  = errors.New("password exceeds maximum length")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// PipelineError describes the stage at which an encryption attempt failed.
type PipelineError struct {
	Code  string
	Stage Stage
	File  string
	Kind  error
	Err   error
}

func (e *PipelineError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s %s [%s]: %v", e.Stage.Verb(), e.File, e.Code, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Stage.Verb(), e.Code, e.Err)
}

// Unwrap exposes both the error kind and the underlying cause to errors.Is.
func (e *PipelineError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// NewPipelineError classifies err for the given stage.
func NewPipelineError(stage Stage, file string, err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}

	code, kind := Classify(err)
	return &PipelineError{
		Code:  code,
		Stage: stage,
		File:  file,
		Kind:  kind,
		Err:   err,
	}
}

// Classify maps an error onto its code and kind.
func Classify(err error) (string, error) {
	switch {
	case errors.Is(err, ErrEntropyUnavailable):
		return ErrCodeEntropy, ErrEntropyUnavailable
	case errors.Is(err, ErrDerivationFailed):
		return ErrCodeDerivation, ErrDerivationFailed
	case errors.Is(err, ErrEncryptionFailed):
		return ErrCodeEncryption, ErrEncryptionFailed
	case errors.Is(err, ErrFileReadFailed):
		return ErrCodeFileRead, ErrFileReadFailed
	case errors.Is(err, ErrOutputWriteFailed):
		return ErrCodeWrite, ErrOutputWriteFailed
	case errors.Is(err, ErrInvalidConfig):
		return ErrCodeConfig, ErrInvalidConfig
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeCancelled, nil
	default:
		return ErrCodeUnknown, nil
	}
}
