package services

import (
	"errors"
	"fmt"
)

// ErrorType classifies pipeline failures by how callers must react to them.
type ErrorType string

const (
	// ErrorTypeValidation is bad upload input the user can correct.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeStorage is a blob store read or write failure. Never retried here.
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeRecognition is a failed call to the recognition engine. Never retried here.
	ErrorTypeRecognition ErrorType = "recognition"
	// ErrorTypeMalformedArtifact is an extraction record that cannot be parsed.
	ErrorTypeMalformedArtifact ErrorType = "malformed_artifact"
)

// Validation causes, matched with errors.Is.
var (
	ErrEmptyFile       = errors.New("no file provided")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidPDF      = errors.New("pdf could not be read")
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
	ErrMissingUser     = errors.New("no user identity")
	ErrInvalidUser     = errors.New("user id cannot be used as a key namespace")
)

// PipelineError is an error with a taxonomy type and context.
type PipelineError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, message string, err error) *PipelineError {
	return &PipelineError{Type: t, Message: message, Err: err}
}

func ValidationError(message string, err error) *PipelineError {
	return newError(ErrorTypeValidation, message, err)
}

func StorageError(message string, err error) *PipelineError {
	return newError(ErrorTypeStorage, message, err)
}

func RecognitionError(message string, err error) *PipelineError {
	return newError(ErrorTypeRecognition, message, err)
}

func MalformedArtifact(message string, err error) *PipelineError {
	return newError(ErrorTypeMalformedArtifact, message, err)
}

// IsType reports whether any PipelineError in err's chain has type t.
func IsType(err error, t ErrorType) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Type == t
}
