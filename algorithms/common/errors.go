package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies analysis failures
type ErrorKind string

const (
	KindConditioning   ErrorKind = "CONDITIONING_FAILED"
	KindEnvelope       ErrorKind = "ENVELOPE_FAILED"
	KindThreshold      ErrorKind = "THRESHOLD_DEGENERATE"
	KindDetection      ErrorKind = "DETECTION_FAILED"
	KindParse          ErrorKind = "PARSE_FAILED"
	KindInvalidTask    ErrorKind = "INVALID_TASK_TYPE"
	KindFileValidation ErrorKind = "FILE_VALIDATION_FAILED"
)

// Sentinels for errors.Is checks against a kind
var (
	ErrConditioning   = &AnalysisError{Kind: KindConditioning}
	ErrEnvelope       = &AnalysisError{Kind: KindEnvelope}
	ErrThreshold      = &AnalysisError{Kind: KindThreshold}
	ErrDetection      = &AnalysisError{Kind: KindDetection}
	ErrParse          = &AnalysisError{Kind: KindParse}
	ErrInvalidTask    = &AnalysisError{Kind: KindInvalidTask}
	ErrFileValidation = &AnalysisError{Kind: KindFileValidation}
)

// AnalysisError represents a failure in one of the analysis stages
type AnalysisError struct {
	Kind    ErrorKind `json:"kind"`
	Op      string    `json:"op"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *AnalysisError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AnalysisError of the same kind
func (e *AnalysisError) Is(target error) bool {
	t, ok := target.(*AnalysisError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a new analysis error
func NewError(kind ErrorKind, op, message string, cause error) *AnalysisError {
	return &AnalysisError{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// Errorf creates an analysis error with a formatted message
func Errorf(kind ErrorKind, op, format string, args ...any) *AnalysisError {
	return NewError(kind, op, fmt.Sprintf(format, args...), nil)
}

// KindOf returns the kind of the first AnalysisError in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}
