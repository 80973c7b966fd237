package services

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure. Lower layers set it; only the workflow manager
// interprets it.
type Kind string

const (
	KindTemplateNotFound      Kind = "template_not_found"
	KindTemplateInvalidFormat Kind = "template_invalid_format"
	KindMergeField            Kind = "merge_field"
	KindMerge                 Kind = "merge"
	KindConversionTimeout     Kind = "conversion_timeout"
	KindConversionNonZeroExit Kind = "conversion_nonzero_exit"
	KindConversionExecution   Kind = "conversion_execution"
	KindUploadFailed          Kind = "upload_failed"
	KindLockLost              Kind = "lock_lost"
	KindValidation            Kind = "validation"
	KindTransient             Kind = "transient"
	kindUnknown               Kind = ""
)

// Error is the structured failure carried end-to-end from the layer that
// detected it to the workflow manager.
type Error struct {
	Kind      Kind
	Operation string
	Message   string
	Hint      string
	// Output holds captured process output for conversion failures.
	Output string
	Cause  error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 4)
	if e.Kind != kindUnknown {
		parts = append(parts, strings.ReplaceAll(string(e.Kind), "_", " "))
	}
	if op := strings.TrimSpace(e.Operation); op != "" {
		parts = append(parts, op)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Cause }

// Wrap builds a structured error of the given kind.
func Wrap(kind Kind, operation, message string, cause error) error {
	return &Error{Kind: kind, Operation: operation, Message: message, Cause: cause}
}

// Wrapf is Wrap with a formatted message and no cause.
func Wrapf(kind Kind, operation, format string, args ...any) error {
	return &Error{Kind: kind, Operation: operation, Message: fmt.Sprintf(format, args...)}
}

// WithHint returns err with an operator hint attached when err is an *Error.
func WithHint(err error, hint string) error {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		return err
	}
	clone := *svcErr
	clone.Hint = hint
	return &clone
}

// ErrorDetails is the flattened view of an error used for structured logging.
type ErrorDetails struct {
	Kind      Kind
	Operation string
	Message   string
	Hint      string
	Output    string
	Cause     error
}

// Details extracts the outermost *Error in err's chain. Errors without one
// report KindTransient so unknown failures stay retryable.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		return ErrorDetails{Kind: KindTransient, Message: err.Error(), Cause: err}
	}
	kind := svcErr.Kind
	if kind == kindUnknown {
		kind = KindTransient
	}
	return ErrorDetails{
		Kind:      kind,
		Operation: svcErr.Operation,
		Message:   svcErr.Message,
		Hint:      svcErr.Hint,
		Output:    svcErr.Output,
		Cause:     svcErr.Cause,
	}
}

// KindOf returns the error kind carried by err.
func KindOf(err error) Kind {
	return Details(err).Kind
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether a failure of this kind may succeed on a later
// attempt. Validation problems, missing or corrupt templates, and bad field
// references fail the same way every time.
func Retryable(kind Kind) bool {
	switch kind {
	case KindValidation, KindTemplateNotFound, KindTemplateInvalidFormat, KindMergeField:
		return false
	default:
		return true
	}
}
