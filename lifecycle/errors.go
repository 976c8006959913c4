package lifecycle

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed document operation so callers can decide
// between retrying, surfacing, or skipping.
type ErrorCode string

const (
	ErrCodeFileRead    ErrorCode = "file_read"
	ErrCodeParse       ErrorCode = "parse"
	ErrCodeValidation  ErrorCode = "validation"
	ErrCodeEmbedding   ErrorCode = "embedding"
	ErrCodePersistence ErrorCode = "persistence"
	ErrCodeNotFound    ErrorCode = "not_found"
)

// OpError carries the failure class alongside the underlying cause.
type OpError struct {
	Code ErrorCode
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opErr(code ErrorCode, err error) *OpError {
	return &OpError{Code: code, Err: err}
}

func opErrf(code ErrorCode, format string, args ...any) *OpError {
	return &OpError{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the classification from an error chain, defaulting to
// persistence for unclassified store failures.
func CodeOf(err error) ErrorCode {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ErrCodePersistence
}
