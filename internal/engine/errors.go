package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/artifacts/internal/store"
)

// ErrLookupNotConfigured is returned when a generic record type is missing
// its case or artifact lookup field name. Entry points treat it as a no-op.
var ErrLookupNotConfigured = errors.New("lookup fields not configured")

// ExecutionError is the single failure signal of an invocation.
//
// ExecutionError carries the original failure's message and keeps it
// reachable through Unwrap, so callers can still errors.As into
// *store.DataAccessError or *store.MetadataError.
type ExecutionError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is the original failure's message.
	Message string

	// RecordType and RecordID identify the triggering record.
	RecordType string
	RecordID   string

	// Err is the underlying failure.
	Err error
}

// ErrorCode categorizes execution failures.
type ErrorCode string

const (
	// ErrCodeDataAccess indicates the store was unreachable or rejected a request.
	ErrCodeDataAccess ErrorCode = "DATA_ACCESS"

	// ErrCodeMetadata indicates an option label could not be resolved.
	ErrCodeMetadata ErrorCode = "METADATA"

	// ErrCodeEvaluationAbort covers every other unexpected failure.
	ErrCodeEvaluationAbort ErrorCode = "EVALUATION_ABORT"
)

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.RecordType != "" {
		return fmt.Sprintf("%s: %s (record=%s/%s)", e.Code, e.Message, e.RecordType, e.RecordID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying failure.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsDataAccess returns true if err is an execution failure caused by the store.
// Uses errors.As to handle wrapped errors.
func IsDataAccess(err error) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeDataAccess
	}
	return false
}

// IsMetadata returns true if err is an execution failure caused by a missing
// option label.
func IsMetadata(err error) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeMetadata
	}
	return false
}

// newExecutionError classifies err for the triggering record.
func newExecutionError(t Trigger, err error) *ExecutionError {
	var (
		de *store.DataAccessError
		me *store.MetadataError
	)
	code := ErrCodeEvaluationAbort
	switch {
	case errors.As(err, &de):
		code = ErrCodeDataAccess
	case errors.As(err, &me):
		code = ErrCodeMetadata
	}
	return &ExecutionError{
		Code:       code,
		Message:    err.Error(),
		RecordType: t.RecordType,
		RecordID:   t.RecordID,
		Err:        err,
	}
}
