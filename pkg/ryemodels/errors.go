package ryemodels

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a RyeError across the full taxonomy the runtime can
// raise, from signature checks down to provider failures.
type ErrorKind string

const (
	ErrIntegrity      ErrorKind = "integrity_error"
	ErrChain          ErrorKind = "chain_error"
	ErrPermission     ErrorKind = "permission_denied"
	ErrBudget         ErrorKind = "budget_exceeded"
	ErrSubprocess     ErrorKind = "subprocess_error"
	ErrProvider       ErrorKind = "provider_error"
	ErrResolution     ErrorKind = "resolution_error"
	ErrValidation     ErrorKind = "validation_error"
)

// RyeError is a structured error carrying a Kind for taxonomy-aware callers
// (CLI exit codes, audit log severities, retry policy) plus optional thread
// and item context.
type RyeError struct {
	Kind     ErrorKind
	ThreadID string
	ItemID   string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *RyeError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	switch {
	case e.ThreadID != "" && e.ItemID != "":
		return fmt.Sprintf("[%s] thread=%s item=%s: %s", e.Kind, e.ThreadID, e.ItemID, msg)
	case e.ThreadID != "":
		return fmt.Sprintf("[%s] thread=%s: %s", e.Kind, e.ThreadID, msg)
	case e.ItemID != "":
		return fmt.Sprintf("[%s] item=%s: %s", e.Kind, e.ItemID, msg)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, msg)
	}
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *RyeError) Unwrap() error {
	return e.Cause
}

// NewRyeError builds a RyeError of the given kind wrapping cause.
func NewRyeError(kind ErrorKind, cause error) *RyeError {
	err := &RyeError{Kind: kind, Cause: cause}
	if cause != nil {
		err.Message = cause.Error()
	}
	return err
}

// WithThread sets the thread id this error occurred in.
func (e *RyeError) WithThread(threadID string) *RyeError {
	e.ThreadID = threadID
	return e
}

// WithItem sets the item id this error concerns.
func (e *RyeError) WithItem(itemID string) *RyeError {
	e.ItemID = itemID
	return e
}

// WithMessage sets a custom human-readable message, overriding the cause's.
func (e *RyeError) WithMessage(msg string) *RyeError {
	e.Message = msg
	return e
}

// IsKind reports whether err is a *RyeError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var rerr *RyeError
	if errors.As(err, &rerr) {
		return rerr.Kind == kind
	}
	return false
}

// GetRyeError extracts a *RyeError from an error chain using errors.As.
func GetRyeError(err error) (*RyeError, bool) {
	var rerr *RyeError
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}
