package replay

import (
	"errors"
	"fmt"

	"github.com/roach88/eventstate/internal/appliers"
	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// ReplayError represents a fatal error while applying an event.
type ReplayError struct {
	// Code identifies the error category.
	Code ReplayErrorCode

	// Message is a human-readable description.
	Message string

	Position int64
	Key      int64
	Intent   protocol.Intent
	Version  int32

	// Err is the underlying cause.
	Err error
}

// ReplayErrorCode categorizes replay errors.
type ReplayErrorCode string

const (
	// ErrCodeNoApplier indicates no applier is registered for the event's
	// intent and record version.
	ErrCodeNoApplier ReplayErrorCode = "NO_APPLIER"

	// ErrCodeInconsistentState indicates the event contradicts the stored
	// state: a missing or duplicate key, or a record of the wrong type.
	ErrCodeInconsistentState ReplayErrorCode = "INCONSISTENT_STATE"

	// ErrCodeApplyFailed indicates any other failure, usually storage.
	ErrCodeApplyFailed ReplayErrorCode = "APPLY_FAILED"
)

// Error implements the error interface.
func (e *ReplayError) Error() string {
	return fmt.Sprintf("%s: %s (position=%d, intent=%s, version=%d, key=%d)",
		e.Code, e.Message, e.Position, e.Intent, e.Version, e.Key)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

// IsNoApplierError returns true if the error is a missing applier error.
// Uses errors.As to handle wrapped errors.
func IsNoApplierError(err error) bool {
	var re *ReplayError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNoApplier
	}
	return false
}

// IsInconsistencyError returns true if the error reports state that does
// not match the event log.
func IsInconsistencyError(err error) bool {
	var re *ReplayError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInconsistentState
	}
	return false
}

// newReplayError wraps a failure to apply e with the matching code.
func newReplayError(e protocol.Event, err error) *ReplayError {
	code := ErrCodeApplyFailed
	switch {
	case appliers.IsNoApplierError(err):
		code = ErrCodeNoApplier
	case db.IsInconsistencyError(err), errors.Is(err, appliers.ErrUnexpectedRecord):
		code = ErrCodeInconsistentState
	}
	return &ReplayError{
		Code:     code,
		Message:  err.Error(),
		Position: e.Position,
		Key:      e.Key,
		Intent:   e.Intent,
		Version:  e.RecordVersion,
		Err:      err,
	}
}
