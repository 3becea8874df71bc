package appliers

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/eventstate/internal/protocol"
)

// Registration failures. Each is reported as a *RegistrationError that
// matches one of these with errors.Is.
var (
	ErrNegativeVersion  = errors.New("applier version must not be negative")
	ErrNilIntent        = errors.New("intent must be set")
	ErrNilApplier       = errors.New("applier must not be nil")
	ErrNotAnEvent       = errors.New("intent is not an event")
	ErrDuplicateApplier = errors.New("applier already registered")
)

// ErrNoSuchApplier is matched by both dispatch errors.
var ErrNoSuchApplier = errors.New("no applier registered")

// ErrUnexpectedRecord means an applier received a record value of the wrong
// type for its intent.
var ErrUnexpectedRecord = errors.New("unexpected record value")

// RegistrationError is returned by Register. It aborts startup.
type RegistrationError struct {
	Intent  protocol.Intent
	Version int32
	Err     error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register applier %s v%d: %v", e.Intent, e.Version, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// NoApplierForIntentError means nothing at all is registered for the
// intent.
type NoApplierForIntentError struct {
	Intent protocol.Intent
}

func (e *NoApplierForIntentError) Error() string {
	return fmt.Sprintf("no applier registered for intent %s", e.Intent)
}

func (e *NoApplierForIntentError) Is(target error) bool {
	return target == ErrNoSuchApplier
}

// NoApplierForVersionError means the intent has appliers, but none for the
// requested version. Usually a newer log is being replayed by an older
// binary.
type NoApplierForVersionError struct {
	Intent        protocol.Intent
	Version       int32
	LatestVersion int32
}

func (e *NoApplierForVersionError) Error() string {
	return fmt.Sprintf("no applier registered for intent %s v%d (latest is v%d)", e.Intent, e.Version, e.LatestVersion)
}

func (e *NoApplierForVersionError) Is(target error) bool {
	return target == ErrNoSuchApplier
}

// IsNoApplierError reports whether err is a dispatch error.
func IsNoApplierError(err error) bool {
	return errors.Is(err, ErrNoSuchApplier)
}

func unexpectedRecord[T protocol.RecordValue](value protocol.RecordValue) error {
	var want T
	return fmt.Errorf("%w: want %T, got %T", ErrUnexpectedRecord, want, value)
}

// recordAs returns value as the record type T expected by an applier.
func recordAs[T protocol.RecordValue](value protocol.RecordValue) (T, error) {
	var zero T
	rec, ok := value.(T)
	if !ok {
		return zero, unexpectedRecord[T](value)
	}
	if v := reflect.ValueOf(rec); v.Kind() == reflect.Pointer && v.IsNil() {
		return zero, unexpectedRecord[T](value)
	}
	return rec, nil
}
