package billing

import (
	"errors"
	"fmt"
)

// ErrorKind identifies which rule rejected an operation. Values are stable
// and exposed verbatim in API responses so surfaces can show targeted
// messages.
type ErrorKind string

const (
	KindUnauthorized          ErrorKind = "Unauthorized"
	KindTerminalState         ErrorKind = "TerminalState"
	KindImmutable             ErrorKind = "Immutable"
	KindBackwardTransition    ErrorKind = "BackwardTransition"
	KindSystemManagedStatus   ErrorKind = "SystemManagedStatus"
	KindImmutableNumberChange ErrorKind = "ImmutableNumberChange"
	KindValidationFailed      ErrorKind = "ValidationFailed"
	KindNotFound              ErrorKind = "NotFound"
	KindStorageFailure        ErrorKind = "StorageFailure"
)

// Error is the typed failure returned by every guard and by the
// orchestrator. The engine never panics; collaborator failures are wrapped
// at the orchestrator boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a typed engine error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf builds a typed engine error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to a collaborator failure.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
