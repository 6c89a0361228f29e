package errx

import (
	"errors"
	"fmt"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal error"
	// APIErrorMessage describes non-success responses from the completion API.
	APIErrorMessage = "completion api returned an error status"
	// EmptyResponseMessage describes a completion without usable content.
	EmptyResponseMessage = "completion api returned an empty response"
	// TimeoutMessage describes a completion call that ran out of time.
	TimeoutMessage = "completion request timed out"
	// RequestErrorMessage describes transport and decoding failures.
	RequestErrorMessage = "completion request failed"
	// CanceledMessage describes a completion abandoned by its caller.
	CanceledMessage = "completion request canceled"
	// SendErrorMessage describes failures delivering a message to the chat platform.
	SendErrorMessage = "failed to send message"
)

// AppError wraps an underlying error with a failure kind, an optional upstream
// status and a safe message.
type AppError struct {
	Kind    Kind
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError of the given kind.
func New(kind Kind, err error, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Err:     err,
		Message: message,
	}
}

// Is reports whether the target matches the underlying error or is an AppError of the same kind
// with no further detail.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok && t.Err == nil && t.Status == 0 {
		return t.Kind == e.Kind
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}

// KindOf returns the kind of the first AppError in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the upstream status recorded on err, or 0.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}
