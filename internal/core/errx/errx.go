// Package errx carries the application error type and the failure taxonomy
// used by the dialogue engine to decide what is fatal, what is recovered
// in-chat, and what degrades silently.
package errx

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by the policy applied to it.
type Kind string

const (
	// KindConfiguration aborts startup.
	KindConfiguration Kind = "configuration"
	// KindDataLoad is fatal at startup for corpus/menu, recovered in-chat
	// for a single FAQ category.
	KindDataLoad Kind = "data_load"
	// KindPersistence is recovered via the fallback store tier.
	KindPersistence Kind = "persistence"
)

const (
	SystemErrorMessage   = "internal server error"
	RedisErrorMessage    = "redis operation failed"
	RedisNotFoundMessage = "redis key not found"
	DataLoadErrorMessage = "data document missing or malformed"
)

// Error wraps an underlying error with a kind, an HTTP status and a safe
// message that can reach a client.
type Error struct {
	Err     error
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, kind Kind, status int, message string) *Error {
	return &Error{
		Err:     err,
		Kind:    kind,
		Status:  status,
		Message: message,
	}
}

// DataLoad wraps a document loading failure.
func DataLoad(err error, message string) *Error {
	if message == "" {
		message = DataLoadErrorMessage
	}
	return New(err, KindDataLoad, http.StatusInternalServerError, message)
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func (e *Error) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**Error); ok {
		*t = e
		return true
	}
	return false
}
