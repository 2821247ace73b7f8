// Package apperr defines the error kinds shared by every component so that
// handlers can map failures to stable HTTP responses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the client.
type Kind int

const (
	// KindUnknown is an unclassified internal failure.
	KindUnknown Kind = iota
	// KindUnauthorized means no or invalid identity.
	KindUnauthorized
	// KindForbidden means authenticated but lacking the required capability.
	KindForbidden
	// KindNotFound means session/participant/message/recording absent.
	KindNotFound
	// KindInvalidState means the operation is illegal for the current lifecycle status.
	KindInvalidState
	// KindRateLimited means slow-mode or another throttle triggered.
	KindRateLimited
	// KindRejected means content moderation rejected the payload.
	KindRejected
	// KindNotReady means the broadcaster offer has not been published yet.
	KindNotReady
	// KindInvalidRequest means a malformed or unknown payload.
	KindInvalidRequest
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error with a kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Unauthorized creates an Unauthorized error.
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

// Forbidden creates a Forbidden error.
func Forbidden(message string) *Error { return New(KindForbidden, message) }

// NotFound creates a NotFound error.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// InvalidState creates an InvalidState error.
func InvalidState(message string) *Error { return New(KindInvalidState, message) }

// RateLimited creates a RateLimited error.
func RateLimited(message string) *Error { return New(KindRateLimited, message) }

// Rejected creates a Rejected error.
func Rejected(message string) *Error { return New(KindRejected, message) }

// NotReady creates a NotReady error.
func NotReady(message string) *Error { return New(KindNotReady, message) }

// InvalidRequest creates an InvalidRequest error.
func InvalidRequest(message string) *Error { return New(KindInvalidRequest, message) }

// KindOf returns the kind of err, or KindUnknown if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
