package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable machine-readable classification of an error. It is what
// clients key on; the message is for humans.
type Kind string

const (
	KindBadRequest      Kind = "bad_request"
	KindNotFound        Kind = "not_found"
	KindInvalidDeviceID Kind = "invalid_device_id"
	KindInvalidToken    Kind = "invalid_token"
	KindRateLimited     Kind = "rate_limited"
	KindUpstreamFailure Kind = "upstream_failure"
	KindStorageFailure  Kind = "storage_failure"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
)

// Error carries a Kind alongside the human-readable message and an optional
// wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping a cause
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain, defaulting to KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindBadRequest, KindInvalidDeviceID:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidToken:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindConflict:
		return http.StatusConflict
	case KindUpstreamFailure:
		return http.StatusBadGateway
	case KindStorageFailure, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
