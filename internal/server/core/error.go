package core

import (
	"errors"
	"fmt"
)

// Error codes
const (
	ErrRoomNotFound      = "ROOM_NOT_FOUND"
	ErrRoomFull          = "ROOM_FULL"
	ErrStateConflict     = "STATE_CONFLICT"
	ErrRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrInvalidContent    = "INVALID_CONTENT_TYPE"
	ErrInvalidRequest    = "INVALID_REQUEST"
	ErrInternalError     = "INTERNAL_ERROR"
	ErrUnauthorized      = "UNAUTHORIZED"
)

// Kind classifies a domain error for the dispatch boundary
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindCapacity
	KindStateConflict
	KindAuthorization
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindCapacity:
		return "capacity"
	case KindStateConflict:
		return "state_conflict"
	case KindAuthorization:
		return "authorization"
	default:
		return "internal"
	}
}

// Code maps the kind to the wire error code
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return ErrInvalidRequest
	case KindNotFound:
		return ErrRoomNotFound
	case KindCapacity:
		return ErrRoomFull
	case KindStateConflict:
		return ErrStateConflict
	case KindAuthorization:
		return ErrUnauthorized
	default:
		return ErrInternalError
	}
}

// Error is a request-scoped failure carrying a human-readable message
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error { return newError(KindValidation, format, args...) }
func NotFound(format string, args ...any) error   { return newError(KindNotFound, format, args...) }
func Capacity(format string, args ...any) error   { return newError(KindCapacity, format, args...) }
func Conflict(format string, args ...any) error   { return newError(KindStateConflict, format, args...) }
func Forbidden(format string, args ...any) error  { return newError(KindAuthorization, format, args...) }

// KindOf reports the kind of err, KindInternal for anything untyped
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a domain error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// PublicMessage returns the text safe to show to a client
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// ErrorResponse is the REST error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
