package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure so the HTTP layer can map it to a status
// code without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindAuth
	KindForbidden
	KindContent // authoring mistake (e.g. dangling branch target), not a user error
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound satisfies the anonymous interface{ NotFound() } probe used by
// handlers that only care about the 404 case.
func (e *Error) NotFound() bool { return e.Kind == KindNotFound }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func NotFound(code, message string) *Error   { return New(KindNotFound, code, message) }
func Validation(code, message string) *Error { return New(KindValidation, code, message) }
func Conflict(code, message string) *Error   { return New(KindConflict, code, message) }
func Unauthorized(code, message string) *Error {
	return New(KindAuth, code, message)
}
func Forbidden(code, message string) *Error { return New(KindForbidden, code, message) }

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// CodeOf returns the machine-readable code of err, or "" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HTTPStatus maps an error to the response status the API contract promises:
// NotFound->404, Validation->400, Conflict->409, Auth->401, Forbidden->403,
// anything else->500. Content errors never reach a response as-is; they are
// degraded inside the engine.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
