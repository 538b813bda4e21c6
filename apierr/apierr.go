package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels wrapped by the store and codec layers; From maps them to HTTP errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalid         = errors.New("invalid argument")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

const (
	CodeValidation      = "validation"
	CodeConflict        = "conflict"
	CodeNotFound        = "not_found"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeInternal        = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(err error) *Error {
	return New(http.StatusBadRequest, CodeValidation, err)
}

// Conflict is reported as 400, matching the other business-rule failures.
func Conflict(err error) *Error {
	return New(http.StatusBadRequest, CodeConflict, err)
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

func Unauthenticated(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, err)
}

func Forbidden(err error) *Error {
	return New(http.StatusForbidden, CodeForbidden, err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, err)
}

// kindError carries a caller-facing message while still matching a sentinel via errors.Is.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Invalidf returns an error matching ErrInvalid with a formatted message.
func Invalidf(format string, args ...interface{}) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: ErrInvalid}
}

func NotFoundf(format string, args ...interface{}) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: ErrNotFound}
}

func Conflictf(format string, args ...interface{}) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: ErrConflict}
}

func Unauthenticatedf(format string, args ...interface{}) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: ErrUnauthenticated}
}

// From classifies any error into an *Error. Unknown errors become 500s.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return NotFound(err)
	case errors.Is(err, ErrConflict):
		return Conflict(err)
	case errors.Is(err, ErrInvalid):
		return Validation(err)
	case errors.Is(err, ErrUnauthenticated):
		return Unauthenticated(err)
	case errors.Is(err, ErrForbidden):
		return Forbidden(err)
	default:
		return Internal(err)
	}
}

// Envelope is the JSON body of every error response.
type Envelope struct {
	Error   Body   `json:"error"`
	Details string `json:"details,omitempty"`
}

type Body struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Envelope hides the message of internal errors behind a generic one and
// moves it to Details for operators.
func (e *Error) Envelope() Envelope {
	if e.Status >= http.StatusInternalServerError {
		return Envelope{
			Error:   Body{Message: "internal server error", Code: e.Code},
			Details: e.Error(),
		}
	}
	return Envelope{Error: Body{Message: e.Error(), Code: e.Code}}
}
