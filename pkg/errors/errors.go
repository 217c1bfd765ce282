package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

type Code string

const (
	CodeInvalidProposal   Code = "invalid_proposal"
	CodeInvalidReport     Code = "invalid_report"
	CodeInvalidRequest    Code = "invalid_request"
	CodeUnauthenticated   Code = "unauthenticated"
	CodeAccessDenied      Code = "access_denied"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeAlreadyResolved   Code = "already_resolved"
	CodeInvalidState      Code = "invalid_state"
	CodeDependencyFailure Code = "dependency_failure"
)

var statusByCode = map[Code]int{
	CodeInvalidProposal:   http.StatusBadRequest,
	CodeInvalidReport:     http.StatusBadRequest,
	CodeInvalidRequest:    http.StatusBadRequest,
	CodeUnauthenticated:   http.StatusUnauthorized,
	CodeAccessDenied:      http.StatusForbidden,
	CodeForbidden:         http.StatusForbidden,
	CodeNotFound:          http.StatusNotFound,
	CodeAlreadyResolved:   http.StatusConflict,
	CodeInvalidState:      http.StatusConflict,
	CodeDependencyFailure: http.StatusInternalServerError,
}

// ExchangeError is a domain failure of the negotiation engine.
type ExchangeError struct {
	Code    Code
	Message string
	Meta    map[string]any
	cause   error
}

func newf(code Code, format string, args ...any) *ExchangeError {
	return &ExchangeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func InvalidProposal(format string, args ...any) *ExchangeError {
	return newf(CodeInvalidProposal, format, args...)
}

func InvalidReport(format string, args ...any) *ExchangeError {
	return newf(CodeInvalidReport, format, args...)
}

func InvalidRequest(format string, args ...any) *ExchangeError {
	return newf(CodeInvalidRequest, format, args...)
}

func Unauthenticated(format string, args ...any) *ExchangeError {
	return newf(CodeUnauthenticated, format, args...)
}

func AccessDenied(format string, args ...any) *ExchangeError {
	return newf(CodeAccessDenied, format, args...)
}

func Forbidden(format string, args ...any) *ExchangeError {
	return newf(CodeForbidden, format, args...)
}

func NotFound(format string, args ...any) *ExchangeError {
	return newf(CodeNotFound, format, args...)
}

func AlreadyResolved(format string, args ...any) *ExchangeError {
	return newf(CodeAlreadyResolved, format, args...)
}

func InvalidState(format string, args ...any) *ExchangeError {
	return newf(CodeInvalidState, format, args...)
}

// DependencyFailure wraps a failed call to a downstream collaborator.
func DependencyFailure(dependency string, cause error) *ExchangeError {
	e := newf(CodeDependencyFailure, "%s: %v", dependency, cause)
	e.cause = cause
	return e.With("dependency", dependency)
}

func (e *ExchangeError) Error() string {
	return e.Message
}

func (e *ExchangeError) Unwrap() error {
	return e.cause
}

// With attaches a meta value that is rendered with the error response.
func (e *ExchangeError) With(key string, value any) *ExchangeError {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[key] = value
	return e
}

func (e *ExchangeError) StatusCode() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (e *ExchangeError) ToHTTPError() *httperror.HTTPError {
	herr := httperror.NewHTTPError(e.StatusCode(), e.Message).AddMetaValue("code", string(e.Code))
	for k, v := range e.Meta {
		herr = herr.AddMetaValue(k, v)
	}
	return herr
}

// As returns the ExchangeError in err's chain.
func As(err error) (*ExchangeError, bool) {
	var e *ExchangeError
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}
