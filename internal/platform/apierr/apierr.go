package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
)

// ErrUnauthorized marks failed authentication. Wrap it to add detail.
var ErrUnauthorized = errors.New("unauthorized")

// Error is an error already resolved to an HTTP status and a machine-readable code.
type Error struct {
	Status int
	Code   string
	Err    error
	Fields []domainagg.FieldError
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
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// StatusFor maps a domain error code to its HTTP status class.
func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeForbidden:
		return http.StatusForbidden
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodePreconditionFailed, domainagg.CodeInvariantViolation:
		return http.StatusBadRequest
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// From resolves any error into an *Error. Unknown errors become 500 internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, ErrUnauthorized) {
		return &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Err: err}
	}
	if de, ok := domainagg.As(err); ok {
		code := de.Code
		if code == "" {
			code = domainagg.CodeInternal
		}
		return &Error{Status: StatusFor(code), Code: string(code), Err: err, Fields: de.Fields}
	}
	return &Error{Status: http.StatusInternalServerError, Code: string(domainagg.CodeInternal), Err: err}
}

// PublicMessage is what clients see. Internal causes are never echoed.
func (e *Error) PublicMessage() string {
	if e == nil {
		return ""
	}
	if e.Status >= http.StatusInternalServerError {
		return "internal server error"
	}
	if de, ok := domainagg.As(e.Err); ok && de.Message != "" {
		return de.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}
