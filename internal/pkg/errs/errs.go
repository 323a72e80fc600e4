/*
Package errs provides custom error types and application-level error code constants.

This file defines CustomError, which carries a business code, the text shown to
the peer, and the HTTP status used when the error leaves through the admin API.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"quichat/internal/pkg/logx"
)

// CustomError is the error type returned by every user-facing operation.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-facing description. On a chat stream it is written
	// verbatim after the Error status byte.
	Message string

	// Status is the HTTP status code used by the admin API.
	Status int
}

func (e CustomError) Error() string {
	return fmt.Sprintf("error code %d: %s", e.Code, e.Message)
}

// Is matches any CustomError with the same code, so callers can write
// errors.Is(err, errs.NewError(errs.ErrNameTaken)).
func (e *CustomError) Is(target error) bool {
	var other *CustomError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// HasCode reports whether err is a CustomError with the given code.
func HasCode(err error, code int) bool {
	var ce *CustomError
	return errors.As(err, &ce) && ce.Code == code
}

// NewError builds a *CustomError from its code. details are printf arguments
// for messages with verbs; for ErrUnknown the first detail may be the
// underlying error, which is logged and not exposed. Unknown codes fall back to
// ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	tmpl, ok := errorMap[code]
	if !ok {
		logx.Error(fmt.Errorf("error code %d is not registered", code), "Unknown error code requested", "requested_code", code)
		tmpl = errorMap[ErrUnknown]
	}

	ce := tmpl
	if ce.Status == 0 {
		ce.Status = http.StatusBadRequest
	}

	switch {
	case len(details) == 0:
	case ce.Code == ErrUnknown:
		if cause, ok := details[0].(error); ok {
			logx.Error(cause, "Handling ErrUnknown with underlying error")
		}
	case strings.Contains(ce.Message, "%"):
		ce.Message = fmt.Sprintf(ce.Message, details...)
	default:
		logx.Warn("Details provided for error without formatting placeholders; ignored", "code", ce.Code)
	}

	return &ce
}
