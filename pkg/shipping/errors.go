package shipping

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tournevent/shipping/pkg/yalidine"
)

// Kind classifies a shipping failure by what the caller can do about it.
type Kind string

const (
	KindNotConfigured     Kind = "not_configured"
	KindValidation        Kind = "validation"
	KindTransient         Kind = "transient"
	KindBusinessRejection Kind = "business_rejection"
	KindNotFound          Kind = "not_found"
)

// Error is the error type returned by every Service operation.
type Error struct {
	Kind        Kind
	Field       string
	Message     string
	StatusCode  int
	CarrierBody string
	Cause       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("shipping %s: %v", msg, e.Cause)
	}
	return "shipping " + msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for Error. Two errors match when their kinds do.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a new Error.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode adds the carrier HTTP status to the error.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithField names the input field that was rejected.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithCarrierBody attaches the carrier's response body verbatim.
func (e *Error) WithCarrierBody(body string) *Error {
	e.CarrierBody = body
	return e
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrNotConfigured     = &Error{Kind: KindNotConfigured}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrTransient         = &Error{Kind: KindTransient}
	ErrBusinessRejection = &Error{Kind: KindBusinessRejection}
	ErrNotFound          = &Error{Kind: KindNotFound}
)

// KindOf returns the kind of err, or "" if err is not a shipping error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable returns true if the error is worth retrying later.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// UserMessage returns the text shown to staff for a kind of failure.
func UserMessage(kind Kind) string {
	switch kind {
	case KindNotConfigured, KindTransient:
		return "Shipping is temporarily unavailable, please retry later."
	case KindValidation:
		return "Please fix the highlighted shipping information."
	case KindBusinessRejection, KindNotFound:
		return "The carrier reported a problem with this parcel or order."
	default:
		return "Unexpected shipping error."
	}
}

// classify maps a carrier client error onto a shipping Error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	if errors.Is(err, yalidine.ErrNotConfigured) {
		return NewError(KindNotConfigured, "Yalidine API credentials are not configured").WithCause(err)
	}
	if errors.Is(err, yalidine.ErrParcelNotFound) {
		return NewError(KindNotFound, "parcel not found").WithCause(err)
	}

	var apiErr *yalidine.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		var kind Kind
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			kind = KindNotFound
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			kind = KindNotConfigured
		case yalidine.IsTransient(apiErr):
			kind = KindTransient
		default:
			kind = KindValidation
		}
		return NewError(kind, msg).
			WithStatusCode(apiErr.StatusCode).
			WithCarrierBody(apiErr.Body).
			WithCause(err)
	}

	if errors.Is(err, context.Canceled) {
		return NewError(KindTransient, "request cancelled").WithCause(err)
	}
	return NewError(KindTransient, "carrier unreachable").WithCause(err)
}
