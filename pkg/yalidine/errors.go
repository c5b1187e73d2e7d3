package yalidine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConfigured is returned by every call when credentials are missing.
	ErrNotConfigured = errors.New("yalidine: API credentials not configured")

	// ErrParcelNotFound is returned when the carrier answers 200 with no parcel.
	ErrParcelNotFound = errors.New("yalidine: parcel not found")
)

// APIError is a non-2xx response from the carrier. Body holds the response
// body verbatim.
type APIError struct {
	StatusCode int
	Body       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("yalidine: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("yalidine: HTTP %d: %s", e.StatusCode, e.Body)
}

// TransportError is a failure to reach the carrier or read its response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("yalidine: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: transport failures,
// 5xx responses and 429 (quota exceeded). Context cancellation is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError ||
			apiErr.StatusCode == http.StatusTooManyRequests
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// StatusCode returns the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// newAPIError builds an APIError, extracting a message when the body is one
// of the carrier's known error shapes.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}

	var nested struct {
		Error struct {
			Code    any    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		apiErr.Message = nested.Error.Message
		return apiErr
	}

	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &flat); err == nil {
		if flat.Message != "" {
			apiErr.Message = flat.Message
		} else {
			apiErr.Message = flat.Error
		}
	}
	return apiErr
}
