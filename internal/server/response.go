package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tournevent/shipping/pkg/shipping"
)

type errorBody struct {
	Success       bool   `json:"success"`
	Error         string `json:"error"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	Field         string `json:"field,omitempty"`
	CarrierStatus int    `json:"carrierStatus,omitempty"`
	CarrierBody   string `json:"carrierBody,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind onto the HTTP status returned to callers.
func statusFor(kind shipping.Kind) int {
	switch kind {
	case shipping.KindNotConfigured:
		return http.StatusServiceUnavailable
	case shipping.KindValidation, shipping.KindBusinessRejection:
		return http.StatusBadRequest
	case shipping.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	var se *shipping.Error
	if !errors.As(err, &se) {
		se = shipping.NewError(shipping.KindTransient, err.Error()).WithCause(err)
	}
	writeJSON(w, statusFor(se.Kind), errorBody{
		Error:         se.Message,
		Kind:          string(se.Kind),
		Message:       shipping.UserMessage(se.Kind),
		Field:         se.Field,
		CarrierStatus: se.StatusCode,
		CarrierBody:   se.CarrierBody,
	})
}
