package shipping_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/shipping/pkg/shipping"
	"github.com/tournevent/shipping/pkg/yalidine"
)

func TestError_Error(t *testing.T) {
	err := shipping.NewError(shipping.KindValidation, "must be an Algerian mobile number").WithField("contactPhone")
	assert.Equal(t, "shipping validation (contactPhone): must be an Algerian mobile number", err.Error())
}

func TestError_ErrorWithCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := shipping.NewError(shipping.KindTransient, "carrier unreachable").WithCause(cause)
	assert.Contains(t, err.Error(), "carrier unreachable")
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.True(t, errors.Is(err, cause))
}

func TestError_IsByKind(t *testing.T) {
	a := shipping.NewError(shipping.KindNotFound, "parcel not found")
	b := shipping.NewError(shipping.KindNotFound, "different message")
	c := shipping.NewError(shipping.KindValidation, "parcel not found")

	assert.True(t, errors.Is(a, b))
	assert.True(t, errors.Is(a, shipping.ErrNotFound))
	assert.False(t, errors.Is(a, c))
}

func TestError_Builders(t *testing.T) {
	err := shipping.NewError(shipping.KindValidation, "bad").
		WithStatusCode(400).
		WithCarrierBody(`{"error":"bad"}`)
	assert.Equal(t, 400, err.StatusCode)
	assert.Equal(t, `{"error":"bad"}`, err.CarrierBody)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, shipping.KindTransient, shipping.KindOf(shipping.NewError(shipping.KindTransient, "x")))
	assert.Equal(t, shipping.Kind(""), shipping.KindOf(errors.New("plain")))
	assert.Equal(t, shipping.Kind(""), shipping.KindOf(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, shipping.IsRetryable(shipping.ErrTransient))
	assert.False(t, shipping.IsRetryable(shipping.ErrValidation))
	assert.False(t, shipping.IsRetryable(shipping.ErrNotConfigured))
	assert.False(t, shipping.IsRetryable(errors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	retryLater := shipping.UserMessage(shipping.KindTransient)
	assert.Equal(t, retryLater, shipping.UserMessage(shipping.KindNotConfigured))
	assert.NotEqual(t, retryLater, shipping.UserMessage(shipping.KindValidation))
	assert.NotEqual(t, retryLater, shipping.UserMessage(shipping.KindBusinessRejection))
	assert.Equal(t, shipping.UserMessage(shipping.KindBusinessRejection), shipping.UserMessage(shipping.KindNotFound))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    shipping.Kind
		retries bool
	}{
		{"400", apiError(400, `{"error":"bad phone"}`), shipping.KindValidation, false},
		{"422", apiError(422, `{}`), shipping.KindValidation, false},
		{"401", apiError(401, `{"error":"invalid token"}`), shipping.KindNotConfigured, false},
		{"403", apiError(403, `{}`), shipping.KindNotConfigured, false},
		{"404", apiError(404, `{}`), shipping.KindNotFound, false},
		{"429", apiError(429, `{}`), shipping.KindTransient, true},
		{"500", apiError(500, `{}`), shipping.KindTransient, true},
		{"transport", &yalidine.TransportError{Op: "GET /parcels/", Err: errors.New("i/o timeout")}, shipping.KindTransient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := yalidine.NewMockAPIClient()
			api.OnParcel = func(context.Context, string) (*yalidine.Parcel, error) { return nil, tt.err }
			svc, sleeps := newService(api)

			_, err := svc.GetShipment(context.Background(), "yal-1")

			assert.Equal(t, tt.kind, shipping.KindOf(err))
			if tt.retries {
				assert.Equal(t, 3, api.Calls("Parcel"))
				assert.Len(t, sleeps.delays, 2)
			} else {
				assert.Equal(t, 1, api.Calls("Parcel"))
				assert.Empty(t, sleeps.delays)
			}
		})
	}
}
