package shipping_test

import (
	"context"
	"time"

	"github.com/tournevent/shipping/pkg/cache"
	"github.com/tournevent/shipping/pkg/retry"
	"github.com/tournevent/shipping/pkg/shipping"
	"github.com/tournevent/shipping/pkg/yalidine"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

// newService builds a service over api with an in-memory cache and a retry
// policy that records its pauses instead of sleeping.
func newService(api yalidine.APIClient, opts ...shipping.Option) (*shipping.Service, *sleepRecorder) {
	return newServiceWithCache(api, cache.New(cache.DefaultTTL), opts...)
}

func newServiceWithCache(api yalidine.APIClient, c *cache.Cache, opts ...shipping.Option) (*shipping.Service, *sleepRecorder) {
	rec := &sleepRecorder{}
	policy := retry.Default()
	policy.Sleep = rec.Sleep
	cfg := shipping.Config{
		FromProvinceName: "Batna",
		Retry:            policy,
	}
	return shipping.New(cfg, api, c, otelzap.New(zap.NewNop()), opts...), rec
}

func homeRequest() shipping.ShipmentRequest {
	return shipping.ShipmentRequest{
		OrderID:        "CMD-1001",
		FirstName:      "Amina",
		FamilyName:     "Benali",
		ContactPhone:   "0551234567",
		Address:        "12 Rue des Oliviers",
		ToProvinceName: "Alger",
		ToCommuneName:  "Bab Ezzouar",
		ProductList:    "Robe kabyle x1",
		Price:          4500,
		DeclaredValue:  4500,
		Weight:         1,
	}
}

func pickupRequest() shipping.ShipmentRequest {
	req := homeRequest()
	req.OrderID = "CMD-1002"
	req.Address = ""
	req.IsStopDesk = true
	req.StopDeskID = 161301
	return req
}

func apiError(status int, body string) error {
	return &yalidine.APIError{StatusCode: status, Body: body}
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
