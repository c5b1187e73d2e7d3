// Package shipping is the Yalidine integration core: reference lookups,
// fee quotes, parcel lifecycle and tracking. It composes the carrier client
// with a TTL cache and a retry policy.
package shipping

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tournevent/shipping/pkg/cache"
	"github.com/tournevent/shipping/pkg/retry"
	"github.com/tournevent/shipping/pkg/yalidine"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/tournevent/shipping/pkg/shipping"

// Config holds the service settings.
type Config struct {
	// FromProvinceName is the origin wilaya sent with every parcel.
	FromProvinceName string
	Retry            retry.Policy
	FeeRules         FeeRules
	// StatsConcurrency bounds parallel page fetches in FleetStats.
	StatsConcurrency int
}

// Recorder receives operation outcomes for metrics.
type Recorder interface {
	ObserveOperation(operation, status string)
	ObserveRetry(operation string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string) {}
func (nopRecorder) ObserveRetry(string)             {}

// Service is the shipping integration core.
type Service struct {
	api      yalidine.APIClient
	cache    *cache.Cache
	logger   *otelzap.Logger
	tracer   trace.Tracer
	recorder Recorder
	validate *validator.Validate
	now      func() time.Time

	fromProvince     string
	retry            retry.Policy
	rules            FeeRules
	statsConcurrency int

	lookups    singleflight.Group
	generation atomic.Uint64
}

// Option configures a Service.
type Option func(*Service)

// WithTracer sets the tracer. The global provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithRecorder registers a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the time source used for month filters.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(cfg Config, api yalidine.APIClient, c *cache.Cache, logger *otelzap.Logger, opts ...Option) *Service {
	policy := cfg.Retry
	if policy.Attempts <= 0 {
		policy.Attempts = retry.DefaultAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = retry.DefaultBaseDelay
	}
	concurrency := cfg.StatsConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	if c == nil {
		c = cache.New(cache.DefaultTTL)
	}

	s := &Service{
		api:              api,
		cache:            c,
		logger:           logger,
		tracer:           otel.Tracer(tracerName),
		recorder:         nopRecorder{},
		validate:         newValidator(),
		now:              time.Now,
		fromProvince:     cfg.FromProvinceName,
		retry:            policy,
		rules:            cfg.FeeRules.withDefaults(),
		statsConcurrency: concurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsConfigured reports whether carrier credentials are present.
func (s *Service) IsConfigured() bool {
	return s.api.IsConfigured()
}

// Status reports whether the integration is usable.
func (s *Service) Status() ServiceStatus {
	if s.api.IsConfigured() {
		return ServiceStatus{Configured: true, Message: "Yalidine API is configured"}
	}
	return ServiceStatus{Configured: false, Message: "Yalidine API credentials are missing"}
}

func (s *Service) ready() error {
	if !s.api.IsConfigured() {
		return NewError(KindNotConfigured, "Yalidine API credentials are not configured").
			WithCause(yalidine.ErrNotConfigured)
	}
	return nil
}

func retryable(err error) bool {
	return IsRetryable(err) || yalidine.IsTransient(err)
}

// withRetry runs fn under the service retry policy and classifies the final
// error.
func withRetry[T any](ctx context.Context, s *Service, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	p := s.retry
	p.Retryable = retryable
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.recorder.ObserveRetry(operation)
		s.logger.Ctx(ctx).Warn("Carrier call failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	v, err := retry.Value(ctx, p, fn)
	if err != nil {
		return v, classify(err)
	}
	return v, nil
}

// fail records and logs a failed operation and returns err classified.
func (s *Service) fail(ctx context.Context, operation string, err error) error {
	err = classify(err)
	kind := KindOf(err)
	s.recorder.ObserveOperation(operation, string(kind))

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))

	log := s.logger.Ctx(ctx)
	switch kind {
	case KindValidation, KindNotFound, KindBusinessRejection:
		log.Info("Shipping request rejected", zap.String("operation", operation), zap.String("kind", string(kind)), zap.Error(err))
	default:
		log.Error("Shipping request failed", zap.String("operation", operation), zap.String("kind", string(kind)), zap.Error(err))
	}
	return err
}

func (s *Service) succeed(operation string) {
	s.recorder.ObserveOperation(operation, "ok")
}
