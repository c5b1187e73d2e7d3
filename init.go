package main

import (
	"context"
	"fmt"

	"github.com/tournevent/shipping/internal/config"
	"github.com/tournevent/shipping/internal/telemetry"
	"github.com/tournevent/shipping/pkg/cache"
	"github.com/tournevent/shipping/pkg/retry"
	"github.com/tournevent/shipping/pkg/shipping"
	"github.com/tournevent/shipping/pkg/yalidine"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel,
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.Version),
	)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
	return shutdown, err
}

func initAPIClient(cfg *config.Config, metrics *telemetry.Metrics) yalidine.APIClient {
	if cfg.YalidineUseMock {
		return yalidine.NewMockAPIClient()
	}
	return yalidine.NewHTTPAPIClient(yalidine.HTTPAPIClientConfig{
		APIID:         cfg.YalidineAPIID,
		APIToken:      cfg.YalidineAPIToken,
		BaseURL:       cfg.YalidineBaseURL,
		Timeout:       cfg.YalidineTimeout,
		RatePerSecond: cfg.YalidineRatePerSecond,
		Burst:         cfg.YalidineBurst,
		Observer:      metrics,
	})
}

// initCache returns a Redis-backed cache when REDIS_URL is set, otherwise an
// in-process one. The returned function releases the Redis connection.
func initCache(ctx context.Context, cfg *config.Config, logger *otelzap.Logger, metrics *telemetry.Metrics) (*cache.Cache, func(), error) {
	if cfg.RedisURL == "" {
		return cache.New(cfg.CacheTTL, cache.WithObserver(metrics)), func() {}, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	logger.Info("Using Redis reference cache")
	store := cache.NewRedisStore(client, cfg.ServiceName+":")
	return cache.NewWithStore(store, cfg.CacheTTL, cache.WithObserver(metrics)), func() { _ = client.Close() }, nil
}

func initService(ctx context.Context, cfg *config.Config, logger *otelzap.Logger, metrics *telemetry.Metrics) (*shipping.Service, func(), error) {
	c, closeCache, err := initCache(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, nil, err
	}

	policy := retry.Default()
	policy.Attempts = cfg.RetryAttempts
	policy.BaseDelay = cfg.RetryBaseDelay
	policy.AttemptTimeout = cfg.RetryAttemptTimeout

	svc := shipping.New(shipping.Config{
		FromProvinceName: cfg.YalidineFromWilaya,
		Retry:            policy,
	}, initAPIClient(cfg, metrics), c, logger,
		shipping.WithTracer(otel.Tracer(cfg.ServiceName)),
		shipping.WithRecorder(metrics),
	)
	return svc, closeCache, nil
}
