package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/tournevent/shipping/internal/jobs"
	"github.com/tournevent/shipping/internal/server"
	"github.com/tournevent/shipping/internal/telemetry"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "shipping",
	Short:   "Yalidine shipping bridge - fees, parcels and tracking for Algerian deliveries",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST and GraphQL server",
	RunE:  runServe,
}

var trackCmd = &cobra.Command{
	Use:   "track <tracking>",
	Short: "Print the status history of a parcel as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrack,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trackCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.Background())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)

	svc, closeCache, err := initService(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer closeCache()

	if !svc.IsConfigured() {
		logger.Warn("Yalidine credentials missing, shipping operations will report not configured")
	}

	if cfg.WarmupSchedule != "" {
		warmup := jobs.NewReferenceWarmupJob(svc, cfg.WarmupSchedule, logger)
		manager := jobs.NewJobManager(warmup)
		if err := manager.StartAll(); err != nil {
			return fmt.Errorf("starting jobs: %w", err)
		}
		defer manager.StopAll()
		if svc.IsConfigured() {
			go warmup.Run(ctx)
		}
	}

	logger.Info("Starting Yalidine shipping bridge",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Bool("mock", cfg.YalidineUseMock),
	)

	// Start HTTP server
	srv := server.New(server.Config{Port: cfg.Port, AllowedOrigins: cfg.CORSAllowedOrigins}, svc, registry, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.LogLevel = "error"
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	svc, closeCache, err := initService(ctx, cfg, logger, telemetry.NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		return err
	}
	defer closeCache()

	tracking, err := svc.Track(ctx, args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(tracking)
}
