package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Refresher reloads reference data into the cache.
type Refresher interface {
	RefreshReference(ctx context.Context) error
}

// ReferenceWarmupJob refreshes provinces, communes and pickup centers on a
// cron schedule so lookups rarely reach the carrier.
type ReferenceWarmupJob struct {
	refresher Refresher
	schedule  string
	timeout   time.Duration
	cron      *cron.Cron
	logger    *otelzap.Logger
}

// NewReferenceWarmupJob creates the job. schedule is a standard five-field
// cron expression or a descriptor such as "@every 4m".
func NewReferenceWarmupJob(refresher Refresher, schedule string, logger *otelzap.Logger) *ReferenceWarmupJob {
	return &ReferenceWarmupJob{
		refresher: refresher,
		schedule:  schedule,
		timeout:   2 * time.Minute,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:    logger,
	}
}

// Run performs one refresh. Failures are logged; the next tick tries again.
func (j *ReferenceWarmupJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	if err := j.refresher.RefreshReference(ctx); err != nil {
		j.logger.Ctx(ctx).Warn("Reference warm-up failed", zap.Error(err))
		return err
	}
	j.logger.Ctx(ctx).Info("Reference data refreshed", zap.Duration("duration", time.Since(start)))
	return nil
}

// Start schedules the job.
func (j *ReferenceWarmupJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		_ = j.Run(context.Background())
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info("Reference warm-up job started", zap.String("schedule", j.schedule))
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (j *ReferenceWarmupJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("Reference warm-up job stopped")
}
