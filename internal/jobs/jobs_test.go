package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipping/internal/jobs"
	"github.com/tournevent/shipping/pkg/cache"
	"github.com/tournevent/shipping/pkg/shipping"
	"github.com/tournevent/shipping/pkg/yalidine"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) RefreshReference(ctx context.Context) error {
	r.calls.Add(1)
	return r.err
}

type fakeJob struct {
	startErr error
	started  bool
	stopped  bool
}

func (j *fakeJob) Start() error {
	if j.startErr != nil {
		return j.startErr
	}
	j.started = true
	return nil
}

func (j *fakeJob) Stop() { j.stopped = true }

func TestReferenceWarmupJob_Run(t *testing.T) {
	logger := otelzap.New(zap.NewNop())

	ok := &countingRefresher{}
	require.NoError(t, jobs.NewReferenceWarmupJob(ok, "@every 5m", logger).Run(context.Background()))
	assert.Equal(t, int32(1), ok.calls.Load())

	failing := &countingRefresher{err: errors.New("carrier down")}
	assert.Error(t, jobs.NewReferenceWarmupJob(failing, "@every 5m", logger).Run(context.Background()))
}

func TestReferenceWarmupJob_FillsCache(t *testing.T) {
	logger := otelzap.New(zap.NewNop())
	api := yalidine.NewMockAPIClient()
	svc := shipping.New(shipping.Config{}, api, cache.New(cache.DefaultTTL), logger)

	job := jobs.NewReferenceWarmupJob(svc, "@every 5m", logger)
	require.NoError(t, job.Run(context.Background()))
	calls := api.TotalCalls()

	provinces, err := svc.Provinces(context.Background())
	require.NoError(t, err)
	assert.Len(t, provinces, 3)
	communes, err := svc.Communes(context.Background(), 16)
	require.NoError(t, err)
	assert.Len(t, communes, 2)
	assert.Equal(t, calls, api.TotalCalls())
}

func TestReferenceWarmupJob_StartStop(t *testing.T) {
	logger := otelzap.New(zap.NewNop())

	job := jobs.NewReferenceWarmupJob(&countingRefresher{}, "*/10 * * * *", logger)
	require.NoError(t, job.Start())
	job.Stop()

	bad := jobs.NewReferenceWarmupJob(&countingRefresher{}, "every now and then", logger)
	assert.Error(t, bad.Start())
}

func TestJobManager_StartAllRollsBack(t *testing.T) {
	first := &fakeJob{}
	second := &fakeJob{startErr: errors.New("bad schedule")}

	jm := jobs.NewJobManager(first, second)
	err := jm.StartAll()

	require.Error(t, err)
	assert.True(t, first.started)
	assert.True(t, first.stopped)
	assert.False(t, second.stopped)
}

func TestJobManager_StopAll(t *testing.T) {
	a, b := &fakeJob{}, &fakeJob{}
	jm := jobs.NewJobManager(a, b)

	require.NoError(t, jm.StartAll())
	jm.StopAll()

	assert.True(t, a.stopped)
	assert.True(t, b.stopped)
}
