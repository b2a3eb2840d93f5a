package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"price-sync-service/models"
	"price-sync-service/progress"
	"price-sync-service/repository"
)

// DefaultSyncTimeout bounds a whole run, polling included.
const DefaultSyncTimeout = 30 * time.Minute

// ErrSyncInProgress is returned by Trigger while another run is active.
var ErrSyncInProgress = errors.New("a sync run is already in progress")

// Runner launches sync runs off the request path, one at a time. Crashes
// inside a run are reported as a single progress event, never to the
// triggering request, which has already returned by then.
type Runner struct {
	baseCtx context.Context
	engine  SyncService
	hub     *progress.Hub
	runs    repository.SyncRunRepository
	timeout time.Duration
	logger  *zap.Logger

	active atomic.Bool
}

// NewRunner creates a Runner. baseCtx is the process lifetime context:
// shutting the process down cancels any in-flight run. runs may be nil when
// no record store is configured.
func NewRunner(
	baseCtx context.Context,
	engine SyncService,
	hub *progress.Hub,
	runs repository.SyncRunRepository,
	timeout time.Duration,
	logger *zap.Logger,
) *Runner {
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	return &Runner{
		baseCtx: baseCtx,
		engine:  engine,
		hub:     hub,
		runs:    runs,
		timeout: timeout,
		logger:  logger,
	}
}

// Trigger starts a run in the background and returns its ID immediately.
// While a run is active, further triggers fail with ErrSyncInProgress.
func (r *Runner) Trigger() (string, error) {
	if !r.active.CompareAndSwap(false, true) {
		return "", ErrSyncInProgress
	}

	runID := uuid.New().String()
	startedAt := time.Now().UTC()
	r.saveRun(&models.SyncRun{
		ID:        runID,
		Status:    models.SyncRunStatusRunning,
		StartedAt: startedAt,
	})
	r.logger.Info("sync run triggered", zap.String("run_id", runID))

	go r.execute(runID, startedAt)
	return runID, nil
}

// Active reports whether a run is currently executing.
func (r *Runner) Active() bool {
	return r.active.Load()
}

func (r *Runner) execute(runID string, startedAt time.Time) {
	defer r.active.Store(false)

	ctx, cancel := context.WithTimeout(r.baseCtx, r.timeout)
	defer cancel()

	run := &models.SyncRun{ID: runID, StartedAt: startedAt}
	outcome, err := r.runSafely(ctx)
	run.FinishedAt = time.Now().UTC()

	if err != nil {
		r.hub.Publishf("Sync run crashed: %v", err)
		r.logger.Error("sync run crashed", zap.String("run_id", runID), zap.Error(err))
		run.Status = models.SyncRunStatusFailed
		run.Error = err.Error()
		r.saveRun(run)
		return
	}

	run.Status = outcome.Status
	run.VariantCount = outcome.VariantCount
	run.ObjectCount = outcome.Bulk.ObjectCount
	run.BulkOperationID = outcome.Bulk.ID
	if outcome.Status == models.SyncRunStatusFailed && outcome.Bulk.ErrorCode != "" {
		run.Error = outcome.Bulk.ErrorCode
	}
	r.saveRun(run)
	r.logger.Info("sync run finished",
		zap.String("run_id", runID),
		zap.String("status", run.Status),
		zap.Int("variants", run.VariantCount),
		zap.Int64("objects", run.ObjectCount),
		zap.Duration("took", run.FinishedAt.Sub(run.StartedAt)),
	)
}

// runSafely converts a panic inside the engine into an ordinary error so the
// caller reports it exactly like any other crash.
func (r *Runner) runSafely(ctx context.Context) (outcome *models.SyncOutcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.engine.Run(ctx)
}

// saveRun stores the run record best effort: the record store being down
// never affects the run itself.
func (r *Runner) saveRun(run *models.SyncRun) {
	if r.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.runs.Save(ctx, run); err != nil {
		r.logger.Warn("failed to store sync run record",
			zap.String("run_id", run.ID), zap.Error(err))
	}
}
