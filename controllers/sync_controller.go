package controllers

import (
	"errors"
	"io"
	"net/http"

	"price-sync-service/progress"
	"price-sync-service/repository"
	"price-sync-service/services"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SyncRunnerAPI is the runner surface the HTTP layer needs.
type SyncRunnerAPI interface {
	Trigger() (string, error)
}

// SyncController handles sync triggering, the live progress stream and run
// record lookups.
type SyncController struct {
	runner SyncRunnerAPI
	hub    *progress.Hub
	runs   repository.SyncRunRepository
	logger *zap.Logger
}

// NewSyncController creates a new SyncController. runs may be nil when no
// run-record store is configured; the history endpoints then answer 503.
func NewSyncController(runner SyncRunnerAPI, hub *progress.Hub, runs repository.SyncRunRepository, logger *zap.Logger) *SyncController {
	return &SyncController{
		runner: runner,
		hub:    hub,
		runs:   runs,
		logger: logger,
	}
}

// TriggerSync handles POST /sync. The run executes in the background; the
// response only acknowledges the trigger and progress is observable on the
// stream.
func (sc *SyncController) TriggerSync(ctx *gin.Context) {
	runID, err := sc.runner.Trigger()
	if err != nil {
		if errors.Is(err, services.ErrSyncInProgress) {
			ctx.JSON(http.StatusConflict, gin.H{"error": "A sync run is already in progress"})
			return
		}
		sc.logger.Error("Failed to trigger sync run", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to trigger sync run"})
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

// StreamSyncLog handles GET /sync/stream. Each subscriber first receives the
// buffered backlog, then live lines as they are published. The stream never
// terminates on its own; it ends when the client disconnects.
func (sc *SyncController) StreamSyncLog(ctx *gin.Context) {
	sub := sc.hub.Subscribe()
	defer sub.Close()

	ctx.Writer.Header().Set("Content-Type", sse.ContentType)
	ctx.Writer.Header().Set("Cache-Control", "no-cache")
	ctx.Writer.Header().Set("Connection", "keep-alive")

	clientCtx := ctx.Request.Context()
	ctx.Stream(func(w io.Writer) bool {
		line, err := sub.Next(clientCtx)
		if err != nil {
			return false
		}
		if err := sse.Encode(w, sse.Event{Data: line}); err != nil {
			return false
		}
		return true
	})
}

// GetLatestRun handles GET /sync/runs/latest
func (sc *SyncController) GetLatestRun(ctx *gin.Context) {
	if sc.runs == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run records are not configured"})
		return
	}

	run, err := sc.runs.Latest(ctx.Request.Context())
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "No sync runs recorded yet"})
			return
		}
		sc.logger.Error("Failed to load latest sync run", zap.Error(err))
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run records unavailable"})
		return
	}

	ctx.JSON(http.StatusOK, run)
}

// GetRun handles GET /sync/runs/:id
func (sc *SyncController) GetRun(ctx *gin.Context) {
	if sc.runs == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run records are not configured"})
		return
	}

	id := ctx.Param("id")
	if id == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Run ID is required"})
		return
	}

	run, err := sc.runs.Get(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Sync run not found"})
			return
		}
		sc.logger.Error("Failed to load sync run", zap.String("run_id", id), zap.Error(err))
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run records unavailable"})
		return
	}

	ctx.JSON(http.StatusOK, run)
}
