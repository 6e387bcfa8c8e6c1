package app

import (
	"context"
	"fmt"
	"time"

	"github.com/locu5t/civicomfy-go/internal/domain"
	"go.uber.org/zap"
)

// TaskTracker receives the lifecycle of one admitted task
type TaskTracker interface {
	AttachRun(id string, run domain.DownloadRun) bool
	UpdateTask(id string, u TaskUpdate)
	FinishTask(id string, status domain.DownloadStatus, msg string)
}

// DownloadManager drives a single admitted task through the download engine
type DownloadManager struct {
	downloader domain.Downloader
	logger     *zap.Logger
}

// NewDownloadManager creates a new download manager
func NewDownloadManager(downloader domain.Downloader, logger *zap.Logger) *DownloadManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadManager{
		downloader: downloader,
		logger:     logger,
	}
}

// Process runs the download for task and reports every state change to
// tracker. It never panics; an unexpected panic marks the task failed.
func (dm *DownloadManager) Process(ctx context.Context, task domain.Download, tracker TaskTracker) {
	defer func() {
		if r := recover(); r != nil {
			dm.logger.Error("Download panicked",
				zap.String("id", task.ID),
				zap.Any("panic", r))
			tracker.FinishTask(task.ID, domain.StatusFailed, fmt.Sprintf("Unexpected error: %v", r))
		}
	}()

	dm.logger.Info("Processing download",
		zap.String("id", task.ID),
		zap.String("url", task.URL),
		zap.String("output", task.OutputPath),
		zap.Int("connections", task.Connections))

	run := dm.downloader.NewRun(ctx, &task)
	if !tracker.AttachRun(task.ID, run) {
		// cancelled between admission and attachment
		run.Cancel(cancelledByUser)
		dm.logger.Info("Download cancelled before start", zap.String("id", task.ID))
		tracker.FinishTask(task.ID, domain.StatusCancelled, cancelledByUser)
		return
	}

	downloading := domain.StatusDownloading
	tracker.UpdateTask(task.ID, TaskUpdate{Status: &downloading})

	started := time.Now()
	ok := run.Execute(func(p domain.ProgressUpdate) {
		progress, speed := p.Progress, p.Speed
		tracker.UpdateTask(task.ID, TaskUpdate{Progress: &progress, Speed: &speed})
	})

	switch {
	case ok:
		tracker.FinishTask(task.ID, domain.StatusCompleted, "")
		dm.logger.Info("Download completed",
			zap.String("id", task.ID),
			zap.String("output", task.OutputPath),
			zap.Duration("elapsed", time.Since(started)))
	case run.Cancelled():
		tracker.FinishTask(task.ID, domain.StatusCancelled, run.Err())
		dm.logger.Info("Download cancelled",
			zap.String("id", task.ID),
			zap.String("reason", run.Err()))
	default:
		msg := run.Err()
		if msg == "" {
			msg = "Download failed"
		}
		tracker.FinishTask(task.ID, domain.StatusFailed, msg)
		dm.logger.Error("Download failed",
			zap.String("id", task.ID),
			zap.String("url", task.URL),
			zap.String("error", msg))
	}
}
