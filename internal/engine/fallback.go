package engine

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/locu5t/civicomfy-go/internal/domain"
	"go.uber.org/zap"
)

// downloadSingle streams the whole body with one GET straight into the
// output file. Used when ranges are unsupported, the size is unknown, only
// one connection was requested, or probing failed.
func (e *Engine) downloadSingle(run *Run, sink domain.ProgressSink, logger *zap.Logger) bool {
	reqCtx, cancel := context.WithCancel(run.ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, run.CurrentURL(), nil)
	if err != nil {
		run.Fail(fmt.Errorf("failed to create request: %w", err))
		return false
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if run.signalled() {
			return false
		}
		run.Fail(fmt.Errorf("download request failed: %w", err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		run.Fail(fmt.Errorf("download returned status %d", resp.StatusCode))
		return false
	}

	total := run.TotalSize()
	if resp.ContentLength > 0 {
		total = resp.ContentLength
	}

	out, err := os.OpenFile(run.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		run.Fail(fmt.Errorf("failed to create output file: %w", err))
		return false
	}
	run.markOutputTouched()

	progress := newProgressTracker(run, total, e.opts.ProgressInterval, sink)
	written, err := e.stream(reqCtx, run.ctx, cancel, resp.Body, out, progress)
	progress.flush()
	closeErr := out.Close()

	if run.signalled() {
		return false
	}
	if err != nil {
		run.Fail(err)
		return false
	}
	if closeErr != nil {
		run.Fail(fmt.Errorf("failed to close output file: %w", closeErr))
		return false
	}
	if total > 0 && written != total {
		run.Fail(fmt.Errorf("%w: expected %d bytes, got %d", domain.ErrSizeMismatch, total, written))
		return false
	}

	logger.Debug("Single stream finished", zap.Int64("bytes", written))
	return true
}
