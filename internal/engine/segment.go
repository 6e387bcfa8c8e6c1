package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go"
	"github.com/locu5t/civicomfy-go/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errTransferStalled = errors.New("transfer stalled")

// downloadSegmented fetches every segment in parallel into the run's
// temporary directory and then merges them into the output file.
func (e *Engine) downloadSegmented(run *Run, sink domain.ProgressSink, logger *zap.Logger) bool {
	total := run.TotalSize()
	segments, err := domain.ComputeSegments(total, run.Connections)
	if err != nil {
		run.Fail(err)
		return false
	}

	tempDir := e.tempDirFor(run)
	if err := os.Mkdir(tempDir, 0755); err != nil {
		run.Fail(fmt.Errorf("failed to create temporary directory: %w", err))
		return false
	}
	files := make([]string, len(segments))
	for i, seg := range segments {
		files[i] = filepath.Join(tempDir, fmt.Sprintf("%s.part%d", filepath.Base(run.OutputPath), seg.Index))
	}
	run.setTempDir(tempDir, files)

	progress := newProgressTracker(run, total, e.opts.ProgressInterval, sink)

	g, gctx := errgroup.WithContext(run.ctx)
	for i, seg := range segments {
		seg, path := seg, files[i]
		g.Go(func() error {
			return e.fetchSegment(gctx, run, seg, path, progress, logger)
		})
	}
	err = g.Wait()
	progress.flush()

	if run.signalled() {
		return false
	}
	if err != nil {
		run.Fail(err)
		return false
	}

	if got := progress.bytes(); got != total {
		logger.Warn("Downloaded size differs from expected",
			zap.Int64("expected", total),
			zap.Int64("downloaded", got))
	}

	if err := e.merge(run, files, total, logger); err != nil {
		run.Fail(err)
		return false
	}
	return true
}

// fetchSegment downloads one segment, retrying with exponential backoff.
// Bytes from a failed attempt are subtracted from progress before the next
// attempt truncates the part file.
func (e *Engine) fetchSegment(ctx context.Context, run *Run, seg domain.Segment, path string, progress *progressTracker, logger *zap.Logger) error {
	attempts := e.opts.SegmentRetries
	err := retry.Do(
		func() error {
			if ctx.Err() != nil {
				return retry.Unrecoverable(ctx.Err())
			}
			written, err := e.fetchSegmentOnce(ctx, run, seg, path, progress)
			if err != nil {
				progress.add(-written)
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.DelayType(e.backoff),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Segment attempt failed",
				zap.Int("segment", seg.Index),
				zap.Uint("attempt", n+1),
				zap.Int("max_attempts", attempts),
				zap.Error(err))
		}),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("segment %d (bytes %d-%d) failed after %d attempts: %w", seg.Index, seg.Start, seg.End, attempts, err)
}

// backoff returns min(base*2^n, max)
func (e *Engine) backoff(n uint, _ error, _ *retry.Config) time.Duration {
	delay := e.opts.RetryBackoff
	for i := uint(0); i < n; i++ {
		delay *= 2
		if e.opts.RetryMaxBackoff > 0 && delay >= e.opts.RetryMaxBackoff {
			return e.opts.RetryMaxBackoff
		}
	}
	if e.opts.RetryMaxBackoff > 0 && delay > e.opts.RetryMaxBackoff {
		return e.opts.RetryMaxBackoff
	}
	return delay
}

func (e *Engine) fetchSegmentOnce(ctx context.Context, run *Run, seg domain.Segment, path string, progress *progressTracker) (int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open part file: %w", err)
	}
	defer file.Close()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, run.CurrentURL(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Range", seg.RangeHeader())

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("range request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkSegmentResponse(resp, seg); err != nil {
		return 0, err
	}

	written, err := e.stream(reqCtx, ctx, cancel, resp.Body, file, progress)
	if err != nil {
		return written, err
	}
	if written != seg.Size() {
		return written, fmt.Errorf("%w: segment %d expected %d bytes, got %d", domain.ErrSizeMismatch, seg.Index, seg.Size(), written)
	}
	return written, nil
}

// checkSegmentResponse accepts a 206, or a 200 carrying a Content-Range,
// as long as any Content-Range names exactly the requested bytes.
func checkSegmentResponse(resp *http.Response, seg domain.Segment) error {
	header := resp.Header.Get("Content-Range")
	switch resp.StatusCode {
	case http.StatusPartialContent:
		if header == "" {
			return nil
		}
	case http.StatusOK:
		if header == "" {
			return fmt.Errorf("%w: server answered a range request with 200", domain.ErrRangeNotSupported)
		}
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	start, end, _, ok := parseContentRange(header)
	if !ok || start != seg.Start || end != seg.End {
		return fmt.Errorf("%w: segment %d requested bytes %d-%d, got Content-Range %q",
			domain.ErrRangeMismatch, seg.Index, seg.Start, seg.End, header)
	}
	return nil
}

// stream copies body into w, reporting each chunk to progress. The request
// is aborted when no bytes arrive for TransferTimeout or when the run
// context ends.
func (e *Engine) stream(reqCtx, runCtx context.Context, abort context.CancelFunc, body io.Reader, w io.Writer, progress *progressTracker) (int64, error) {
	var watchdog *time.Timer
	if e.opts.TransferTimeout > 0 {
		watchdog = time.AfterFunc(e.opts.TransferTimeout, abort)
		defer watchdog.Stop()
	}

	buf := make([]byte, e.opts.ReadBufferSize)
	var written int64
	for {
		if runCtx.Err() != nil {
			return written, runCtx.Err()
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if watchdog != nil {
				watchdog.Reset(e.opts.TransferTimeout)
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("failed to write data: %w", err)
			}
			written += int64(n)
			progress.add(int64(n))
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			if runCtx.Err() != nil {
				return written, runCtx.Err()
			}
			if reqCtx.Err() != nil {
				return written, fmt.Errorf("%w: no data for %s", errTransferStalled, e.opts.TransferTimeout)
			}
			return written, fmt.Errorf("failed to read body: %w", readErr)
		}
	}
}
