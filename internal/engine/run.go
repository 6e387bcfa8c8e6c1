package engine

import (
	"context"
	"sync"

	"github.com/locu5t/civicomfy-go/internal/domain"
)

const cancelledMessage = "Download cancelled"

// Run is the handle to a single download. Cancel may be called from any
// goroutine, before or during Execute.
type Run struct {
	ID          string
	OutputPath  string
	Connections int

	engine *Engine
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu             sync.Mutex
	url            string
	errMsg         string
	cancelled      bool
	totalSize      int64
	rangeSupported bool
	tempDir        string
	segmentFiles   []string
	touched        bool
	downloaded     int64
}

var _ domain.DownloadRun = (*Run)(nil)

// Execute runs the download, see Engine.Execute
func (r *Run) Execute(sink domain.ProgressSink) bool {
	return r.engine.Execute(r, sink)
}

// Cancel raises the cancellation signal. The reason is kept only if no
// error was recorded before.
func (r *Run) Cancel(reason string) {
	if reason == "" {
		reason = cancelledMessage
	}
	r.mu.Lock()
	if r.errMsg == "" {
		r.errMsg = reason
		r.cancelled = true
	}
	r.mu.Unlock()
	r.once.Do(r.cancel)
}

// Fail records err as the terminal error and stops all workers
func (r *Run) Fail(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	if r.errMsg == "" {
		r.errMsg = err.Error()
	}
	r.mu.Unlock()
	r.once.Do(r.cancel)
}

// Cancelled reports whether the run was stopped by cancellation rather than
// by a failure
func (r *Run) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// Err returns the first recorded terminal error, or ""
func (r *Run) Err() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errMsg
}

// Context returns the run context; it is done once the run is signalled
func (r *Run) Context() context.Context {
	return r.ctx
}

// CurrentURL returns the URL in use, pinned to the redirect target after probing
func (r *Run) CurrentURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url
}

// TotalSize returns the probed size, or 0 when unknown
func (r *Run) TotalSize() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalSize
}

// RangeSupported reports whether the probe found range support
func (r *Run) RangeSupported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rangeSupported
}

// TempDir returns the per-run temporary directory, or "" if none was created
func (r *Run) TempDir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tempDir
}

// Downloaded returns the bytes received so far
func (r *Run) Downloaded() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.downloaded
}

func (r *Run) signalled() bool {
	return r.ctx.Err() != nil
}

func (r *Run) setURL(u string) {
	r.mu.Lock()
	r.url = u
	r.mu.Unlock()
}

func (r *Run) setProbe(size int64, ranges bool) {
	r.mu.Lock()
	r.totalSize = size
	r.rangeSupported = ranges
	r.mu.Unlock()
}

func (r *Run) setTempDir(dir string, files []string) {
	r.mu.Lock()
	r.tempDir = dir
	r.segmentFiles = files
	r.mu.Unlock()
}

func (r *Run) setDownloaded(n int64) {
	r.mu.Lock()
	r.downloaded = n
	r.mu.Unlock()
}

func (r *Run) markOutputTouched() {
	r.mu.Lock()
	r.touched = true
	r.mu.Unlock()
}

func (r *Run) outputTouched() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touched
}

// finish releases the run context. A parent context that ended without an
// explicit Cancel or Fail counts as cancellation.
func (r *Run) finish() {
	r.mu.Lock()
	if r.ctx.Err() != nil && r.errMsg == "" {
		r.errMsg = cancelledMessage
		r.cancelled = true
	}
	r.mu.Unlock()
	r.once.Do(r.cancel)
}
