package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/locu5t/civicomfy-go/internal/domain"
	"go.uber.org/zap"
)

// Doer performs a single HTTP request
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options tunes the engine
type Options struct {
	TempDirName      string
	SegmentRetries   int
	RetryBackoff     time.Duration
	RetryMaxBackoff  time.Duration
	ProgressInterval time.Duration
	CopyBufferSize   int
	ReadBufferSize   int
	TransferTimeout  time.Duration
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		TempDirName:      ".civicomfy-temp",
		SegmentRetries:   3,
		RetryBackoff:     time.Second,
		RetryMaxBackoff:  10 * time.Second,
		ProgressInterval: 500 * time.Millisecond,
		CopyBufferSize:   1024 * 1024,
		ReadBufferSize:   256 * 1024,
		TransferTimeout:  60 * time.Second,
	}
}

// OptionsFromConfig maps configuration onto engine options
func OptionsFromConfig(dl domain.DownloadConfig, hc domain.HTTPConfig) Options {
	opts := DefaultOptions()
	if dl.TempDirName != "" {
		opts.TempDirName = dl.TempDirName
	}
	if dl.SegmentRetries > 0 {
		opts.SegmentRetries = dl.SegmentRetries
	}
	if dl.RetryBackoff > 0 {
		opts.RetryBackoff = dl.RetryBackoff
	}
	if dl.RetryMaxBackoff > 0 {
		opts.RetryMaxBackoff = dl.RetryMaxBackoff
	}
	if dl.ProgressInterval > 0 {
		opts.ProgressInterval = dl.ProgressInterval
	}
	if dl.CopyBufferSize > 0 {
		opts.CopyBufferSize = dl.CopyBufferSize
	}
	if hc.TransferTimeout > 0 {
		opts.TransferTimeout = hc.TransferTimeout
	}
	return opts
}

// Engine downloads one URL to one file using parallel range requests,
// falling back to a single stream when the server cannot serve ranges.
type Engine struct {
	client Doer
	prober *retryablehttp.Client
	opts   Options
	logger *zap.Logger
}

// New creates an engine. client carries transfers, prober carries HEAD and
// range probes.
func New(client Doer, prober *retryablehttp.Client, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SegmentRetries < 1 {
		opts.SegmentRetries = 1
	}
	if opts.CopyBufferSize <= 0 {
		opts.CopyBufferSize = DefaultOptions().CopyBufferSize
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = DefaultOptions().ReadBufferSize
	}
	if opts.TempDirName == "" {
		opts.TempDirName = DefaultOptions().TempDirName
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultOptions().ProgressInterval
	}
	return &Engine{
		client: client,
		prober: prober,
		opts:   opts,
		logger: logger,
	}
}

// NewRun implements domain.Downloader
func (e *Engine) NewRun(ctx context.Context, download *domain.Download) domain.DownloadRun {
	return e.Prepare(ctx, download.ID, download.URL, download.OutputPath, download.Connections)
}

// Prepare creates a run without touching the network or the filesystem.
// An empty id is replaced with a random one; it names the temporary directory.
func (e *Engine) Prepare(ctx context.Context, id, url, outputPath string, connections int) *Run {
	if connections < 1 {
		connections = 1
	}
	if id == "" {
		id = uuid.NewString()
	}
	runCtx, cancel := context.WithCancel(ctx)
	return &Run{
		ID:          id,
		url:         url,
		OutputPath:  outputPath,
		Connections: connections,
		engine:      e,
		ctx:         runCtx,
		cancel:      cancel,
	}
}

// Execute runs the download to completion. It returns true only when the
// artifact was written and the run was neither cancelled nor failed. The
// temporary directory is always removed, and the output file is removed
// whenever the result is false.
func (e *Engine) Execute(run *Run, sink domain.ProgressSink) (ok bool) {
	logger := e.logger.With(
		zap.String("id", run.ID),
		zap.String("output", run.OutputPath))

	defer func() {
		if r := recover(); r != nil {
			run.Fail(fmt.Errorf("unexpected engine panic: %v", r))
			ok = false
		}
		e.cleanup(run, ok, logger)
		run.finish()
	}()

	if run.signalled() {
		return false
	}

	if err := os.MkdirAll(filepath.Dir(run.OutputPath), 0755); err != nil {
		run.Fail(fmt.Errorf("failed to create output directory: %w", err))
		return false
	}

	info, err := e.probe(run.ctx, run.CurrentURL())
	if err != nil {
		if run.signalled() {
			return false
		}
		logger.Warn("Probe failed, falling back to single stream",
			zap.String("url", run.CurrentURL()),
			zap.Error(err))
		return e.downloadSingle(run, sink, logger) && !run.signalled()
	}

	if info.FinalURL != "" && info.FinalURL != run.CurrentURL() {
		logger.Debug("Resolved redirect", zap.String("from", run.CurrentURL()), zap.String("to", info.FinalURL))
		run.setURL(info.FinalURL)
	}
	run.setProbe(info.Size, info.AcceptsRanges)

	if run.signalled() {
		return false
	}

	if info.Size <= 0 || !info.AcceptsRanges || run.Connections <= 1 {
		logger.Info("Using single stream",
			zap.Int64("size", info.Size),
			zap.Bool("ranges", info.AcceptsRanges),
			zap.Int("connections", run.Connections))
		ok = e.downloadSingle(run, sink, logger)
	} else {
		logger.Info("Using segmented download",
			zap.Int64("size", info.Size),
			zap.Int("connections", run.Connections))
		ok = e.downloadSegmented(run, sink, logger)
	}

	return ok && !run.signalled()
}

func (e *Engine) cleanup(run *Run, ok bool, logger *zap.Logger) {
	if dir := run.TempDir(); dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("Failed to remove temporary directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	if ok || !run.outputTouched() {
		return
	}
	if err := os.Remove(run.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to remove incomplete output", zap.Error(err))
	}
}

// tempDirFor names the run's private directory next to the output. It is the
// only path the run creates and removes besides the output itself.
func (e *Engine) tempDirFor(run *Run) string {
	return filepath.Join(filepath.Dir(run.OutputPath), e.opts.TempDirName+"-"+run.ID)
}
