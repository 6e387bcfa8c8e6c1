package domain

import "context"

// ProgressUpdate is one throttled progress notification from a running download
type ProgressUpdate struct {
	Downloaded int64
	Total      int64
	Progress   float64
	Speed      float64
}

// ProgressSink receives progress notifications. It must not block.
type ProgressSink func(ProgressUpdate)

// Downloader creates download runs for tasks
type Downloader interface {
	// NewRun prepares a run for the download; no network I/O happens yet
	NewRun(ctx context.Context, download *Download) DownloadRun
}

// DownloadRun is the handle to one in-flight download
type DownloadRun interface {
	// Execute performs the transfer and reports whether the artifact was written
	Execute(sink ProgressSink) bool

	// Cancel raises the cancellation signal; repeated calls are no-ops
	Cancel(reason string)

	// Cancelled reports whether the cancellation signal was raised
	Cancelled() bool

	// Err returns the first recorded terminal error message, or ""
	Err() string
}
