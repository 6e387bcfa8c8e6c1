package domain

import "errors"

var (
	ErrInvalidRequest    = errors.New("invalid download request")
	ErrInvalidSize       = errors.New("invalid download size")
	ErrNoValidSegments   = errors.New("no valid segments for download size")
	ErrRangeNotSupported = errors.New("range requests are not supported")
	ErrSizeMismatch      = errors.New("size mismatch")
	ErrRangeMismatch     = errors.New("content range does not match request")
	ErrCancelled         = errors.New("download cancelled")
	ErrQueueRunning      = errors.New("queue manager already running")
	ErrQueueNotRunning   = errors.New("queue manager not running")
	ErrDownloadNotFound  = errors.New("download not found")
)
