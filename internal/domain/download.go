package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// DownloadStatus represents the current status of a download
type DownloadStatus string

const (
	StatusQueued      DownloadStatus = "queued"
	StatusStarting    DownloadStatus = "starting"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
	StatusCancelled   DownloadStatus = "cancelled"
)

// MaxErrorLength bounds the stored error message, in runes.
const MaxErrorLength = 500

// idPrefixLength is how many filename characters go into a task id.
const idPrefixLength = 10

var idSequence atomic.Uint64

// DownloadMetadata is descriptive data carried alongside a download.
// It is never interpreted by the scheduler or the engine.
type DownloadMetadata struct {
	Name        string `json:"name,omitempty"`
	VersionName string `json:"version_name,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// DownloadRequest is a fully resolved download specification
type DownloadRequest struct {
	URL         string           `json:"url"`
	OutputPath  string           `json:"output_path"`
	Connections int              `json:"connections"`
	Metadata    DownloadMetadata `json:"metadata"`
}

// Validate checks the structural shape of the request only
func (r DownloadRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.OutputPath) == "" {
		return fmt.Errorf("%w: output path is required", ErrInvalidRequest)
	}
	return nil
}

// Download represents a download task
type Download struct {
	ID           string           `json:"id"`
	URL          string           `json:"url"`
	OutputPath   string           `json:"output_path"`
	Filename     string           `json:"filename"`
	Connections  int              `json:"connections"`
	Metadata     DownloadMetadata `json:"metadata"`
	Status       DownloadStatus   `json:"status"`
	Progress     float64          `json:"progress"`
	Speed        float64          `json:"speed"`
	ErrorMessage *string          `json:"error,omitempty"`
	AddedAt      *time.Time       `json:"added_at,omitempty"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	EndedAt      *time.Time       `json:"ended_at,omitempty"`
}

// NewDownload creates a new queued download task from a request
func NewDownload(req DownloadRequest) *Download {
	connections := req.Connections
	if connections < 1 {
		connections = 1
	}
	filename := filepath.Base(req.OutputPath)
	now := time.Now()

	return &Download{
		ID:          NewDownloadID(filename),
		URL:         req.URL,
		OutputPath:  req.OutputPath,
		Filename:    filename,
		Connections: connections,
		Metadata:    req.Metadata,
		Status:      StatusQueued,
		AddedAt:     &now,
	}
}

// NewDownloadID builds an id from the current time, a process-wide sequence
// number and a prefix of the filename. Two calls never return the same id.
func NewDownloadID(filename string) string {
	seq := idSequence.Add(1)
	prefix := sanitizeIDPart(filename)
	if utf8.RuneCountInString(prefix) > idPrefixLength {
		prefix = string([]rune(prefix)[:idPrefixLength])
	}
	if prefix == "" {
		prefix = "download"
	}
	return fmt.Sprintf("%d-%d-%s", time.Now().UnixNano(), seq, prefix)
}

func sanitizeIDPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

// MarkStarting marks the download as admitted into the active set
func (d *Download) MarkStarting() {
	d.Status = StatusStarting
	now := time.Now()
	d.StartedAt = &now
}

// MarkDownloading marks the download as transferring
func (d *Download) MarkDownloading() {
	d.Status = StatusDownloading
}

// MarkCompleted marks the download as completed
func (d *Download) MarkCompleted() {
	d.Status = StatusCompleted
	d.Progress = 100
	d.Speed = 0
	d.ErrorMessage = nil
	d.markEnded()
}

// MarkFailed marks the download as failed
func (d *Download) MarkFailed(msg string) {
	d.Status = StatusFailed
	d.Speed = 0
	d.SetError(msg)
	d.markEnded()
}

// MarkCancelled marks the download as cancelled
func (d *Download) MarkCancelled(msg string) {
	d.Status = StatusCancelled
	d.Speed = 0
	if msg != "" {
		d.SetError(msg)
	}
	d.markEnded()
}

// SetError stores msg truncated to MaxErrorLength
func (d *Download) SetError(msg string) {
	msg = TruncateError(msg)
	d.ErrorMessage = &msg
}

// SetProgress stores the percentage clamped to [0,100]
func (d *Download) SetProgress(p float64) {
	d.Progress = ClampProgress(p)
}

// SetSpeed stores the speed clamped to [0,+inf)
func (d *Download) SetSpeed(s float64) {
	if s < 0 || s != s {
		s = 0
	}
	d.Speed = s
}

func (d *Download) markEnded() {
	if d.EndedAt == nil {
		now := time.Now()
		d.EndedAt = &now
	}
}

// IsTerminal checks if the download is in a terminal state
func (d *Download) IsTerminal() bool {
	return d.Status.IsTerminal()
}

// IsPending checks if the download is waiting in the queue
func (d *Download) IsPending() bool {
	return d.Status == StatusQueued
}

// IsActive checks if the download has been admitted but not finished
func (d *Download) IsActive() bool {
	return d.Status == StatusStarting || d.Status == StatusDownloading
}

// Error returns the stored error message or ""
func (d *Download) Error() string {
	if d.ErrorMessage == nil {
		return ""
	}
	return *d.ErrorMessage
}

// Clone returns a copy that shares no pointers with d
func (d *Download) Clone() Download {
	c := *d
	c.ErrorMessage = copyString(d.ErrorMessage)
	c.AddedAt = copyTime(d.AddedAt)
	c.StartedAt = copyTime(d.StartedAt)
	c.EndedAt = copyTime(d.EndedAt)
	return c
}

// IsTerminal reports whether no further transition can happen from s
func (s DownloadStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ValidateStatus checks if a status is known
func ValidateStatus(s DownloadStatus) bool {
	switch s {
	case StatusQueued, StatusStarting, StatusDownloading, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ClampProgress clamps a percentage into [0,100]
func ClampProgress(p float64) float64 {
	if p != p || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// TruncateError bounds msg to MaxErrorLength runes
func TruncateError(msg string) string {
	if utf8.RuneCountInString(msg) <= MaxErrorLength {
		return msg
	}
	return string([]rune(msg)[:MaxErrorLength-3]) + "..."
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StatusSnapshot is a point-in-time copy of the scheduler collections
type StatusSnapshot struct {
	Queue   []Download `json:"queue"`
	Active  []Download `json:"active"`
	History []Download `json:"history"`
}
