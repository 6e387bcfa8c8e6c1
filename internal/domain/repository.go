package domain

import "time"

// ArchiveRecord is a finished download as stored in the archive
type ArchiveRecord struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	URL          string         `json:"url" gorm:"not null"`
	OutputPath   string         `json:"output_path"`
	Filename     string         `json:"filename" gorm:"index"`
	Name         string         `json:"name,omitempty"`
	VersionName  string         `json:"version_name,omitempty"`
	SizeBytes    int64          `json:"size_bytes"`
	Status       DownloadStatus `json:"status" gorm:"not null;index"`
	ErrorMessage string         `json:"error_message,omitempty"`
	AddedAt      *time.Time     `json:"added_at,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	EndedAt      *time.Time     `json:"ended_at,omitempty" gorm:"index"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// NewArchiveRecord converts a terminal download into an archive record
func NewArchiveRecord(d *Download) *ArchiveRecord {
	return &ArchiveRecord{
		ID:           d.ID,
		URL:          d.URL,
		OutputPath:   d.OutputPath,
		Filename:     d.Filename,
		Name:         d.Metadata.Name,
		VersionName:  d.Metadata.VersionName,
		SizeBytes:    d.Metadata.SizeBytes,
		Status:       d.Status,
		ErrorMessage: d.Error(),
		AddedAt:      copyTime(d.AddedAt),
		StartedAt:    copyTime(d.StartedAt),
		EndedAt:      copyTime(d.EndedAt),
	}
}

// ArchiveRepository defines persistence for finished downloads.
// It is write-mostly; the scheduler never reloads from it.
type ArchiveRepository interface {
	// Save inserts or replaces a record
	Save(record *ArchiveRecord) error

	// FindByID finds a record by download ID
	FindByID(id string) (*ArchiveRecord, error)

	// FindRecent returns the newest records first, at most limit (0 = all)
	FindRecent(limit int) ([]*ArchiveRecord, error)

	// FindByStatus returns records with the given status, newest first
	FindByStatus(status DownloadStatus) ([]*ArchiveRecord, error)

	// FindByURL returns the newest record for url whose status is one of
	// statuses, or nil when there is none
	FindByURL(url string, statuses []DownloadStatus) (*ArchiveRecord, error)

	// GetStats returns counts by terminal status
	GetStats() (*ArchiveStats, error)
}

// ArchiveStats represents archive statistics
type ArchiveStats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}
