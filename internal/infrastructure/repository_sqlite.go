package infrastructure

import (
	"errors"
	"fmt"

	"github.com/locu5t/civicomfy-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteArchiveRepository implements ArchiveRepository using SQLite
type SQLiteArchiveRepository struct {
	db *gorm.DB
}

// NewSQLiteArchiveRepository opens (and migrates) the archive database
func NewSQLiteArchiveRepository(dbPath string) (*SQLiteArchiveRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.ArchiveRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteArchiveRepository{db: db}, nil
}

// Save inserts a record, replacing any previous record with the same ID
func (r *SQLiteArchiveRepository) Save(record *domain.ArchiveRecord) error {
	return r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error
}

// FindByID finds a record by download ID
func (r *SQLiteArchiveRepository) FindByID(id string) (*domain.ArchiveRecord, error) {
	var record domain.ArchiveRecord
	err := r.db.First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDownloadNotFound, id)
		}
		return nil, err
	}
	return &record, nil
}

// FindRecent returns the newest records first
func (r *SQLiteArchiveRepository) FindRecent(limit int) ([]*domain.ArchiveRecord, error) {
	var records []*domain.ArchiveRecord
	query := r.db.Order("ended_at DESC, created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// FindByStatus finds records by status
func (r *SQLiteArchiveRepository) FindByStatus(status domain.DownloadStatus) ([]*domain.ArchiveRecord, error) {
	var records []*domain.ArchiveRecord
	err := r.db.Where("status = ?", status).
		Order("ended_at DESC").
		Find(&records).Error
	return records, err
}

// FindByURL returns the newest record for url with one of the given statuses
func (r *SQLiteArchiveRepository) FindByURL(url string, statuses []domain.DownloadStatus) (*domain.ArchiveRecord, error) {
	var record domain.ArchiveRecord
	query := r.db.Where("url = ?", url)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Order("ended_at DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetStats returns archive statistics
func (r *SQLiteArchiveRepository) GetStats() (*domain.ArchiveStats, error) {
	stats := &domain.ArchiveStats{}

	if err := r.db.Model(&domain.ArchiveRecord{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.DownloadStatus
		Count  int64
	}{}

	if err := r.db.Model(&domain.ArchiveRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.StatusCompleted:
			stats.Completed = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		case domain.StatusCancelled:
			stats.Cancelled = sc.Count
		}
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteArchiveRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ domain.ArchiveRepository = (*SQLiteArchiveRepository)(nil)
