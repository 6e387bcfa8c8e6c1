package infrastructure

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locu5t/civicomfy-go/internal/domain"
)

func setupTestRepo(t *testing.T) *SQLiteArchiveRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "archive.db")
	repo, err := NewSQLiteArchiveRepository(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func finishedDownload(t *testing.T, url string, status domain.DownloadStatus, endedAgo time.Duration) *domain.Download {
	t.Helper()
	d := domain.NewDownload(domain.DownloadRequest{
		URL:        url,
		OutputPath: "/models/checkpoints/model.safetensors",
		Metadata:   domain.DownloadMetadata{Name: "Model", VersionName: "v1", SizeBytes: 1000},
	})
	d.MarkStarting()
	switch status {
	case domain.StatusCompleted:
		d.MarkCompleted()
	case domain.StatusFailed:
		d.MarkFailed("segment 1 failed")
	case domain.StatusCancelled:
		d.MarkCancelled("Cancelled by user")
	}
	ended := time.Now().Add(-endedAgo)
	d.EndedAt = &ended
	return d
}

func TestArchive_SaveAndFindByID(t *testing.T) {
	repo := setupTestRepo(t)

	d := finishedDownload(t, "https://example.com/a", domain.StatusCompleted, 0)
	require.NoError(t, repo.Save(domain.NewArchiveRecord(d)))

	found, err := repo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.URL, found.URL)
	assert.Equal(t, "model.safetensors", found.Filename)
	assert.Equal(t, "Model", found.Name)
	assert.Equal(t, int64(1000), found.SizeBytes)
	assert.Equal(t, domain.StatusCompleted, found.Status)
	assert.Empty(t, found.ErrorMessage)
}

func TestArchive_FindByIDMissing(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.FindByID("missing")
	assert.ErrorIs(t, err, domain.ErrDownloadNotFound)
}

func TestArchive_SaveReplacesExisting(t *testing.T) {
	repo := setupTestRepo(t)

	d := finishedDownload(t, "https://example.com/a", domain.StatusFailed, 0)
	require.NoError(t, repo.Save(domain.NewArchiveRecord(d)))

	d.Status = domain.StatusCancelled
	require.NoError(t, repo.Save(domain.NewArchiveRecord(d)))

	found, err := repo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, found.Status)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestArchive_FindRecentNewestFirst(t *testing.T) {
	repo := setupTestRepo(t)

	old := finishedDownload(t, "https://example.com/old", domain.StatusCompleted, time.Hour)
	mid := finishedDownload(t, "https://example.com/mid", domain.StatusFailed, time.Minute)
	recent := finishedDownload(t, "https://example.com/new", domain.StatusCancelled, 0)
	for _, d := range []*domain.Download{mid, old, recent} {
		require.NoError(t, repo.Save(domain.NewArchiveRecord(d)))
	}

	records, err := repo.FindRecent(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, recent.ID, records[0].ID)
	assert.Equal(t, mid.ID, records[1].ID)

	all, err := repo.FindRecent(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestArchive_FindByStatusAndStats(t *testing.T) {
	repo := setupTestRepo(t)

	for _, s := range []domain.DownloadStatus{domain.StatusCompleted, domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled} {
		require.NoError(t, repo.Save(domain.NewArchiveRecord(finishedDownload(t, "https://example.com/x", s, 0))))
	}

	completed, err := repo.FindByStatus(domain.StatusCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Cancelled)
}

func TestArchive_FindByURL(t *testing.T) {
	repo := setupTestRepo(t)

	failed := finishedDownload(t, "https://example.com/a", domain.StatusFailed, time.Minute)
	done := finishedDownload(t, "https://example.com/a", domain.StatusCompleted, 0)
	require.NoError(t, repo.Save(domain.NewArchiveRecord(failed)))
	require.NoError(t, repo.Save(domain.NewArchiveRecord(done)))

	found, err := repo.FindByURL("https://example.com/a", []domain.DownloadStatus{domain.StatusFailed})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, failed.ID, found.ID)

	newest, err := repo.FindByURL("https://example.com/a", nil)
	require.NoError(t, err)
	require.NotNil(t, newest)
	assert.Equal(t, done.ID, newest.ID)

	none, err := repo.FindByURL("https://example.com/other", nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}
