package domain

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest() DownloadRequest {
	return DownloadRequest{
		URL:         "https://example.com/models/model.safetensors",
		OutputPath:  "/models/checkpoints/model.safetensors",
		Connections: 4,
		Metadata:    DownloadMetadata{Name: "Model", VersionName: "v1", SizeBytes: 1024},
	}
}

func TestNewDownload(t *testing.T) {
	download := NewDownload(newTestRequest())

	assert.NotEmpty(t, download.ID)
	assert.Equal(t, "https://example.com/models/model.safetensors", download.URL)
	assert.Equal(t, "model.safetensors", download.Filename)
	assert.Equal(t, 4, download.Connections)
	assert.Equal(t, StatusQueued, download.Status)
	assert.Equal(t, "Model", download.Metadata.Name)
	assert.Zero(t, download.Progress)
	assert.Zero(t, download.Speed)
	assert.Nil(t, download.ErrorMessage)
	assert.NotNil(t, download.AddedAt)
	assert.Nil(t, download.StartedAt)
	assert.Nil(t, download.EndedAt)
}

func TestNewDownload_NormalisesConnections(t *testing.T) {
	req := newTestRequest()
	req.Connections = 0

	download := NewDownload(req)

	assert.Equal(t, 1, download.Connections)
}

func TestNewDownloadID_Unique(t *testing.T) {
	const n = 1000
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- NewDownloadID("model.safetensors")
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		assert.Contains(t, id, "model.safe")
	}
	assert.Len(t, seen, n)
}

func TestDownloadRequest_Validate(t *testing.T) {
	assert.NoError(t, newTestRequest().Validate())

	req := newTestRequest()
	req.URL = " "
	assert.ErrorIs(t, req.Validate(), ErrInvalidRequest)

	req = newTestRequest()
	req.OutputPath = ""
	assert.ErrorIs(t, req.Validate(), ErrInvalidRequest)
}

func TestDownload_Transitions(t *testing.T) {
	download := NewDownload(newTestRequest())

	download.MarkStarting()
	assert.Equal(t, StatusStarting, download.Status)
	assert.NotNil(t, download.StartedAt)
	assert.True(t, download.IsActive())

	download.MarkDownloading()
	assert.Equal(t, StatusDownloading, download.Status)
	assert.False(t, download.IsTerminal())

	download.MarkCompleted()
	assert.Equal(t, StatusCompleted, download.Status)
	assert.Equal(t, float64(100), download.Progress)
	assert.NotNil(t, download.EndedAt)
	assert.True(t, download.IsTerminal())
}

func TestDownload_MarkFailed(t *testing.T) {
	download := NewDownload(newTestRequest())

	download.MarkFailed("segment 2: connection reset")

	assert.Equal(t, StatusFailed, download.Status)
	assert.Equal(t, "segment 2: connection reset", download.Error())
	assert.NotNil(t, download.EndedAt)
}

func TestDownload_MarkCancelledKeepsEndTime(t *testing.T) {
	download := NewDownload(newTestRequest())
	download.MarkCancelled("")
	require.NotNil(t, download.EndedAt)
	first := *download.EndedAt

	download.MarkCancelled("Cancelled by user")

	assert.Equal(t, first, *download.EndedAt)
	assert.Equal(t, "Cancelled by user", download.Error())
}

func TestDownload_SetErrorTruncates(t *testing.T) {
	download := NewDownload(newTestRequest())

	download.SetError(strings.Repeat("x", MaxErrorLength*2))

	assert.Equal(t, MaxErrorLength, len([]rune(download.Error())))
	assert.True(t, strings.HasSuffix(download.Error(), "..."))
}

func TestClampProgress(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{150, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClampProgress(tt.in))
	}
}

func TestDownload_SetSpeed(t *testing.T) {
	download := NewDownload(newTestRequest())

	download.SetSpeed(-1)
	assert.Zero(t, download.Speed)

	download.SetSpeed(2048)
	assert.Equal(t, float64(2048), download.Speed)
}

func TestDownload_Clone(t *testing.T) {
	download := NewDownload(newTestRequest())
	download.MarkStarting()
	download.SetError("boom")

	clone := download.Clone()
	*clone.ErrorMessage = "changed"
	*clone.StartedAt = clone.StartedAt.Add(1)

	assert.Equal(t, "boom", download.Error())
	assert.NotEqual(t, *clone.StartedAt, *download.StartedAt)
}

func TestValidateStatus(t *testing.T) {
	assert.True(t, ValidateStatus(StatusQueued))
	assert.True(t, ValidateStatus(StatusCancelled))
	assert.False(t, ValidateStatus("invalid"))
}

func TestNewArchiveRecord(t *testing.T) {
	download := NewDownload(newTestRequest())
	download.MarkFailed("boom")

	record := NewArchiveRecord(download)

	assert.Equal(t, download.ID, record.ID)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, "boom", record.ErrorMessage)
	assert.Equal(t, "v1", record.VersionName)
	assert.Equal(t, int64(1024), record.SizeBytes)
}
