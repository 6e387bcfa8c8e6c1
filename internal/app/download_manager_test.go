package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locu5t/civicomfy-go/internal/domain"
)

// recordingTracker implements TaskTracker for testing
type recordingTracker struct {
	mu       sync.Mutex
	attach   bool
	attached domain.DownloadRun
	updates  []TaskUpdate
	status   domain.DownloadStatus
	msg      string
	finishes int
}

func (r *recordingTracker) AttachRun(id string, run domain.DownloadRun) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attach {
		r.attached = run
	}
	return r.attach
}

func (r *recordingTracker) UpdateTask(id string, u TaskUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recordingTracker) FinishTask(id string, status domain.DownloadStatus, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishes++
	r.status = status
	r.msg = msg
}

func testTask() domain.Download {
	return *domain.NewDownload(request("model.safetensors"))
}

func TestProcess_Completed(t *testing.T) {
	dl := newFakeDownloader(runBehavior{})
	dm := NewDownloadManager(dl, nil)
	tracker := &recordingTracker{attach: true}
	task := testTask()

	dm.Process(context.Background(), task, tracker)

	assert.Equal(t, 1, tracker.finishes)
	assert.Equal(t, domain.StatusCompleted, tracker.status)
	require.NotEmpty(t, tracker.updates)
	require.NotNil(t, tracker.updates[0].Status)
	assert.Equal(t, domain.StatusDownloading, *tracker.updates[0].Status)
	assert.NotNil(t, tracker.attached)
	assert.True(t, dl.run(task.ID).wasExecuted())
}

func TestProcess_CancelledBeforeAttach(t *testing.T) {
	dl := newFakeDownloader(runBehavior{})
	dm := NewDownloadManager(dl, nil)
	tracker := &recordingTracker{attach: false}
	task := testTask()

	dm.Process(context.Background(), task, tracker)

	run := dl.run(task.ID)
	require.NotNil(t, run)
	assert.False(t, run.wasExecuted(), "engine must not transfer after an early cancel")
	assert.True(t, run.Cancelled())
	assert.Equal(t, domain.StatusCancelled, tracker.status)
	assert.Empty(t, tracker.updates)
}

func TestProcess_Failed(t *testing.T) {
	dl := newFakeDownloader(runBehavior{fail: "probe failed"})
	dm := NewDownloadManager(dl, nil)
	tracker := &recordingTracker{attach: true}

	dm.Process(context.Background(), testTask(), tracker)

	assert.Equal(t, domain.StatusFailed, tracker.status)
	assert.Equal(t, "probe failed", tracker.msg)
}

func TestProcess_RecoversPanic(t *testing.T) {
	dl := newFakeDownloader(runBehavior{panic: true})
	dm := NewDownloadManager(dl, nil)
	tracker := &recordingTracker{attach: true}

	assert.NotPanics(t, func() {
		dm.Process(context.Background(), testTask(), tracker)
	})
	assert.Equal(t, domain.StatusFailed, tracker.status)
	assert.Contains(t, tracker.msg, "engine exploded")
}
