//go:build integration

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locu5t/civicomfy-go/internal/app"
	"github.com/locu5t/civicomfy-go/internal/domain"
	"github.com/locu5t/civicomfy-go/internal/engine"
	"github.com/locu5t/civicomfy-go/internal/infrastructure"
)

type stack struct {
	router  *gin.Engine
	queue   *app.QueueManager
	archive *infrastructure.SQLiteArchiveRepository
	baseDir string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	config := domain.DefaultConfig()
	config.Download.BaseDir = t.TempDir()
	config.Download.RetryBackoff = time.Millisecond
	config.Download.RetryMaxBackoff = 5 * time.Millisecond
	config.Download.ProgressInterval = 20 * time.Millisecond
	config.Queue.IdleInterval = 10 * time.Millisecond
	config.HTTP.ProbeRetries = 0

	archive, err := infrastructure.NewSQLiteArchiveRepository(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })

	factory := infrastructure.NewHTTPClientFactory(config.HTTP)
	eng := engine.New(factory.TransferClient(), factory.ProbeClient(nil),
		engine.OptionsFromConfig(config.Download, config.HTTP), nil)

	qm := app.NewQueueManager(app.NewDownloadManager(eng, nil), &config.Queue, nil)
	qm.OnFinished(app.NewArchiveHook(archive, nil))
	require.NoError(t, qm.Start(context.Background()))
	t.Cleanup(func() { qm.Stop() })

	return &stack{
		router: SetupRouter(RouterConfig{
			QueueManager:       qm,
			Archive:            archive,
			BaseDir:            config.Download.BaseDir,
			DefaultConnections: 4,
		}),
		queue:   qm,
		archive: archive,
		baseDir: config.Download.BaseDir,
	}
}

func enqueue(t *testing.T, router http.Handler, url, output string) string {
	t.Helper()
	w := doRequest(router, http.MethodPost, "/api/v1/downloads", map[string]interface{}{
		"url":         url,
		"output_path": output,
		"name":        "Integration",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		ID string `json:"id"`
	}
	decode(t, w, &resp)
	return resp.ID
}

func TestDownloadWorkflow_Success(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 64*1024) // 1 MiB
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "model.safetensors", time.Time{}, bytes.NewReader(payload))
	}))
	defer files.Close()

	s := newStack(t)
	id := enqueue(t, s.router, files.URL+"/model.safetensors", "checkpoints/model.safetensors")

	require.Eventually(t, func() bool {
		d, ok := s.queue.Get(id)
		return ok && d.IsTerminal()
	}, 10*time.Second, 20*time.Millisecond)

	d, _ := s.queue.Get(id)
	require.Equal(t, domain.StatusCompleted, d.Status, d.Error())
	assert.Equal(t, 100.0, d.Progress)

	data, err := os.ReadFile(filepath.Join(s.baseDir, "checkpoints", "model.safetensors"))
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	leftovers, err := filepath.Glob(filepath.Join(s.baseDir, "checkpoints", ".civicomfy-temp*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	require.Eventually(t, func() bool {
		rec, err := s.archive.FindByID(id)
		return err == nil && rec.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	w := doRequest(s.router, http.MethodGet, "/api/v1/archive?limit=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)
}

func TestDownloadWorkflow_Cancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		w.Write(make([]byte, 1024))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer files.Close()

	s := newStack(t)
	id := enqueue(t, s.router, files.URL+"/big.bin", "big.bin")

	require.Eventually(t, func() bool {
		d, ok := s.queue.Get(id)
		return ok && d.Status == domain.StatusDownloading
	}, 5*time.Second, 10*time.Millisecond)

	w := doRequest(s.router, http.MethodPost, "/api/v1/downloads/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		d, ok := s.queue.Get(id)
		return ok && d.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	d, _ := s.queue.Get(id)
	assert.Equal(t, domain.StatusCancelled, d.Status)

	_, err := os.Stat(filepath.Join(s.baseDir, "big.bin"))
	assert.True(t, os.IsNotExist(err))
}
