package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileOutputCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "server.log")

	log, err := New(Config{Level: "debug", Format: "json", OutputPath: path, Service: "civicomfy-server"})
	require.NoError(t, err)
	log.Debug("queue_started", zap.Int("concurrent_limit", 2))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"queue_started"`)
	assert.Contains(t, string(data), `"service":"civicomfy-server"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNew_ConsoleFileHasNoColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetch.log")

	log, err := New(Config{Level: "info", Format: "console", OutputPath: path})
	require.NoError(t, err)
	log.Warn("segment retry")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "WARN")
	assert.NotContains(t, string(data), "\x1b[")
}

func TestNew_LevelFilterAndFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "level.log")

	log, err := New(Config{Level: "not-a-level", Format: "json", OutputPath: path})
	require.NoError(t, err)
	log.Debug("hidden")
	log.Info("shown")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
