package logger

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{Level: "info"})
	require.Error(t, err)
}

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "debug", LogsDir: dir})
	require.NoError(t, err)

	ml.LogQueueEvent("download_queued", zap.String("id", "abc"))
	ml.Download().Info("probe", zap.Int64("size", 1000))
	ml.LogAppError("boom")
	require.NoError(t, ml.Close())

	queueLog, err := os.ReadFile(ml.CategoryLogPath(CategoryQueue))
	require.NoError(t, err)
	assert.Contains(t, string(queueLog), `"msg":"download_queued"`)
	assert.Contains(t, string(queueLog), `"id":"abc"`)

	downloadLog, err := os.ReadFile(ml.CategoryLogPath(CategoryDownload))
	require.NoError(t, err)
	assert.Contains(t, string(downloadLog), `"category":"download"`)

	errorLog, err := os.ReadFile(ml.CategoryLogPath(CategoryError))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(errorLog), "boom"))
}

func TestMultiLogger_ErrorLevelFilter(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.Error().Info("not an error")
	require.NoError(t, ml.Close())

	errorLog, err := os.ReadFile(ml.CategoryLogPath(CategoryError))
	require.NoError(t, err)
	assert.Empty(t, string(errorLog))
}
