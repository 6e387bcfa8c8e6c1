package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8188, config.Server.Port)
	assert.Equal(t, 4, config.Download.Connections)
	assert.Equal(t, 3, config.Download.SegmentRetries)
	assert.Equal(t, time.Second, config.Download.RetryBackoff)
	assert.Equal(t, 10*time.Second, config.Download.RetryMaxBackoff)
	assert.Equal(t, 500*time.Millisecond, config.Download.ProgressInterval)
	assert.Equal(t, 2, config.Queue.ConcurrentLimit)
	assert.Equal(t, 100, config.Queue.HistoryLimit)
	assert.Equal(t, 20, config.Queue.HistoryBuffer)
	assert.Equal(t, 20*time.Second, config.HTTP.ProbeTimeout)
	assert.Equal(t, 60*time.Second, config.HTTP.TransferTimeout)
	assert.False(t, config.Notification.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
}
