package infrastructure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locu5t/civicomfy-go/internal/domain"
)

type recordedCommand struct {
	name string
	args []string
}

func newRecordingNotifier(cfg *domain.NotificationConfig, fail error) (*NotificationService, *[]recordedCommand) {
	var calls []recordedCommand
	n := NewNotificationService(cfg, nil)
	n.run = func(name string, args ...string) error {
		calls = append(calls, recordedCommand{name: name, args: args})
		return fail
	}
	return n, &calls
}

func finished(status domain.DownloadStatus) domain.Download {
	d := domain.NewDownload(domain.DownloadRequest{
		URL:        "https://example.com/a",
		OutputPath: "/models/lora/detail.safetensors",
		Metadata:   domain.DownloadMetadata{Name: "Detail Tweaker", VersionName: "v2"},
	})
	switch status {
	case domain.StatusCompleted:
		d.MarkCompleted()
	case domain.StatusFailed:
		d.MarkFailed("segment 0 failed")
	case domain.StatusCancelled:
		d.MarkCancelled("Cancelled by user")
	}
	return *d
}

func TestNotification_DisabledSendsNothing(t *testing.T) {
	n, calls := newRecordingNotifier(&domain.NotificationConfig{Enabled: false, Method: "notify-send"}, nil)

	require.NoError(t, n.Send("title", "message"))
	assert.Empty(t, *calls)
}

func TestNotification_HandleFinished(t *testing.T) {
	n, calls := newRecordingNotifier(&domain.NotificationConfig{Enabled: true, Method: "notify-send"}, nil)

	n.HandleFinished(finished(domain.StatusCompleted))
	n.HandleFinished(finished(domain.StatusFailed))
	n.HandleFinished(finished(domain.StatusCancelled))

	require.Len(t, *calls, 2)
	assert.Equal(t, "notify-send", (*calls)[0].name)
	assert.Equal(t, []string{"Download Completed", "Saved: Detail Tweaker (v2)"}, (*calls)[0].args)
	assert.Equal(t, "Download Failed", (*calls)[1].args[0])
	assert.Contains(t, (*calls)[1].args[1], "segment 0 failed")
}

func TestNotification_OSAScriptQuotes(t *testing.T) {
	n, calls := newRecordingNotifier(&domain.NotificationConfig{Enabled: true, Method: "osascript"}, nil)

	require.NoError(t, n.Send(`Say "hi"`, "body"))
	require.Len(t, *calls, 1)
	assert.Equal(t, "osascript", (*calls)[0].name)
	assert.Equal(t, `display notification "body" with title "Say \"hi\""`, (*calls)[0].args[1])
}

func TestNotification_ReportsCommandError(t *testing.T) {
	n, _ := newRecordingNotifier(&domain.NotificationConfig{Enabled: true, Method: "notify-send"}, errors.New("not installed"))
	assert.Error(t, n.Send("t", "m"))
}

func TestNotification_UnknownMethodIgnored(t *testing.T) {
	n, calls := newRecordingNotifier(&domain.NotificationConfig{Enabled: true, Method: "pigeon"}, nil)
	assert.NoError(t, n.Send("t", "m"))
	assert.Empty(t, *calls)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcde...", truncateString("abcdefghij", 5))
	assert.Equal(t, "日本...", truncateString("日本語テキスト", 2))
}
