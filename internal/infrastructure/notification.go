package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/locu5t/civicomfy-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService sends desktop notifications about finished downloads
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if config == nil {
		config = &domain.NotificationConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		err = n.run("osascript", "-e", script)
	case "notify-send":
		err = n.run("notify-send", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyDownloadCompleted sends notification when download completes
func (n *NotificationService) NotifyDownloadCompleted(d domain.Download) {
	n.Send("Download Completed", fmt.Sprintf("Saved: %s", displayName(d)))
}

// NotifyDownloadFailed sends notification when download fails
func (n *NotificationService) NotifyDownloadFailed(d domain.Download) {
	n.Send("Download Failed", fmt.Sprintf("%s: %s", displayName(d), truncateString(d.Error(), 80)))
}

// HandleFinished is a queue hook; cancelled downloads are not announced
func (n *NotificationService) HandleFinished(d domain.Download) {
	switch d.Status {
	case domain.StatusCompleted:
		n.NotifyDownloadCompleted(d)
	case domain.StatusFailed:
		n.NotifyDownloadFailed(d)
	}
}

func displayName(d domain.Download) string {
	name := d.Metadata.Name
	if name == "" {
		name = d.Filename
	}
	if v := strings.TrimSpace(d.Metadata.VersionName); v != "" {
		name = fmt.Sprintf("%s (%s)", name, v)
	}
	return truncateString(name, 60)
}

// truncateString truncates a string to maxLen runes
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
