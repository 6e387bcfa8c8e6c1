package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Queue        QueueConfig        `mapstructure:"queue"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains segmented engine configuration
type DownloadConfig struct {
	BaseDir          string        `mapstructure:"base_dir"`
	LogsDir          string        `mapstructure:"logs_dir"`
	Connections      int           `mapstructure:"connections"`
	SegmentRetries   int           `mapstructure:"segment_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	RetryMaxBackoff  time.Duration `mapstructure:"retry_max_backoff"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	CopyBufferSize   int           `mapstructure:"copy_buffer_size"`
	TempDirName      string        `mapstructure:"temp_dir_name"`
}

// QueueConfig contains scheduler configuration
type QueueConfig struct {
	ConcurrentLimit int           `mapstructure:"concurrent_limit"`
	HistoryLimit    int           `mapstructure:"history_limit"`
	HistoryBuffer   int           `mapstructure:"history_buffer"`
	IdleInterval    time.Duration `mapstructure:"idle_interval"`
	CancelOnStop    bool          `mapstructure:"cancel_on_stop"`
}

// HTTPConfig contains outbound HTTP client configuration
type HTTPConfig struct {
	ProbeTimeout    time.Duration     `mapstructure:"probe_timeout"`
	TransferTimeout time.Duration     `mapstructure:"transfer_timeout"`
	ProbeRetries    int               `mapstructure:"probe_retries"`
	UserAgent       string            `mapstructure:"user_agent"`
	ProxyURL        string            `mapstructure:"proxy_url"`
	ProxyUsername   string            `mapstructure:"proxy_username"`
	ProxyPassword   string            `mapstructure:"proxy_password"`
	Headers         map[string]string `mapstructure:"headers"`
}

// ArchiveConfig controls the SQLite record of finished downloads
type ArchiveConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8188,
		},
		Download: DownloadConfig{
			BaseDir:          "$HOME/.civicomfy/models",
			LogsDir:          "$HOME/.civicomfy/logs",
			Connections:      4,
			SegmentRetries:   3,
			RetryBackoff:     time.Second,
			RetryMaxBackoff:  10 * time.Second,
			ProgressInterval: 500 * time.Millisecond,
			CopyBufferSize:   1024 * 1024,
			TempDirName:      ".civicomfy-temp",
		},
		Queue: QueueConfig{
			ConcurrentLimit: 2,
			HistoryLimit:    100,
			HistoryBuffer:   20,
			IdleInterval:    500 * time.Millisecond,
			CancelOnStop:    true,
		},
		HTTP: HTTPConfig{
			ProbeTimeout:    20 * time.Second,
			TransferTimeout: 60 * time.Second,
			ProbeRetries:    2,
			UserAgent:       "civicomfy-go",
			Headers:         map[string]string{},
		},
		Archive: ArchiveConfig{
			Enabled:      true,
			DatabasePath: "$HOME/.civicomfy/archive.db",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
