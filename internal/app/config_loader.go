package app

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/locu5t/civicomfy-go/internal/domain"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// Start with default config
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.civicomfy")
		v.AddConfigPath("/etc/civicomfy")
	}

	// CIVICOMFY_QUEUE_CONCURRENT_LIMIT overrides queue.concurrent_limit
	v.SetEnvPrefix("CIVICOMFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers the keys that may come only from the environment.
// AutomaticEnv alone does not make Unmarshal see keys absent from the file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port",
		"download.base_dir", "download.logs_dir", "download.connections",
		"download.segment_retries", "download.retry_backoff", "download.retry_max_backoff",
		"download.progress_interval", "download.copy_buffer_size", "download.temp_dir_name",
		"queue.concurrent_limit", "queue.history_limit", "queue.history_buffer",
		"queue.idle_interval", "queue.cancel_on_stop",
		"http.probe_timeout", "http.transfer_timeout", "http.probe_retries",
		"http.user_agent", "http.proxy_url", "http.proxy_username", "http.proxy_password",
		"archive.enabled", "archive.database_path",
		"notification.enabled", "notification.method",
		"logging.level", "logging.format", "logging.output_path",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.Archive.DatabasePath = expandPath(config.Archive.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if strings.Contains(path, "$HOME") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Download.Connections < 1 {
		return fmt.Errorf("connections must be at least 1")
	}

	if config.Download.SegmentRetries < 1 {
		return fmt.Errorf("segment retries must be at least 1")
	}

	if config.Download.RetryBackoff <= 0 || config.Download.RetryMaxBackoff <= 0 {
		return fmt.Errorf("retry backoff must be positive")
	}

	if config.Download.ProgressInterval <= 0 {
		return fmt.Errorf("progress interval must be positive")
	}

	if config.Queue.ConcurrentLimit < 1 {
		return fmt.Errorf("concurrent limit must be at least 1")
	}

	if config.Queue.HistoryLimit < 1 {
		return fmt.Errorf("history limit must be at least 1")
	}

	if config.Queue.HistoryBuffer < 0 {
		return fmt.Errorf("history buffer cannot be negative")
	}

	if config.Queue.IdleInterval <= 0 {
		return fmt.Errorf("idle interval must be positive")
	}

	if config.HTTP.ProbeTimeout <= 0 || config.HTTP.TransferTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}

	if config.Archive.Enabled && config.Archive.DatabasePath == "" {
		return fmt.Errorf("archive database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	// keys must match the mapstructure tags LoadConfig reads
	settings, err := toSettings(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	for key, value := range settings {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// toSettings converts a tagged struct into nested maps keyed by mapstructure
// tags. Durations are written in their string form.
func toSettings(in interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := mapstructure.Decode(in, &out); err != nil {
		return nil, err
	}
	for key, value := range out {
		normalized, err := normalizeSetting(value)
		if err != nil {
			return nil, err
		}
		out[key] = normalized
	}
	return out, nil
}

func normalizeSetting(value interface{}) (interface{}, error) {
	switch val := value.(type) {
	case time.Duration:
		return val.String(), nil
	case map[string]interface{}:
		for k, nested := range val {
			n, err := normalizeSetting(nested)
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	}
	if value != nil && reflect.Indirect(reflect.ValueOf(value)).Kind() == reflect.Struct {
		return toSettings(value)
	}
	return value, nil
}
