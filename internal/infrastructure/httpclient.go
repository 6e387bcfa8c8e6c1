package infrastructure

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/locu5t/civicomfy-go/internal/domain"
	"go.uber.org/zap"
)

const defaultUserAgent = "civicomfy-go"

// HTTPClientFactory builds the outbound clients used by the download engine.
// Both clients share one transport, so proxy, user agent and extra headers
// apply to probes and transfers alike.
type HTTPClientFactory struct {
	config    domain.HTTPConfig
	transport http.RoundTripper
}

// NewHTTPClientFactory creates a factory from configuration
func NewHTTPClientFactory(cfg domain.HTTPConfig) *HTTPClientFactory {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 20 * time.Second
	}
	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = 60 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.TransferTimeout,
		DisableCompression:    true, // raw bytes for range requests
	}
	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			base.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &HTTPClientFactory{
		config: cfg,
		transport: &headerTransport{
			base:      base,
			userAgent: cfg.UserAgent,
			headers:   cfg.Headers,
		},
	}
}

// TransferClient returns the client for range and streaming GETs. It has no
// whole-request timeout; stalled bodies are detected by the engine.
func (f *HTTPClientFactory) TransferClient() *http.Client {
	return &http.Client{Transport: f.transport}
}

// ProbeClient returns a retrying client for metadata requests
func (f *HTTPClientFactory) ProbeClient(logger *zap.Logger) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: f.transport,
		Timeout:   f.config.ProbeTimeout,
	}
	rc.RetryMax = f.config.ProbeRetries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	if logger != nil {
		rc.Logger = NewRetryLogger(logger)
	} else {
		rc.Logger = nil
	}
	return rc
}

// TransferTimeout returns the idle timeout for streamed bodies
func (f *HTTPClientFactory) TransferTimeout() time.Duration {
	return f.config.TransferTimeout
}

// headerTransport sets the user agent and custom headers on every request
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// RetryLogger adapts zap to retryablehttp.LeveledLogger
type RetryLogger struct {
	sugar *zap.SugaredLogger
}

// NewRetryLogger wraps a zap logger
func NewRetryLogger(logger *zap.Logger) *RetryLogger {
	return &RetryLogger{sugar: logger.Sugar()}
}

func (l *RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

var _ retryablehttp.LeveledLogger = (*RetryLogger)(nil)
