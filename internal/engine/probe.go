package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// ProbeResult describes what the server reported about a URL
type ProbeResult struct {
	Size          int64
	AcceptsRanges bool
	FinalURL      string
}

// Probe inspects a URL without downloading its body
func (e *Engine) Probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	return e.probe(ctx, rawURL)
}

// probe issues a HEAD request and, when that is inconclusive, a one-byte
// range GET. Redirects are followed and the final URL is reported.
func (e *Engine) probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	head, headErr := e.probeHead(ctx, rawURL)
	if headErr == nil && head.Size > 0 && head.AcceptsRanges {
		return head, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	target := rawURL
	if headErr == nil && head.FinalURL != "" {
		target = head.FinalURL
	}
	ranged, rangeErr := e.probeRange(ctx, target)
	if rangeErr == nil {
		if ranged.Size <= 0 && headErr == nil {
			ranged.Size = head.Size
		}
		return ranged, nil
	}
	if headErr == nil {
		return head, nil
	}
	return nil, fmt.Errorf("probe failed: head: %v; range: %w", headErr, rangeErr)
}

func (e *Engine) probeHead(ctx context.Context, rawURL string) (*ProbeResult, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HEAD request: %w", err)
	}

	resp, err := e.prober.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HEAD request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HEAD returned status %d", resp.StatusCode)
	}

	return &ProbeResult{
		Size:          resp.ContentLength,
		AcceptsRanges: strings.EqualFold(strings.TrimSpace(resp.Header.Get("Accept-Ranges")), "bytes"),
		FinalURL:      finalURL(resp, rawURL),
	}, nil
}

func (e *Engine) probeRange(ctx context.Context, rawURL string) (*ProbeResult, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create range probe: %w", err)
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := e.prober.Do(req)
	if err != nil {
		return nil, fmt.Errorf("range probe failed: %w", err)
	}
	defer resp.Body.Close()

	result := &ProbeResult{FinalURL: finalURL(resp, rawURL)}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		result.AcceptsRanges = true
		result.Size = -1
		if total, ok := ParseContentRangeTotal(resp.Header.Get("Content-Range")); ok {
			result.Size = total
		}
		// drain the single byte so the connection is reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1))
	case http.StatusOK:
		result.Size = resp.ContentLength
	default:
		return nil, fmt.Errorf("range probe returned status %d", resp.StatusCode)
	}
	return result, nil
}

func finalURL(resp *http.Response, fallback string) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return fallback
}

// ParseContentRangeTotal extracts the complete length from a Content-Range
// header such as "bytes 0-0/1234". It reports false when the length is
// missing or "*".
func ParseContentRangeTotal(header string) (int64, bool) {
	_, _, total, ok := parseContentRange(header)
	if !ok || total <= 0 {
		return 0, false
	}
	return total, true
}

// parseContentRange splits "bytes start-end/total". start and end are -1 for
// the unsatisfied form "bytes */total"; total is -1 when it is "*".
func parseContentRange(header string) (start, end, total int64, ok bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "bytes ") {
		return 0, 0, 0, false
	}
	spec := strings.TrimSpace(strings.TrimPrefix(header, "bytes "))
	rangePart, totalPart, found := strings.Cut(spec, "/")
	if !found || totalPart == "" {
		return 0, 0, 0, false
	}

	total = -1
	if totalPart != "*" {
		n, err := strconv.ParseInt(totalPart, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}
		total = n
	}

	if rangePart == "*" {
		return -1, -1, total, true
	}
	first, last, found := strings.Cut(rangePart, "-")
	if !found {
		return 0, 0, 0, false
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, 0, false
	}
	end, err = strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return 0, 0, 0, false
	}
	return start, end, total, true
}
