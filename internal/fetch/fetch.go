// Package fetch retrieves mod landing pages. Failures never escape this
// boundary: callers get the body text or an empty string, and decide what a
// degraded page means for them.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	browserUA   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBodySize = 512 * 1024
)

// Fetcher fetches a single page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body string, status int)
}

// HTTPFetcher implements Fetcher over net/http with a browser User-Agent.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with the given timeout (20s when zero).
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Fetch returns the page body, or "" on any failure. Bodies of 403/429
// responses are kept: challenge pages carry the block signal the extractor
// looks for.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, int) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		zap.L().Warn("fetch: bad url", zap.String("url", url), zap.Error(err))
		return "", 0
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		zap.L().Warn("fetch: request failed", zap.String("url", url), zap.Error(err))
		return "", 0
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		zap.L().Warn("fetch: read body", zap.String("url", url), zap.Error(err))
		return "", resp.StatusCode
	}

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		return string(body), resp.StatusCode
	case resp.StatusCode >= 400:
		zap.L().Warn("fetch: error status",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return "", resp.StatusCode
	}

	return string(body), resp.StatusCode
}
