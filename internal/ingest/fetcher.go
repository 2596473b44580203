package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"webrag/internal/ragerr"
)

const (
	userAgent    = "WebRAG/1.0"
	maxBodyBytes = 10 << 20 // 10MB page cap
)

// Fetcher retrieves raw page content with a bounded timeout. 5xx responses
// and transport errors are transient; 4xx responses and non-text content
// types are permanent.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &ragerr.FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &ragerr.FetchError{URL: url, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return "", &ragerr.FetchError{URL: url, StatusCode: resp.StatusCode, Transient: true}
	case resp.StatusCode != http.StatusOK:
		return "", &ragerr.FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	ct := resp.Header.Get("Content-Type")
	if !supportedContentType(ct) {
		return "", &ragerr.FetchError{URL: url, Err: fmt.Errorf("unsupported content type %q", ct)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &ragerr.FetchError{URL: url, Transient: true, Err: err}
	}
	return string(body), nil
}

func supportedContentType(ct string) bool {
	if ct == "" {
		// Some servers omit the header; the sanitizer copes with plain text.
		return true
	}
	for _, prefix := range []string{"text/html", "application/xhtml+xml", "text/plain"} {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}
