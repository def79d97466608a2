package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appLog "calsplit/internal/log"
)

// DefaultFetchTimeout bounds a single remote calendar download.
const DefaultFetchTimeout = 15 * time.Second

// Fetcher reads a calendar payload from a local path or a remote
// http(s)/webcal URL.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher whose HTTP requests time out after timeout
// (DefaultFetchTimeout when zero or negative).
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsRemote reports whether src names an http(s) or webcal URL.
func IsRemote(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "webcal://")
}

// Fetch returns the raw calendar bytes for src.
func (f *Fetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	if src == "" {
		return nil, errors.New("ics: source is empty")
	}
	if !IsRemote(src) {
		body, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("ics: read %s: %w", src, err)
		}
		return body, nil
	}
	return f.fetchURL(ctx, src)
}

func (f *Fetcher) fetchURL(ctx context.Context, src string) ([]byte, error) {
	url := src
	// webcal:// is a calendar-app convention for "subscribe over HTTPS".
	if strings.HasPrefix(strings.ToLower(url), "webcal://") {
		url = "https://" + url[len("webcal://"):]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ics: build request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	appLog.Info("ics fetch start", "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ics: fetch %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics: fetch %s: unexpected status %s", redactURL(url), resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ics: read body from %s: %w", redactURL(url), err)
	}

	appLog.Info("ics fetch success", "url", redactURL(url), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
// Feed URLs usually embed a private token in the path or query.
//
//	https://example.com/feeds/calendars/user_abc.ics?token=x
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	i += 3

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}

	return u[:j] + redactedSuffix
}
