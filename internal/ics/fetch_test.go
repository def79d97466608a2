package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://canvas.example.edu/feeds/calendars/user_x.ics"))
	assert.True(t, IsRemote("HTTP://example.com/a.ics"))
	assert.True(t, IsRemote("webcal://example.com/a.ics"))
	assert.False(t, IsRemote("calendar.ics"))
	assert.False(t, IsRemote("/tmp/https.ics"))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/feeds/user_abc.ics?token=x"))
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.ics")
	require.NoError(t, os.WriteFile(path, []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), 0o600))

	body, err := NewFetcher(0).Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")
}

func TestFetchMissingFile(t *testing.T) {
	_, err := NewFetcher(0).Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.ics"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetchEmptySource(t *testing.T) {
	_, err := NewFetcher(0).Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.ics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)

	body, err := f.Fetch(context.Background(), srv.URL+"/feed.ics")
	require.NoError(t, err)
	assert.Contains(t, string(body), "END:VCALENDAR")

	_, err = f.Fetch(context.Background(), srv.URL+"/other.ics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.NotContains(t, err.Error(), "other.ics", "paths are redacted in errors")
}

func TestFetchHTTPCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(0).Fetch(ctx, srv.URL+"/feed.ics")
	assert.ErrorIs(t, err, context.Canceled)
}
