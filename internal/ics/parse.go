package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	ical "github.com/arran4/golang-ical"

	appLog "calsplit/internal/log"
)

// ErrEmpty is returned for a source with no content.
var ErrEmpty = errors.New("ics: empty calendar body")

// Loader fetches and parses a source calendar.
type Loader struct {
	fetcher *Fetcher
}

// NewLoader returns a Loader that reads through f.
func NewLoader(f *Fetcher) *Loader {
	if f == nil {
		f = NewFetcher(0)
	}
	return &Loader{fetcher: f}
}

// Load reads src (a path or URL) and parses it into a calendar.
func (l *Loader) Load(ctx context.Context, src string) (*ical.Calendar, error) {
	body, err := l.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	return Parse(src, body)
}

// Parse parses a single ICS payload. src is only used for messages.
//
// The header (CalendarProperties) and the component stream keep their
// source order; nothing is validated beyond what the parser enforces.
func Parse(src string, body []byte) (*ical.Calendar, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, displaySource(src))
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "src", displaySource(src))
		return nil, fmt.Errorf("ics: parse %s: %w", displaySource(src), err)
	}

	appLog.Debug("ics parse completed",
		"src", displaySource(src),
		"header_properties", len(cal.CalendarProperties),
		"components", len(cal.Components),
		"events", len(cal.Events()),
	)
	return cal, nil
}

func displaySource(src string) string {
	if IsRemote(src) {
		return redactURL(src)
	}
	return src
}
