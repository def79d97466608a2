// Package classify derives a class identifier for calendar components from
// the bracketed code in an event's SUMMARY, e.g.
//
//	SUMMARY:Final Exam [2025FallC-X-CSE360-77646]
//
// yields "2025FallC-X-CSE360-77646".
package classify

import (
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "calsplit/internal/log"
)

// DefaultClass is the bucket for components that carry no class code.
// Extraction never produces it as a distinct group: a summary whose
// brackets contain exactly this text lands in the same bucket.
const DefaultClass = "no_associated_class"

// ExtractClassCode returns the text strictly between the first '[' and the
// first ']' of summary. The result is verbatim: no trimming, no case
// folding. ok is false when summary is nil, a delimiter is missing, or the
// first ']' does not come after the first '['.
func ExtractClassCode(summary *string) (code string, ok bool) {
	if summary == nil {
		return "", false
	}
	s := *summary
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return "", false
	}
	end := strings.IndexByte(s, ']')
	if end < 0 || end <= start {
		return "", false
	}
	return s[start+1 : end], true
}

// Summary returns the SUMMARY value of an event, or nil when c is not a
// VEVENT or has no SUMMARY property.
func Summary(c ical.Component) *string {
	ev, ok := c.(*ical.VEvent)
	if !ok || ev == nil {
		return nil
	}
	p := ev.GetProperty(ical.ComponentPropertySummary)
	if p == nil {
		return nil
	}
	v := p.Value
	return &v
}

// Route picks the group a component belongs to. Non-events, events without
// a SUMMARY and summaries without a usable bracket pair go to DefaultClass.
func Route(c ical.Component) string {
	code, ok := ExtractClassCode(Summary(c))
	if !ok {
		return DefaultClass
	}
	if code == DefaultClass {
		appLog.Debug("class code equals default bucket; merging", "class", code)
	}
	return code
}
