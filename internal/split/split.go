// Package split groups calendar components by class and produces one
// calendar per class with a rewritten header.
package split

import (
	"errors"
	"fmt"
	"sort"

	ical "github.com/arran4/golang-ical"

	"calsplit/internal/classify"
	appLog "calsplit/internal/log"
)

// DefaultClass is the key of the pre-seeded fallback group.
const DefaultClass = classify.DefaultClass

// ErrFinalized is returned when a Classes value is used after Finalize.
var ErrFinalized = errors.New("split: classes already finalized")

// EmitFunc receives one finished calendar per class. Returning an error
// stops Finalize.
type EmitFunc func(code string, cal *ical.Calendar) error

// Group is a read-only view of one class and its components.
type Group struct {
	Class      string
	Components []ical.Component
}

// Classes accumulates components per class identifier. It is single-use:
// after Finalize every method returns ErrFinalized. Not safe for concurrent
// use.
type Classes struct {
	header    []ical.CalendarProperty
	opts      HeaderOptions
	groups    map[string][]ical.Component
	finalized bool
}

// New creates a grouper holding a copy of the source calendar header and an
// empty DefaultClass group.
func New(header []ical.CalendarProperty, opts HeaderOptions) *Classes {
	tmpl := make([]ical.CalendarProperty, 0, len(header))
	for _, p := range header {
		tmpl = append(tmpl, cloneProperty(p))
	}
	return &Classes{
		header: tmpl,
		opts:   opts,
		groups: map[string][]ical.Component{
			DefaultClass: {},
		},
	}
}

// Insert appends c to the group for code, creating the group on first use.
// Per-group order equals call order.
func (cs *Classes) Insert(code string, c ical.Component) error {
	if cs.finalized {
		return ErrFinalized
	}
	cs.groups[code] = append(cs.groups[code], c)
	return nil
}

// Groups returns every group, including an empty default bucket, sorted by
// class identifier.
func (cs *Classes) Groups() ([]Group, error) {
	if cs.finalized {
		return nil, ErrFinalized
	}
	out := make([]Group, 0, len(cs.groups))
	for _, code := range cs.codes() {
		comps := cs.groups[code]
		out = append(out, Group{
			Class:      code,
			Components: append([]ical.Component(nil), comps...),
		})
	}
	return out, nil
}

// Finalize builds one calendar per group and hands it to emit. The default
// group is skipped when empty; every other group is emitted. Groups are
// visited in ascending identifier order, though callers should not depend
// on that. The first emit error aborts the remaining groups.
func (cs *Classes) Finalize(emit EmitFunc) error {
	if cs.finalized {
		return ErrFinalized
	}
	cs.finalized = true

	var zones []ical.Component
	if cs.opts.IncludeTimezones {
		zones = timezones(cs.groups[DefaultClass])
	}

	emitted := 0
	for _, code := range cs.codes() {
		comps := cs.groups[code]
		if code == DefaultClass && len(comps) == 0 {
			continue
		}

		all := comps
		if len(zones) > 0 && code != DefaultClass {
			all = make([]ical.Component, 0, len(zones)+len(comps))
			all = append(all, zones...)
			all = append(all, comps...)
		}

		cal := &ical.Calendar{
			CalendarProperties: RewriteHeader(code, cs.header, cs.opts),
			Components:         all,
		}
		if err := emit(code, cal); err != nil {
			appLog.Error("split: emit failed; stopping", err, "class", code, "emitted", emitted)
			return fmt.Errorf("split: class %q: %w", code, err)
		}
		emitted++
	}

	cs.groups = nil
	appLog.Debug("split: finalize completed", "emitted", emitted)
	return nil
}

func (cs *Classes) codes() []string {
	codes := make([]string, 0, len(cs.groups))
	for code := range cs.groups {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func timezones(comps []ical.Component) []ical.Component {
	var out []ical.Component
	for _, c := range comps {
		if _, ok := c.(*ical.VTimezone); ok {
			out = append(out, c)
		}
	}
	return out
}

// Build routes every component of cal, in stream order, into a new
// Classes seeded with cal's header.
func Build(cal *ical.Calendar, opts HeaderOptions) *Classes {
	cs := New(cal.CalendarProperties, opts)
	for _, c := range cal.Components {
		// a fresh Classes is never finalized
		_ = cs.Insert(classify.Route(c), c)
	}
	appLog.Debug("split: components classified", "components", len(cal.Components), "classes", len(cs.groups))
	return cs
}
