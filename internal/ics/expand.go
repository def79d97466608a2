package ics

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "calsplit/internal/log"
	"calsplit/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	// A zero RangeStart means "from the beginning"; a zero RangeEnd means
	// one year from now.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid infinite or extremely
	// large expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// parsedEvent is the subset of a VEVENT needed for expansion.
type parsedEvent struct {
	UID      string
	Summary  string
	Location string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool
}

// ExpandClass expands the VEVENTs among comps into concrete occurrences
// inside the configured window. Non-event components are ignored, and
// events without UID or DTSTART are logged and skipped. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//   - All-day semantics
func ExpandClass(class string, comps []ical.Component, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.IsZero() {
		cfg.RangeEnd = time.Now().AddDate(1, 0, 0)
	}
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, keeping first-seen UID order.
	baseByUID := make(map[string][]parsedEvent)
	overridesByUID := make(map[string][]parsedEvent)
	var order []string

	for _, c := range comps {
		ve, ok := c.(*ical.VEvent)
		if !ok {
			continue
		}
		ev, err := parseVEvent(ve)
		if err != nil {
			appLog.Debug("expand: skipping event", "class", class, "reason", err.Error())
			continue
		}
		if ev.IsOverride {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	for _, uid := range order {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(class, ev, ov, cfg)
			if hitCap {
				truncated = true
			}
			result.Occurrences = append(result.Occurrences, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"class", class,
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		return result.Occurrences[i].Start.Before(result.Occurrences[j].Start)
	})
	return result, nil
}

// SummarizeClass counts the components of one class and the span of its
// expanded occurrences.
func SummarizeClass(class string, comps []ical.Component, cfg ExpandConfig) (model.ClassSummary, error) {
	sum := model.ClassSummary{Class: class, Components: len(comps)}
	for _, c := range comps {
		if _, ok := c.(*ical.VEvent); ok {
			sum.Events++
		}
	}

	res, err := ExpandClass(class, comps, cfg)
	if err != nil {
		return sum, err
	}
	sum.Occurrences = len(res.Occurrences)
	sum.Truncated = len(res.TruncatedEvents) > 0
	if n := len(res.Occurrences); n > 0 {
		sum.First = res.Occurrences[0].Start
		sum.Last = res.Occurrences[n-1].Start
	}
	return sum, nil
}

func parseVEvent(ve *ical.VEvent) (parsedEvent, error) {
	var out parsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil {
		return out, errors.New("missing DTSTART")
	}
	// VALUE=DATE or no 'T' in the value -> all-day
	if vs, ok := dtStartProp.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.AllDay = true
	}
	if !strings.Contains(dtStartProp.Value, "T") {
		out.AllDay = true
	}

	var err error
	if out.AllDay {
		out.Start, err = ve.GetAllDayStartAt()
	} else {
		out.Start, err = ve.GetStartAt()
	}
	if err != nil {
		return out, err
	}

	// DTEND is optional; fall back to one day (all-day) or zero duration.
	if out.AllDay {
		out.End, err = ve.GetAllDayEndAt()
	} else {
		out.End, err = ve.GetEndAt()
	}
	if err != nil || out.End.Before(out.Start) {
		out.End = out.Start
		if out.AllDay {
			out.End = out.Start.AddDate(0, 0, 1)
		}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, out.Start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, out.Start.Location()); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// parseICSTime parses a basic ICS date/date-time string. Floating and
// date-only values are interpreted in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.Local
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	if len(v) != 8 {
		return time.Time{}, errors.New("invalid date value " + strconv.Quote(v))
	}
	return time.ParseInLocation("20060102", v, loc)
}

func expandEvent(class string, ev parsedEvent, overrides []parsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(class, ev, overrides, cfg), false
	}
	return expandRecurringEvent(class, ev, overrides, cfg)
}

func expandSingleEvent(class string, ev parsedEvent, overrides []parsedEvent, cfg ExpandConfig) []model.Occurrence {
	start, end := ev.Start, ev.End
	if o, ok := findOverrideForStart(overrides, start); ok {
		start, end, ev = o.Start, o.End, o
	}
	if !inRange(start, end, cfg) {
		return nil
	}
	return []model.Occurrence{makeOccurrence(class, ev, start, end, cfg.DisplayLocation)}
}

func expandRecurringEvent(class string, ev parsedEvent, overrides []parsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	out := make([]model.Occurrence, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "class", class, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := ev.Start
	if !cfg.RangeStart.IsZero() && cfg.RangeStart.After(rangeStart) {
		rangeStart = cfg.RangeStart.In(ev.Start.Location())
	}
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	occTimes, hitCap := occurrencesInWindow(&set, rangeStart, rangeEnd, cfg.MaxOccurrencesPerEvent)

	dur := ev.End.Sub(ev.Start)
	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)
		if ev.AllDay {
			date := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart, occEnd = date, date.AddDate(0, 0, 1)
		}

		baseEv := ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			occStart, occEnd, baseEv = o.Start, o.End, o
		}

		out = append(out, makeOccurrence(class, baseEv, occStart, occEnd, cfg.DisplayLocation))
	}

	return out, hitCap
}

// occurrencesInWindow walks set lazily and returns at most limit start times
// within [from, to]. capped is true only when a further in-window time
// exists beyond the limit.
func occurrencesInWindow(set *rrule.Set, from, to time.Time, limit int) (times []time.Time, capped bool) {
	next := set.Iterator()
	for {
		t, ok := next()
		if !ok || t.After(to) {
			return times, false
		}
		if t.Before(from) {
			continue
		}
		if len(times) == limit {
			return times, true
		}
		times = append(times, t)
	}
}

// findOverrideForStart finds an override whose RECURRENCE-ID equals baseStart.
func findOverrideForStart(overrides []parsedEvent, baseStart time.Time) (parsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(baseStart) {
			return ov, true
		}
	}
	return parsedEvent{}, false
}

func makeOccurrence(class string, ev parsedEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	return model.Occurrence{
		Class:       class,
		UID:         ev.UID,
		InstanceKey: startLocal.Format(time.RFC3339Nano),
		Summary:     ev.Summary,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       startLocal,
		End:         end.In(displayLoc),
	}
}

// inRange reports whether [start, end] touches the configured window.
func inRange(start, end time.Time, cfg ExpandConfig) bool {
	if !cfg.RangeStart.IsZero() && end.Before(cfg.RangeStart) {
		return false
	}
	if start.After(cfg.RangeEnd) {
		return false
	}
	return true
}
