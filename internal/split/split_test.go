package split

import (
	"errors"
	"strings"
	"testing"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calsplit/internal/classify"
)

var testOpts = HeaderOptions{
	ProductID:           "-//calsplit test//EN",
	DescriptionTemplate: "Calendar events for {class}",
}

func crlf(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

func parse(t *testing.T, body string) *ical.Calendar {
	t.Helper()
	cal, err := ical.ParseCalendar(strings.NewReader(body))
	require.NoError(t, err)
	return cal
}

func uid(t *testing.T, c ical.Component) string {
	t.Helper()
	var base *ical.ComponentBase
	switch v := c.(type) {
	case *ical.VEvent:
		base = &v.ComponentBase
	case *ical.VTodo:
		base = &v.ComponentBase
	case *ical.VTimezone:
		base = &v.ComponentBase
	default:
		t.Fatalf("unexpected component %T", c)
	}
	p := base.GetProperty(ical.ComponentPropertyUniqueId)
	if p == nil {
		p = base.GetProperty(ical.ComponentProperty("TZID"))
	}
	require.NotNil(t, p)
	return p.Value
}

var sourceCalendar = crlf(
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//Instructure//Canvas//EN",
	"X-WR-CALNAME:Original",
	"X-WR-CALDESC:All my courses",
	"CALSCALE:GREGORIAN",
	"BEGIN:VEVENT",
	"UID:e1",
	"SUMMARY:A [MATH101]",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:e2",
	"SUMMARY:Office Hours",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:e3",
	"SUMMARY:Final Exam [2025FallC-X-CSE360-77646]",
	"END:VEVENT",
	"BEGIN:VTODO",
	"UID:t1",
	"SUMMARY:Todo [MATH101]",
	"END:VTODO",
	"BEGIN:VEVENT",
	"UID:e4",
	"SUMMARY:B [MATH101]",
	"END:VEVENT",
	"END:VCALENDAR",
)

func splitAll(t *testing.T, cal *ical.Calendar, opts HeaderOptions) map[string]*ical.Calendar {
	t.Helper()
	cs := New(cal.CalendarProperties, opts)
	for _, c := range cal.Components {
		require.NoError(t, cs.Insert(classify.Route(c), c))
	}
	out := map[string]*ical.Calendar{}
	require.NoError(t, cs.Finalize(func(code string, c *ical.Calendar) error {
		_, dup := out[code]
		require.False(t, dup, "class emitted twice: %s", code)
		out[code] = c
		return nil
	}))
	return out
}

func uids(t *testing.T, cal *ical.Calendar) []string {
	var out []string
	for _, c := range cal.Components {
		out = append(out, uid(t, c))
	}
	return out
}

func TestFinalizePartitionsComponents(t *testing.T) {
	src := parse(t, sourceCalendar)
	got := splitAll(t, src, testOpts)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"e1", "e4"}, uids(t, got["MATH101"]))
	assert.Equal(t, []string{"e3"}, uids(t, got["2025FallC-X-CSE360-77646"]))
	assert.Equal(t, []string{"e2", "t1"}, uids(t, got[DefaultClass]))

	total := 0
	for _, cal := range got {
		total += len(cal.Components)
	}
	assert.Equal(t, len(src.Components), total)
}

func TestFinalizeSkipsEmptyDefault(t *testing.T) {
	src := parse(t, crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:x",
		"BEGIN:VEVENT",
		"UID:only",
		"SUMMARY:Lecture [PHY9]",
		"END:VEVENT",
		"END:VCALENDAR",
	))
	got := splitAll(t, src, testOpts)

	require.Len(t, got, 1)
	assert.Contains(t, got, "PHY9")
	assert.NotContains(t, got, DefaultClass)
}

func TestFinalizeNothingToEmit(t *testing.T) {
	cs := New(nil, testOpts)
	calls := 0
	require.NoError(t, cs.Finalize(func(string, *ical.Calendar) error {
		calls++
		return nil
	}))
	assert.Zero(t, calls)
}

func TestFinalizeFailFast(t *testing.T) {
	src := parse(t, sourceCalendar)
	cs := New(src.CalendarProperties, testOpts)
	for _, c := range src.Components {
		require.NoError(t, cs.Insert(classify.Route(c), c))
	}

	boom := errors.New("file exists")
	var seen []string
	err := cs.Finalize(func(code string, _ *ical.Calendar) error {
		seen = append(seen, code)
		if len(seen) == 2 {
			return boom
		}
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), seen[1])
	assert.Len(t, seen, 2, "remaining groups must not be emitted")
}

func TestClassesSingleUse(t *testing.T) {
	cs := New(nil, testOpts)
	require.NoError(t, cs.Finalize(func(string, *ical.Calendar) error { return nil }))

	src := parse(t, sourceCalendar)
	assert.ErrorIs(t, cs.Insert("X", src.Components[0]), ErrFinalized)
	assert.ErrorIs(t, cs.Finalize(func(string, *ical.Calendar) error { return nil }), ErrFinalized)
	_, err := cs.Groups()
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestGroups(t *testing.T) {
	src := parse(t, sourceCalendar)
	cs := New(src.CalendarProperties, testOpts)

	groups, err := cs.Groups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, DefaultClass, groups[0].Class)
	assert.Empty(t, groups[0].Components)

	for _, c := range src.Components {
		require.NoError(t, cs.Insert(classify.Route(c), c))
	}
	groups, err = cs.Groups()
	require.NoError(t, err)

	var classes []string
	for _, g := range groups {
		classes = append(classes, g.Class)
	}
	assert.Equal(t, []string{"2025FallC-X-CSE360-77646", "MATH101", DefaultClass}, classes)

	// mutating the view leaves the grouper untouched
	groups[1].Components[0] = nil
	again, err := cs.Groups()
	require.NoError(t, err)
	assert.NotNil(t, again[1].Components[0])
}

func TestFinalizeHeaderAndSerialization(t *testing.T) {
	src := parse(t, sourceCalendar)
	got := splitAll(t, src, testOpts)

	text := got["MATH101"].Serialize()
	assert.Contains(t, text, "X-WR-CALNAME:MATH101")
	assert.Contains(t, text, "X-WR-CALDESC:Calendar events for MATH101")
	assert.Contains(t, text, "PRODID:-//calsplit test//EN")
	assert.Contains(t, text, "CALSCALE:GREGORIAN")
	assert.Contains(t, text, "SUMMARY:A [MATH101]")
	assert.NotContains(t, text, "Office Hours")
	assert.Less(t, strings.Index(text, "UID:e1"), strings.Index(text, "UID:e4"))

	// source header is untouched
	assert.Equal(t, "Original", src.CalendarProperties[2].Value)
}

func TestFinalizeIncludeTimezones(t *testing.T) {
	src := parse(t, crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:x",
		"BEGIN:VTIMEZONE",
		"TZID:America/Phoenix",
		"BEGIN:STANDARD",
		"DTSTART:19700101T000000",
		"TZOFFSETFROM:-0700",
		"TZOFFSETTO:-0700",
		"END:STANDARD",
		"END:VTIMEZONE",
		"BEGIN:VEVENT",
		"UID:e1",
		"SUMMARY:Lab [CSE360]",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	without := splitAll(t, src, testOpts)
	assert.Equal(t, []string{"e1"}, uids(t, without["CSE360"]))
	assert.Equal(t, []string{"America/Phoenix"}, uids(t, without[DefaultClass]))

	opts := testOpts
	opts.IncludeTimezones = true
	with := splitAll(t, src, opts)
	assert.Equal(t, []string{"America/Phoenix", "e1"}, uids(t, with["CSE360"]))
	assert.Equal(t, []string{"America/Phoenix"}, uids(t, with[DefaultClass]))
}

func TestBuildMatchesManualInsert(t *testing.T) {
	src := parse(t, sourceCalendar)

	built, err := Build(src, testOpts).Groups()
	require.NoError(t, err)

	manual := New(src.CalendarProperties, testOpts)
	for _, c := range src.Components {
		require.NoError(t, manual.Insert(classify.Route(c), c))
	}
	want, err := manual.Groups()
	require.NoError(t, err)

	assert.Equal(t, want, built)
}

func TestFinalizeZeroOptionsSerializeDefaults(t *testing.T) {
	got := splitAll(t, parse(t, sourceCalendar), HeaderOptions{})

	text := got["MATH101"].Serialize()
	assert.Contains(t, text, "PRODID:"+DefaultProductID)
	assert.Contains(t, text, "X-WR-CALDESC:Calendar events for MATH101")
}
