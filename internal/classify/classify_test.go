package classify

import (
	"strings"
	"testing"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestExtractClassCode(t *testing.T) {
	tests := []struct {
		name    string
		summary *string
		want    string
		wantOK  bool
	}{
		{"nil summary", nil, "", false},
		{"canvas exam", strPtr("Final Exam [2025FallC-X-CSE360-77646]"), "2025FallC-X-CSE360-77646", true},
		{"no brackets", strPtr("Office Hours"), "", false},
		{"only open", strPtr("Quiz [MATH101"), "", false},
		{"only close", strPtr("Quiz MATH101]"), "", false},
		{"close before open", strPtr("x] then [y"), "", false},
		{"close before open with later close", strPtr("a]b[c]"), "", false},
		{"internal whitespace kept", strPtr("Lab [ CSE 360 ]"), " CSE 360 ", true},
		{"empty brackets", strPtr("Meeting []"), "", true},
		{"first pair wins", strPtr("[A] and [B]"), "A", true},
		{"nested open uses first", strPtr("[[X]]"), "[X", true},
		{"case preserved", strPtr("hw [math101]"), "math101", true},
		{"leading text", strPtr("prefix [CODE] suffix"), "CODE", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractClassCode(tt.summary)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractClassCodeIgnoresSurroundingText(t *testing.T) {
	for _, prefix := range []string{"", "Exam ", "Lecture 3: ", "(x) "} {
		for _, suffix := range []string{"", " room 204", " [other]", "]"} {
			s := prefix + "[ID-1]" + suffix
			got, ok := ExtractClassCode(&s)
			require.True(t, ok, s)
			assert.Equal(t, "ID-1", got, s)
		}
	}

	for _, prefix := range []string{"]", "Exam ] ", "a]b"} {
		s := prefix + "[ID-1]"
		_, ok := ExtractClassCode(&s)
		assert.False(t, ok, s)
	}
}

const mixedCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:1\r\n" +
	"SUMMARY:Final Exam [2025FallC-X-CSE360-77646]\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:2\r\n" +
	"SUMMARY:Office Hours\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:3\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VTODO\r\n" +
	"UID:4\r\n" +
	"SUMMARY:Homework [MATH101]\r\n" +
	"END:VTODO\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:5\r\n" +
	"SUMMARY:Trick [no_associated_class]\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestRoute(t *testing.T) {
	cal, err := ical.ParseCalendar(strings.NewReader(mixedCalendar))
	require.NoError(t, err)
	require.Len(t, cal.Components, 5)

	got := make([]string, 0, len(cal.Components))
	for _, c := range cal.Components {
		got = append(got, Route(c))
	}

	assert.Equal(t, []string{
		"2025FallC-X-CSE360-77646",
		DefaultClass, // no brackets
		DefaultClass, // no SUMMARY
		DefaultClass, // VTODO never classified
		DefaultClass, // reserved identifier merges into the default bucket
	}, got)
}

func TestSummary(t *testing.T) {
	cal, err := ical.ParseCalendar(strings.NewReader(mixedCalendar))
	require.NoError(t, err)

	s := Summary(cal.Components[0])
	require.NotNil(t, s)
	assert.Equal(t, "Final Exam [2025FallC-X-CSE360-77646]", *s)

	assert.Nil(t, Summary(cal.Components[2]), "event without SUMMARY")
	assert.Nil(t, Summary(cal.Components[3]), "todo is not an event")
}
