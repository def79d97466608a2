package model

import "time"

// Occurrence represents a single concrete instance of a classified event
// (after recurrence expansion).
type Occurrence struct {
	Class string // class identifier the event was routed to
	UID   string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the start time.
	InstanceKey string

	Summary  string
	Location string

	AllDay bool

	Start time.Time
	End   time.Time
}

// ClassSummary describes one output group for reporting.
type ClassSummary struct {
	Class string

	// Components counts everything routed to the class; Events only VEVENTs.
	Components int
	Events     int

	// Occurrences is the number of expanded event instances inside the
	// reporting window. First/Last are zero when there are none.
	Occurrences int
	First       time.Time
	Last        time.Time

	// Truncated is set when at least one event hit the expansion cap.
	Truncated bool
}
