package split

import (
	"strings"

	ical "github.com/arran4/golang-ical"
)

// Header keys that are rewritten per class. The X-WR-* names are spelled
// out since they are vendor extensions rather than RFC 5545 properties.
const (
	keyProductID   = ical.PropertyProductId
	keyCalName     = ical.Property("X-WR-CALNAME")
	keyDescription = ical.Property("X-WR-CALDESC")
)

// ClassPlaceholder is substituted with the class identifier in
// HeaderOptions.DescriptionTemplate.
const ClassPlaceholder = "{class}"

// Values used when the corresponding HeaderOptions field is empty.
const (
	DefaultProductID           = "-//calsplit//Calendar Split//EN"
	DefaultDescriptionTemplate = "Calendar events for " + ClassPlaceholder
)

// HeaderOptions controls how the source header is rewritten for each class.
type HeaderOptions struct {
	// ProductID is the PRODID value of every split calendar.
	// Empty means DefaultProductID.
	ProductID string
	// DescriptionTemplate is the X-WR-CALDESC value; ClassPlaceholder is
	// replaced with the class identifier. Empty means
	// DefaultDescriptionTemplate.
	DescriptionTemplate string
	// IncludeTimezones copies default-bucket VTIMEZONE components into every
	// class calendar.
	IncludeTimezones bool
}

// RewriteHeader returns a copy of template for the given class. PRODID,
// X-WR-CALNAME and X-WR-CALDESC get new values; every other property is
// copied unchanged. Count and order always match template.
func RewriteHeader(code string, template []ical.CalendarProperty, opts HeaderOptions) []ical.CalendarProperty {
	opts = opts.withDefaults()
	out := make([]ical.CalendarProperty, 0, len(template))
	for _, p := range template {
		switch ical.Property(strings.ToUpper(p.IANAToken)) {
		case keyProductID:
			out = append(out, newProperty(p.IANAToken, opts.ProductID))
		case keyCalName:
			out = append(out, newProperty(p.IANAToken, code))
		case keyDescription:
			out = append(out, newProperty(p.IANAToken, strings.ReplaceAll(opts.DescriptionTemplate, ClassPlaceholder, code)))
		default:
			out = append(out, cloneProperty(p))
		}
	}
	return out
}

func (o HeaderOptions) withDefaults() HeaderOptions {
	if o.ProductID == "" {
		o.ProductID = DefaultProductID
	}
	if o.DescriptionTemplate == "" {
		o.DescriptionTemplate = DefaultDescriptionTemplate
	}
	return o
}

func newProperty(key, value string) ical.CalendarProperty {
	return ical.CalendarProperty{
		BaseProperty: ical.BaseProperty{
			IANAToken:      key,
			ICalParameters: map[string][]string{},
			Value:          value,
		},
	}
}

// cloneProperty copies p so that output calendars never share parameter
// maps with the template.
func cloneProperty(p ical.CalendarProperty) ical.CalendarProperty {
	if p.ICalParameters == nil {
		return p
	}
	params := make(map[string][]string, len(p.ICalParameters))
	for k, v := range p.ICalParameters {
		params[k] = append([]string(nil), v...)
	}
	p.ICalParameters = params
	return p
}
