// Package timeline turns the raw date strings attached to map features into
// comparable instants and drives the timeline sliders that filter them.
//
// Nothing in this package touches layers directly. Sliders emit range or
// cursor changes and the map view decides what to show.
package timeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoPrefix  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	slashDate  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	yearOnly   = regexp.MustCompile(`^\d{4}$`)
	yearMonth  = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	isoLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	// fallbackLayouts covers the free-text forms editors tend to type into a
	// date field. Order matters: the first layout that parses wins.
	fallbackLayouts = []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC850,
		time.ANSIC,
		"January 2, 2006",
		"January 2 2006",
		"Jan 2, 2006",
		"Jan 2 2006",
		"2 January 2006",
		"2 Jan 2006",
		"January 2006",
		"Jan 2006",
		"2006/01/02",
		"2006.01.02",
		"02.01.2006",
	}
)

// ParserOptions configures a Parser.
type ParserOptions struct {
	// Location resolves forms that carry no zone. Defaults to UTC so that a
	// bare "2020" and an ISO "2020-01-01" yield the same instant.
	Location *time.Location
	// MonthFirst reads slash dates as MM/DD/YYYY instead of DD/MM/YYYY.
	MonthFirst bool
}

// Parser normalizes heterogeneous date strings. The zero value is ready to
// use and parses day-first in UTC.
type Parser struct {
	loc        *time.Location
	monthFirst bool
}

// NewParser creates a parser with the given options.
func NewParser(opts ParserOptions) *Parser {
	return &Parser{loc: opts.Location, monthFirst: opts.MonthFirst}
}

// DefaultParser is the day-first UTC parser used when none is supplied.
var DefaultParser = NewParser(ParserOptions{})

// Parse converts raw into an instant. ok is false when nothing matched; an
// unparseable date is an expected outcome, not an error.
func (p *Parser) Parse(raw string) (t time.Time, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	loc := p.location()

	if isoPrefix.MatchString(s) {
		return parseISO(s, loc)
	}

	if m := slashDate.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		day, month := a, b
		if p.monthFirst {
			day, month = b, a
		}
		if day <= 31 && month <= 12 {
			if t, ok := calendarDate(year, month, day, loc); ok {
				return t, true
			}
		}
	}

	if yearOnly.MatchString(s) {
		year, _ := strconv.Atoi(s)
		return time.Date(year, time.January, 1, 0, 0, 0, 0, loc), true
	}

	if m := yearMonth.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc), true
		}
		return time.Time{}, false
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (p *Parser) location() *time.Location {
	if p == nil || p.loc == nil {
		return time.UTC
	}
	return p.loc
}

// parseISO accepts a full ISO-8601 datetime or, failing that, its date prefix.
func parseISO(s string, loc *time.Location) (time.Time, bool) {
	if len(s) == 10 {
		t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
		return t, err == nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	t, err := time.ParseInLocation(time.DateOnly, s[:10], time.UTC)
	return t, err == nil
}

// calendarDate rejects dates like 31/02 that time.Date would roll over.
func calendarDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// ParseDate parses raw with DefaultParser.
func ParseDate(raw string) (time.Time, bool) {
	return DefaultParser.Parse(raw)
}

// ParseAll parses every raw string and drops the ones that fail.
func (p *Parser) ParseAll(raws []string) []time.Time {
	var out []time.Time
	for _, raw := range raws {
		if t, ok := p.Parse(raw); ok {
			out = append(out, t)
		}
	}
	return out
}
