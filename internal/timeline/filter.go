package timeline

import "time"

// Filter decides whether a single instant passes the current timeline
// selection.
type Filter interface {
	Contains(t time.Time) bool
}

// Range is the dual-handle selection. Both ends are inclusive.
type Range struct {
	Min time.Time `json:"selectedMin"`
	Max time.Time `json:"selectedMax"`
}

// Contains reports whether t lies in [Min, Max].
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Min) && !t.After(r.Max)
}

// Cursor is the legacy single-handle selection: everything on or after At.
type Cursor struct {
	At time.Time `json:"selectedCursor"`
}

// Contains reports whether t is on or after the cursor.
func (c Cursor) Contains(t time.Time) bool {
	return !t.Before(c.At)
}

// Passes applies f to a feature's parsed dates. Dateless features always
// pass, and so does everything when no filter is set.
func Passes(f Filter, dates []time.Time) bool {
	if f == nil || len(dates) == 0 {
		return true
	}
	for _, d := range dates {
		if f.Contains(d) {
			return true
		}
	}
	return false
}
