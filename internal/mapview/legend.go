package mapview

// LegendEntry is a feature type shown in the map legend.
type LegendEntry struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Color   string `json:"color"`
	Checked bool   `json:"checked"`
}

// Legend holds the type-filter toggles. With no entries, or with the
// master toggle off, every layer passes. Untyped layers always pass.
type Legend struct {
	enabled bool
	entries []LegendEntry
	checked map[string]bool
}

// NewLegend creates an enabled legend with every entry checked.
func NewLegend(entries []LegendEntry) *Legend {
	lg := &Legend{enabled: true, checked: make(map[string]bool)}
	lg.SetEntries(entries)
	return lg
}

// SetEntries replaces the legend entries; all start checked.
func (lg *Legend) SetEntries(entries []LegendEntry) {
	lg.entries = make([]LegendEntry, len(entries))
	clear(lg.checked)
	for i, e := range entries {
		e.Checked = true
		lg.entries[i] = e
		lg.checked[e.ID] = true
	}
}

// Entries returns the entries with their current checked state.
func (lg *Legend) Entries() []LegendEntry {
	out := make([]LegendEntry, len(lg.entries))
	for i, e := range lg.entries {
		e.Checked = lg.checked[e.ID]
		out[i] = e
	}
	return out
}

// SetChecked toggles a single type and reports whether it changed.
func (lg *Legend) SetChecked(typeID string, checked bool) bool {
	cur, ok := lg.checked[typeID]
	if !ok || cur == checked {
		return false
	}
	lg.checked[typeID] = checked
	return true
}

// SetEnabled flips the master filter toggle and reports whether it changed.
func (lg *Legend) SetEnabled(enabled bool) bool {
	if lg.enabled == enabled {
		return false
	}
	lg.enabled = enabled
	return true
}

// Enabled reports the master toggle.
func (lg *Legend) Enabled() bool { return lg.enabled }

// Allows reports whether a layer of typeID passes the legend.
func (lg *Legend) Allows(typeID string) bool {
	if lg == nil || !lg.enabled || len(lg.entries) == 0 || typeID == "" {
		return true
	}
	return lg.checked[typeID]
}
