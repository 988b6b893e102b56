package viewer

import (
	"github.com/joeblew999/plat-mapping/internal/mapview"
	"github.com/joeblew999/plat-mapping/internal/timeline"
)

// RangeState is the range slider read-out.
type RangeState struct {
	Visible    bool             `json:"visible"`
	MinPercent float64          `json:"minPercent"`
	MaxPercent float64          `json:"maxPercent"`
	DisplayMin string           `json:"displayMin"`
	DisplayMax string           `json:"displayMax"`
	Labels     []timeline.Label `json:"labels,omitempty"`
}

// CursorState is the cursor slider read-out.
type CursorState struct {
	Visible  bool            `json:"visible"`
	Disabled bool            `json:"disabled"`
	Label    string          `json:"label"`
	Summary  string          `json:"summary"`
	Ticks    []timeline.Tick `json:"ticks,omitempty"`
}

// State is a snapshot of everything the presentation layer renders.
type State struct {
	Loaded   bool                  `json:"loaded"`
	Mode     string                `json:"mode"`
	Layers   int                   `json:"layers"`
	Visible  []int64               `json:"visible"`
	Rendered []int64               `json:"rendered"`
	Popup    int64                 `json:"popup,omitempty"`
	Legend   []mapview.LegendEntry `json:"legend,omitempty"`
	Range    *RangeState           `json:"range,omitempty"`
	Cursor   *CursorState          `json:"cursor,omitempty"`
}

// Snapshot returns the current page state.
func (v *Viewer) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := State{
		Mode:     v.ctx.Mode().String(),
		Layers:   len(v.ctx.Layers()),
		Visible:  v.ctx.VisibleIDs(),
		Rendered: v.ctx.Rendered(),
		Legend:   v.ctx.Legend.Entries(),
	}
	select {
	case <-v.ready:
		st.Loaded = true
	default:
	}
	if p := v.ctx.Map.Popup(); p != nil {
		st.Popup = p.FeatureID
	}

	switch v.opts.Timeline {
	case RangeTimeline:
		minPct, maxPct := v.slider.Percents()
		st.Range = &RangeState{
			Visible:    v.slider.Visible(),
			MinPercent: minPct,
			MaxPercent: maxPct,
			DisplayMin: v.slider.DisplayMin(),
			DisplayMax: v.slider.DisplayMax(),
			Labels:     v.slider.Labels(),
		}
	case CursorTimeline:
		st.Cursor = &CursorState{
			Visible:  v.cursor.Visible(),
			Disabled: v.cursor.Disabled(),
			Label:    v.cursor.Label(),
			Summary:  v.cursor.Summary(),
			Ticks:    v.cursor.Ticks(),
		}
	}
	return st
}

// Index returns the date index built after loading.
func (v *Viewer) Index() timeline.Index {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.index
}

// PopupHTML returns the fragment of the open popup, or "".
func (v *Viewer) PopupHTML() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ctx.Map.Popup() == nil {
		return ""
	}
	return v.popupHTML
}
