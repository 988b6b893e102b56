package mapview

import (
	"github.com/paulmach/orb"
)

// World view used before any features are known.
var (
	WorldCenter = orb.Point{0, 20}
	WorldZoom   = 2
)

// Map is the flat map surface: layers added to it directly, whether the
// aggregator containers are attached, the open popup and the viewport.
type Map struct {
	direct             *Group
	aggregatorAttached bool

	popup *Layer

	center     orb.Point
	zoom       int
	view       orb.Bound
	hasView    bool
	interacted bool
}

// NewMap creates a map centred on the world view.
func NewMap() *Map {
	return &Map{
		direct: NewGroup("map"),
		center: WorldCenter,
		zoom:   WorldZoom,
	}
}

// AddLayer adds l directly to the map.
func (m *Map) AddLayer(l *Layer) bool { return m.direct.Add(l) }

// RemoveLayer removes l from the map.
func (m *Map) RemoveLayer(l *Layer) bool { return m.direct.Remove(l) }

// HasLayer reports direct membership.
func (m *Map) HasLayer(l *Layer) bool { return m.direct.Has(l) }

// DirectIDs returns the feature IDs added directly to the map.
func (m *Map) DirectIDs() []int64 { return m.direct.IDs() }

// DirectLayers returns the layers added directly to the map.
func (m *Map) DirectLayers() []*Layer { return m.direct.Layers() }

// ClearDirect removes every directly added layer.
func (m *Map) ClearDirect() { m.direct.Clear() }

// AttachAggregator puts the clustering containers on the map.
func (m *Map) AttachAggregator() { m.aggregatorAttached = true }

// DetachAggregator takes the clustering containers off the map.
func (m *Map) DetachAggregator() { m.aggregatorAttached = false }

// AggregatorAttached reports whether the containers are on the map.
func (m *Map) AggregatorAttached() bool { return m.aggregatorAttached }

// Popup returns the layer whose popup is open, or nil.
func (m *Map) Popup() *Layer { return m.popup }

// OpenPopup opens l's popup, closing any other. Lines and polygons are
// highlighted and the view fits their bounds.
func (m *Map) OpenPopup(l *Layer) {
	if m.popup != nil && m.popup != l {
		m.ClosePopup()
	}
	m.popup = l
	if l.Kind != KindPoint {
		l.Style.Color = HighlightColor
		m.FitBounds(l.Bound())
	}
}

// ClosePopup closes the open popup, if any, and restores its style.
func (m *Map) ClosePopup() {
	if m.popup == nil {
		return
	}
	if m.popup.Kind != KindPoint {
		m.popup.Style.Color = RestingPolyColor
	}
	m.popup = nil
}

// FitBounds sets the viewport programmatically. It does not count as a
// user interaction.
func (m *Map) FitBounds(b orb.Bound) {
	m.view = b
	m.hasView = true
	m.center = b.Center()
}

// SetView centres the map programmatically.
func (m *Map) SetView(center orb.Point, zoom int) {
	m.center = center
	m.zoom = zoom
	m.hasView = false
}

// Interact records a user zoom or pan.
func (m *Map) Interact(center orb.Point, zoom int) {
	m.center = center
	m.zoom = zoom
	m.hasView = false
	m.interacted = true
}

// Interacted reports whether the user has moved the map.
func (m *Map) Interacted() bool { return m.interacted }

// Center returns the viewport centre.
func (m *Map) Center() orb.Point { return m.center }

// Zoom returns the zoom level.
func (m *Map) Zoom() int { return m.zoom }

// View returns the last fitted bounds.
func (m *Map) View() (orb.Bound, bool) { return m.view, m.hasView }
