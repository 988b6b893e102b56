package mapview

import (
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapping/internal/event"
	"github.com/joeblew999/plat-mapping/internal/timeline"
)

// Mode is the active rendering mode.
type Mode int

const (
	Aggregated Mode = iota
	Flat
)

func (m Mode) String() string {
	if m == Flat {
		return "flat"
	}
	return "aggregated"
}

// VisibilityChange is published for every layer whose visibility flips.
type VisibilityChange struct {
	FeatureID int64 `json:"featureId"`
	Visible   bool  `json:"visible"`
}

// Options configures a Context.
type Options struct {
	// DisableClustering draws every marker separately in aggregated mode.
	DisableClustering bool
	// CollapseBelowZoom is the zoom under which polygons collapse into
	// cluster markers. Zero means 10.
	CollapseBelowZoom int
	// WithoutAggregator leaves the aggregator uninitialized; the map then
	// only works in flat mode.
	WithoutAggregator bool
	Logger            *slog.Logger
}

// Context is the page state shared by the map view components: every
// loaded layer with its metadata, both rendering containers, the canonical
// visibility set and the active filters. It is owned by the page
// controller and handed to each controller; it is not safe for concurrent
// use.
type Context struct {
	Map        *Map
	Aggregator *Aggregator
	Legend     *Legend

	mode       Mode
	layers     []*Layer
	byID       map[int64]*Layer
	byResource map[int64][]*Layer
	visible    map[int64]bool
	filter     timeline.Filter

	modeChanges       event.Topic[Mode]
	visibilityChanges event.Topic[VisibilityChange]
	logger            *slog.Logger
}

// NewContext creates an empty map context in aggregated mode.
func NewContext(opts Options) *Context {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	collapse := opts.CollapseBelowZoom
	if collapse == 0 {
		collapse = 10
	}

	c := &Context{
		Map:        NewMap(),
		Legend:     NewLegend(nil),
		byID:       make(map[int64]*Layer),
		byResource: make(map[int64][]*Layer),
		visible:    make(map[int64]bool),
		logger:     logger,
	}
	if opts.WithoutAggregator {
		c.mode = Flat
	} else {
		c.Aggregator = NewAggregator(collapse, opts.DisableClustering)
		c.Map.AttachAggregator()
	}
	return c
}

// Mode returns the active rendering mode.
func (c *Context) Mode() Mode { return c.mode }

// OnModeChange subscribes to rendering mode switches.
func (c *Context) OnModeChange(fn func(Mode)) (unsubscribe func()) {
	return c.modeChanges.Subscribe(fn)
}

// OnVisibilityChange subscribes to per-layer visibility flips.
func (c *Context) OnVisibilityChange(fn func(VisibilityChange)) (unsubscribe func()) {
	return c.visibilityChanges.Subscribe(fn)
}

// AddLayer registers a freshly loaded layer and places it in the container
// for the active mode, honouring whatever filters are already set.
func (c *Context) AddLayer(l *Layer) {
	if _, dup := c.byID[l.FeatureID]; dup {
		return
	}
	c.layers = append(c.layers, l)
	c.byID[l.FeatureID] = l
	c.byResource[l.ResourceID] = append(c.byResource[l.ResourceID], l)
	c.setVisible(l, c.shouldShow(l))
}

// Layers returns every loaded layer in load order.
func (c *Context) Layers() []*Layer { return c.layers }

// Layer looks up a layer by feature ID.
func (c *Context) Layer(id int64) (*Layer, bool) {
	l, ok := c.byID[id]
	return l, ok
}

// ByResource returns the layers of one owning resource.
func (c *Context) ByResource(resourceID int64) []*Layer {
	return c.byResource[resourceID]
}

// Visible reports the canonical visibility of a layer.
func (c *Context) Visible(id int64) bool { return c.visible[id] }

// VisibleIDs returns the canonically visible feature IDs in load order.
func (c *Context) VisibleIDs() []int64 {
	var ids []int64
	for _, l := range c.layers {
		if c.visible[l.FeatureID] {
			ids = append(ids, l.FeatureID)
		}
	}
	return ids
}

// Filter returns the active timeline filter.
func (c *Context) Filter() timeline.Filter { return c.filter }

// Rendered returns the feature IDs actually drawn on the map: the
// aggregator's members while it is attached, plus direct members.
func (c *Context) Rendered() []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	add := func(list []int64) {
		for _, id := range list {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	if c.Aggregator != nil && c.Map.AggregatorAttached() {
		add(c.Aggregator.IDs())
	}
	add(c.Map.DirectIDs())
	return ids
}

// Bounds returns the union of every layer's bounds. ok is false with no
// layers loaded.
func (c *Context) Bounds() (b orb.Bound, ok bool) {
	for i, l := range c.layers {
		if i == 0 {
			b = l.Bound()
			continue
		}
		b = b.Union(l.Bound())
	}
	return b, len(c.layers) > 0
}

func (c *Context) shouldShow(l *Layer) bool {
	return timeline.Passes(c.filter, l.Dates) && c.Legend.Allows(l.TypeID)
}

// setVisible records show as l's canonical visibility and reconciles its
// membership. The aggregator is kept in step in both modes so switching
// modes never needs a re-filter; the map's direct membership is only
// touched in flat mode. It returns the number of membership mutations.
func (c *Context) setVisible(l *Layer, show bool) int {
	prev, known := c.visible[l.FeatureID]
	c.visible[l.FeatureID] = show

	var n int
	if c.Aggregator != nil {
		g := c.Aggregator.GroupFor(l)
		if show && g.Add(l) {
			n++
		} else if !show && g.Remove(l) {
			n++
		}
	}
	if c.mode == Flat {
		if show && c.Map.AddLayer(l) {
			n++
		} else if !show && c.Map.RemoveLayer(l) {
			n++
		}
	}

	if !show && c.Map.Popup() == l {
		c.Map.ClosePopup()
	}
	if !known || prev != show {
		c.visibilityChanges.Publish(VisibilityChange{FeatureID: l.FeatureID, Visible: show})
	}
	return n
}
