package mapview

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Group is a layer container: the flat map's direct membership, or one of
// the two aggregator containers.
type Group struct {
	name    string
	members map[int64]*Layer
}

// NewGroup creates an empty group.
func NewGroup(name string) *Group {
	return &Group{name: name, members: make(map[int64]*Layer)}
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Add inserts l and reports whether membership changed.
func (g *Group) Add(l *Layer) bool {
	if _, ok := g.members[l.FeatureID]; ok {
		return false
	}
	g.members[l.FeatureID] = l
	return true
}

// Remove deletes l and reports whether membership changed.
func (g *Group) Remove(l *Layer) bool {
	if _, ok := g.members[l.FeatureID]; !ok {
		return false
	}
	delete(g.members, l.FeatureID)
	return true
}

// Has reports membership.
func (g *Group) Has(l *Layer) bool {
	_, ok := g.members[l.FeatureID]
	return ok
}

// Len returns the member count.
func (g *Group) Len() int { return len(g.members) }

// IDs returns member feature IDs in ascending order.
func (g *Group) IDs() []int64 {
	ids := make([]int64, 0, len(g.members))
	for id := range g.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Layers returns members ordered by feature ID.
func (g *Group) Layers() []*Layer {
	out := make([]*Layer, 0, len(g.members))
	for _, id := range g.IDs() {
		out = append(out, g.members[id])
	}
	return out
}

// Clear removes every member.
func (g *Group) Clear() { clear(g.members) }

// Cluster is a rendered marker group at a zoom level.
type Cluster struct {
	Center orb.Point `json:"center"`
	Bound  orb.Bound `json:"-"`
	IDs    []int64   `json:"ids"`
}

// Count returns the number of layers in the cluster.
func (c Cluster) Count() int { return len(c.IDs) }

// Aggregator holds the two clustering containers: point markers, and
// polygons/lines that collapse into markers while zoomed out.
type Aggregator struct {
	Points *Group
	Polys  *Group

	// CollapseBelowZoom is the zoom under which polygons are drawn as
	// markers in the point clusters.
	CollapseBelowZoom int
	// Disabled renders every marker on its own instead of clustering.
	Disabled bool
}

// NewAggregator creates empty containers.
func NewAggregator(collapseBelowZoom int, disabled bool) *Aggregator {
	return &Aggregator{
		Points:            NewGroup("points"),
		Polys:             NewGroup("polys"),
		CollapseBelowZoom: collapseBelowZoom,
		Disabled:          disabled,
	}
}

// GroupFor returns the container a layer belongs in.
func (a *Aggregator) GroupFor(l *Layer) *Group {
	if l.Kind == KindPoint {
		return a.Points
	}
	return a.Polys
}

// Has reports whether either container holds l.
func (a *Aggregator) Has(l *Layer) bool {
	return a.GroupFor(l).Has(l)
}

// IDs returns every member of both containers.
func (a *Aggregator) IDs() []int64 {
	ids := append(a.Points.IDs(), a.Polys.IDs()...)
	slices.Sort(ids)
	return ids
}

// Layers returns every member of both containers, ordered by feature ID.
func (a *Aggregator) Layers() []*Layer {
	out := append(a.Points.Layers(), a.Polys.Layers()...)
	slices.SortFunc(out, func(x, y *Layer) int {
		switch {
		case x.FeatureID < y.FeatureID:
			return -1
		case x.FeatureID > y.FeatureID:
			return 1
		}
		return 0
	})
	return out
}

// Render computes what the aggregator draws at zoom: marker clusters, and
// the shapes that are large enough to stay inflated.
func (a *Aggregator) Render(zoom int) (clusters []Cluster, shapes []*Layer) {
	markers := a.Points.Layers()
	for _, l := range a.Polys.Layers() {
		if zoom < a.CollapseBelowZoom {
			markers = append(markers, l)
		} else {
			shapes = append(shapes, l)
		}
	}

	if a.Disabled {
		for _, l := range markers {
			p := l.Anchor()
			clusters = append(clusters, Cluster{Center: p, Bound: p.Bound(), IDs: []int64{l.FeatureID}})
		}
		return clusters, shapes
	}

	// Cells one zoom level deeper than the view are half a tile wide, which
	// approximates the usual 80px cluster radius.
	cellZoom := maptile.Zoom(min(max(zoom+1, 0), 22))
	cells := make(map[maptile.Tile]*Cluster)
	var order []maptile.Tile
	for _, l := range markers {
		p := l.Anchor()
		cell := maptile.At(p, cellZoom)
		c, ok := cells[cell]
		if !ok {
			c = &Cluster{Bound: p.Bound()}
			cells[cell] = c
			order = append(order, cell)
		}
		c.IDs = append(c.IDs, l.FeatureID)
		c.Bound = c.Bound.Extend(p)
		c.Center = orb.Point{
			c.Center[0] + (p[0]-c.Center[0])/float64(len(c.IDs)),
			c.Center[1] + (p[1]-c.Center[1])/float64(len(c.IDs)),
		}
	}
	for _, cell := range order {
		clusters = append(clusters, *cells[cell])
	}
	return clusters, shapes
}
