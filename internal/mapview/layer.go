// Package mapview is a headless model of the public map: the layers built
// from loaded features, the clustering aggregator and the flat map they are
// rendered into, and the controllers that keep both in step with the
// timeline and legend filters.
package mapview

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/plat-mapping/internal/timeline"
)

// Colours used for feature styling.
const (
	DefaultMarkerColor = "#3498db"
	HighlightColor     = "#9fc6fc"
	RestingPolyColor   = "#3388ff"
)

// ErrUnsupportedGeometry is returned for geometries the map cannot place.
var ErrUnsupportedGeometry = errors.New("mapview: unsupported geometry")

// Kind is the rendering family of a layer.
type Kind int

const (
	KindPoint Kind = iota
	KindLine
	KindPolygon
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	default:
		return "polygon"
	}
}

// Style is the vector style applied to lines and polygons.
type Style struct {
	Color       string  `json:"color"`
	FillColor   string  `json:"fillColor"`
	Weight      float64 `json:"weight"`
	FillOpacity float64 `json:"fillOpacity"`
}

// Layer is one renderable feature. Everything except Style is fixed for the
// lifetime of a page load.
type Layer struct {
	FeatureID  int64
	ResourceID int64
	Geometry   orb.Geometry
	Kind       Kind
	Color      string
	TypeID     string
	RawDates   []string
	Dates      []time.Time
	Style      Style
}

// LayerSpec is what a loader knows about a feature before it becomes a layer.
type LayerSpec struct {
	FeatureID  int64
	ResourceID int64
	Geometry   orb.Geometry
	Color      string
	TypeID     string
	Dates      []string
}

// NewLayer builds a layer, parsing its dates once with p.
func NewLayer(spec LayerSpec, p *timeline.Parser) (*Layer, error) {
	kind, err := kindOf(spec.Geometry)
	if err != nil {
		return nil, fmt.Errorf("feature %d: %w", spec.FeatureID, err)
	}
	if p == nil {
		p = timeline.DefaultParser
	}
	color := spec.Color
	if color == "" {
		color = DefaultMarkerColor
	}
	return &Layer{
		FeatureID:  spec.FeatureID,
		ResourceID: spec.ResourceID,
		Geometry:   spec.Geometry,
		Kind:       kind,
		Color:      color,
		TypeID:     spec.TypeID,
		RawDates:   spec.Dates,
		Dates:      p.ParseAll(spec.Dates),
		Style: Style{
			Color:       color,
			FillColor:   color,
			Weight:      2,
			FillOpacity: 0.4,
		},
	}, nil
}

func kindOf(g orb.Geometry) (Kind, error) {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return KindPoint, nil
	case orb.LineString, orb.MultiLineString:
		return KindLine, nil
	case orb.Polygon, orb.MultiPolygon, orb.Ring:
		return KindPolygon, nil
	case nil:
		return 0, fmt.Errorf("%w: missing geometry", ErrUnsupportedGeometry)
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType())
}

// DateStrings implements timeline.Dated.
func (l *Layer) DateStrings() []string { return l.RawDates }

// Dateless reports whether none of the layer's dates parsed.
func (l *Layer) Dateless() bool { return len(l.Dates) == 0 }

// Bound returns the geometry's bounding box.
func (l *Layer) Bound() orb.Bound { return l.Geometry.Bound() }

// Anchor is where the layer's marker sits when collapsed into a cluster:
// the point itself, or the centroid of a line or polygon.
func (l *Layer) Anchor() orb.Point {
	if p, ok := l.Geometry.(orb.Point); ok {
		return p
	}
	c, _ := planar.CentroidArea(l.Geometry)
	return c
}

// PinIcon returns the SVG marker for point layers as a data URL.
func (l *Layer) PinIcon() string {
	return "data:image/svg+xml;utf8," + url.PathEscape(PinSVG(l.Color))
}

// PinSVG renders the map pin in color.
func PinSVG(color string) string {
	return `<svg viewBox="0 0 24 24" xmlns="http://www.w3.org/2000/svg" fill="` + color +
		`" width="24" height="24" aria-hidden="true"><path d="M12 1.1a6.847 6.847 0 0 0-6.9 6.932c0 3.882 3.789 9.01 6.9 14.968 3.111-5.957 6.9-11.086 6.9-14.968A6.847 6.847 0 0 0 12 1.1zm0 9.9a3 3 0 1 1 3-3 3 3 0 0 1-3 3z"/></svg>`
}
