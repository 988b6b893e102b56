// Package loader fetches map features from the features endpoint one page
// at a time and fetches popup fragments for single features.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-mapping/internal/mapview"
)

// ErrMalformedRow is returned for rows that cannot be turned into a feature.
var ErrMalformedRow = errors.New("loader: malformed feature row")

// Feature is one row of a features page:
// [featureId, resourceId, geometry, color|null, typeId|null, dates].
type Feature struct {
	ID         int64        `json:"id"`
	ResourceID int64        `json:"resourceId"`
	Geometry   orb.Geometry `json:"-"`
	Color      string       `json:"color,omitempty"`
	TypeID     string       `json:"typeId,omitempty"`
	Dates      []string     `json:"dates"`
}

// DateStrings implements timeline.Dated.
func (f Feature) DateStrings() []string { return f.Dates }

// LayerSpec converts the row into what mapview needs to build a layer.
func (f Feature) LayerSpec() mapview.LayerSpec {
	return mapview.LayerSpec{
		FeatureID:  f.ID,
		ResourceID: f.ResourceID,
		Geometry:   f.Geometry,
		Color:      f.Color,
		TypeID:     f.TypeID,
		Dates:      f.Dates,
	}
}

// DecodeRow decodes a single positional row.
func DecodeRow(raw []byte) (Feature, error) {
	var cols []json.RawMessage
	if err := sonic.Unmarshal(raw, &cols); err != nil {
		return Feature{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	if len(cols) < 3 {
		return Feature{}, fmt.Errorf("%w: %d columns", ErrMalformedRow, len(cols))
	}

	var f Feature
	if err := sonic.Unmarshal(cols[0], &f.ID); err != nil {
		return Feature{}, fmt.Errorf("%w: feature id: %v", ErrMalformedRow, err)
	}
	if err := sonic.Unmarshal(cols[1], &f.ResourceID); err != nil {
		return Feature{}, fmt.Errorf("%w: resource id: %v", ErrMalformedRow, err)
	}
	g, err := decodeGeometry(cols[2])
	if err != nil {
		return Feature{}, fmt.Errorf("%w: feature %d: %v", ErrMalformedRow, f.ID, err)
	}
	f.Geometry = g

	if len(cols) > 3 && !isNull(cols[3]) {
		if err := sonic.Unmarshal(cols[3], &f.Color); err != nil {
			return Feature{}, fmt.Errorf("%w: feature %d color: %v", ErrMalformedRow, f.ID, err)
		}
	}
	if len(cols) > 4 {
		f.TypeID = scalarString(cols[4])
	}
	if len(cols) > 5 && !isNull(cols[5]) {
		// Dates that are not strings are skipped like any other unparseable date.
		var dates []any
		if err := sonic.Unmarshal(cols[5], &dates); err == nil {
			for _, d := range dates {
				if s, ok := d.(string); ok {
					f.Dates = append(f.Dates, s)
				}
			}
		}
	}
	return f, nil
}

// decodeGeometry accepts a GeoJSON geometry, a Feature wrapping one, or
// either of those encoded as a JSON string.
func decodeGeometry(raw json.RawMessage) (orb.Geometry, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil, errors.New("missing geometry")
	}
	if raw[0] == '"' {
		var s string
		if err := sonic.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		raw = json.RawMessage(s)
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := sonic.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if probe.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, err
		}
		if f.Geometry == nil {
			return nil, errors.New("missing geometry")
		}
		return f.Geometry, nil
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	return g.Geometry(), nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// scalarString renders a numeric or string id as a string; null is "".
func scalarString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := sonic.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := sonic.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}
