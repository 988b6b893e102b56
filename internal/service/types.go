// Package service contains the business logic behind the mapping API:
// feature types, stored features and the queries the map pages run.
package service

import (
	"errors"

	"github.com/paulmach/orb/geojson"
)

// Errors returned by the services. API handlers map them to error codes.
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateColor = errors.New("duplicate color")
	ErrMissingData    = errors.New("missing data")
)

// FeatureType is a category of map features with its legend colour.
// Huma reads the tags for OpenAPI and validation.
type FeatureType struct {
	ID    int64  `json:"id" doc:"Feature type ID" example:"3"`
	Label string `json:"label" minLength:"1" maxLength:"255" doc:"Display label" example:"Church"`
	Color string `json:"color" pattern:"^#[0-9a-fA-F]{3,8}$" doc:"Lower-cased CSS hex colour" example:"#ff0000"`
}

// FeatureRecord is a stored map feature tied to a catalog item.
type FeatureRecord struct {
	ID          int64             `json:"id" doc:"Feature ID" example:"12"`
	ItemID      int64             `json:"itemId" doc:"Owning item (resource) ID" example:"4"`
	Title       string            `json:"title,omitempty" doc:"Owning item title" example:"St Mary's"`
	Label       string            `json:"label,omitempty" doc:"Feature label"`
	Geometry    *geojson.Geometry `json:"geometry" doc:"GeoJSON geometry"`
	MarkerColor string            `json:"markerColor,omitempty" doc:"Marker colour used when the feature has no type" example:"#3498db"`
	TypeID      *int64            `json:"typeId,omitempty" doc:"Feature type ID"`
	Dates       []string          `json:"dates,omitempty" doc:"Raw date values of the owning item" example:"[\"1850\",\"1901-06-01\"]"`
}

// FeatureQuery filters a feature search. Zero values match everything.
type FeatureQuery struct {
	ItemIDs []int64
	TypeIDs []int64
	IDs     []int64
	// Page is 1-based; 0 means no paging.
	Page    int
	PerPage int
}

// DefaultPerPage is the features page size the map loader expects.
const DefaultPerPage = 10000

// Offset returns the row offset for the query's page.
func (q FeatureQuery) Offset() int {
	if q.Page <= 1 || q.PerPage <= 0 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// FeatureRow is the positional row the map loader decodes:
// [featureId, itemId, geometry, color, typeId|null, dates].
type FeatureRow []any

// Row renders f for the features endpoint. A typed feature takes its
// type's colour; otherwise its own marker colour, or null.
func (f FeatureRecord) Row(t *FeatureType) FeatureRow {
	var color any
	if f.MarkerColor != "" {
		color = f.MarkerColor
	}
	var typeID any
	if t != nil {
		color = t.Color
		typeID = t.ID
	}
	dates := f.Dates
	if dates == nil {
		dates = []string{}
	}
	return FeatureRow{f.ID, f.ItemID, f.Geometry, color, typeID, dates}
}
