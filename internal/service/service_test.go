package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func pointRecord(id, item int64, typeID *int64, dates ...string) FeatureRecord {
	return FeatureRecord{ID: id, ItemID: item, Geometry: geojson.NewGeometry(orb.Point{float64(id), 1}), TypeID: typeID, Dates: dates}
}

func TestTypeServiceCRUD(t *testing.T) {
	dir := t.TempDir()
	bus := NewEventBus()
	events := bus.Subscribe()
	svc := NewTypeService(dir, bus, nil)

	church, err := svc.Create("Church", "#FF0000")
	require.NoError(t, err)
	assert.Equal(t, int64(1), church.ID)
	assert.Equal(t, "#ff0000", church.Color)
	assert.Equal(t, Event{Resource: ResourceTypes, Action: "created", ID: 1}, <-events)

	_, err = svc.Create("Chapel", "#ff0000")
	assert.ErrorIs(t, err, ErrDuplicateColor)
	_, err = svc.Create("", "#00ff00")
	assert.ErrorIs(t, err, ErrMissingData)
	_, err = svc.Create("Mill", "")
	assert.ErrorIs(t, err, ErrMissingData)

	mill, err := svc.Create("Mill", "#00FF00")
	require.NoError(t, err)

	_, err = svc.Update(mill.ID, "", "#FF0000")
	assert.ErrorIs(t, err, ErrDuplicateColor)
	// Re-saving a type's own colour is not a collision.
	_, err = svc.Update(church.ID, "", "#FF0000")
	require.NoError(t, err)
	updated, err := svc.Update(mill.ID, "Watermill", "#0000ff")
	require.NoError(t, err)
	assert.Equal(t, "Watermill", updated.Label)
	_, err = svc.Update(99, "", "#123456")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(99), ErrNotFound)
	require.NoError(t, svc.Delete(church.ID))

	reloaded := NewTypeService(dir, nil, nil)
	assert.Equal(t, []FeatureType{{ID: 2, Label: "Watermill", Color: "#0000ff"}}, reloaded.List())
	next, err := reloaded.Create("Bridge", "#abcdef")
	require.NoError(t, err)
	assert.Equal(t, int64(3), next.ID)
}

func TestTypeServiceListOrder(t *testing.T) {
	svc := NewTypeService(t.TempDir(), nil, nil)
	_, _ = svc.Create("mill", "#000001")
	_, _ = svc.Create("Abbey", "#000002")
	_, _ = svc.Create("church", "#000003")

	var labels []string
	for _, ft := range svc.List() {
		labels = append(labels, ft.Label)
	}
	assert.Equal(t, []string{"Abbey", "church", "mill"}, labels)
}

func TestFileFeatureStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileFeatureStore(dir, nil, nil)

	for i := int64(1); i <= 5; i++ {
		var typeID *int64
		if i%2 == 0 {
			typeID = ptr(7)
		}
		_, err := store.Put(ctx, pointRecord(i, 100+i%2, typeID))
		require.NoError(t, err)
	}
	created, err := store.Put(ctx, FeatureRecord{ItemID: 1, Geometry: geojson.NewGeometry(orb.Point{0, 0})})
	require.NoError(t, err)
	assert.Equal(t, int64(6), created.ID)

	_, err = store.Put(ctx, FeatureRecord{ItemID: 1})
	assert.ErrorIs(t, err, ErrMissingData)

	page, err := store.Search(ctx, FeatureQuery{Page: 2, PerPage: 4})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(5), page[0].ID)

	empty, err := store.Search(ctx, FeatureQuery{Page: 3, PerPage: 4})
	require.NoError(t, err)
	assert.Empty(t, empty)

	typed, err := store.Search(ctx, FeatureQuery{TypeIDs: []int64{7}})
	require.NoError(t, err)
	assert.Len(t, typed, 2)

	n, err := store.Count(ctx, FeatureQuery{ItemIDs: []int64{101}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	cleared, err := store.ClearType(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	require.NoError(t, store.Delete(ctx, 1))
	assert.ErrorIs(t, store.Delete(ctx, 1), ErrNotFound)
	_, err = store.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	reloaded := NewFileFeatureStore(dir, nil, nil)
	n, err = reloaded.Count(ctx, FeatureQuery{})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	f, err := reloaded.Get(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, f.TypeID)
	assert.Equal(t, orb.Point{2, 1}, f.Geometry.Geometry())
}

func TestParseFeatureQuery(t *testing.T) {
	q, err := ParseFeatureQuery(`{"id":[1,"2"]}`, `{"type_id":3,"item_id":"4","id":[9]}`, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 4}, q.ItemIDs)
	assert.Equal(t, []int64{3}, q.TypeIDs)
	assert.Equal(t, []int64{9}, q.IDs)
	assert.Equal(t, 50, q.Offset())

	q, err = ParseFeatureQuery("", "{}", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, q.ItemIDs)
	assert.Zero(t, q.Offset())

	_, err = ParseFeatureQuery("{", "", 1, 10)
	assert.Error(t, err)
	_, err = ParseFeatureQuery("", `{"type_id":{"a":1}}`, 1, 10)
	assert.Error(t, err)
	_, err = ParseFeatureQuery(`{"id":"x"}`, "", 1, 10)
	assert.Error(t, err)
}

func TestParseFeatureQueryFromEncodedFilters(t *testing.T) {
	items, err := sonic.MarshalString(map[string]any{"item_id": []int64{7, 8}})
	require.NoError(t, err)
	features, err := sonic.MarshalString(map[string]any{"type_id": []string{"2"}})
	require.NoError(t, err)

	q, err := ParseFeatureQuery(items, features, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, q.ItemIDs)
	assert.Equal(t, []int64{2}, q.TypeIDs)

	q, err = ParseFeatureQuery("null", " ", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, q.ItemIDs)
	assert.Empty(t, q.TypeIDs)
}

func TestFeatureRows(t *testing.T) {
	ctx := context.Background()
	types := NewTypeService(t.TempDir(), nil, nil)
	church, err := types.Create("Church", "#aa0000")
	require.NoError(t, err)

	store := NewFileFeatureStore(t.TempDir(), nil, nil)
	typed := pointRecord(1, 10, ptr(church.ID), "1850")
	typed.MarkerColor = "#00ff00"
	_, err = store.Put(ctx, typed)
	require.NoError(t, err)
	plain := pointRecord(2, 10, nil)
	plain.MarkerColor = "#00ff00"
	_, err = store.Put(ctx, plain)
	require.NoError(t, err)
	_, err = store.Put(ctx, pointRecord(3, 11, ptr(99)))
	require.NoError(t, err)

	rows, err := FeatureRows(ctx, store, types, FeatureQuery{Page: 1, PerPage: DefaultPerPage})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "#aa0000", rows[0][3])
	assert.Equal(t, church.ID, rows[0][4])
	assert.Equal(t, []string{"1850"}, rows[0][5])
	assert.Equal(t, "#00ff00", rows[1][3])
	assert.Nil(t, rows[1][4])
	assert.Equal(t, []string{}, rows[1][5])
	// A dangling type ID renders as untyped.
	assert.Nil(t, rows[2][3])
	assert.Nil(t, rows[2][4])
}

func TestSourceImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sources := NewSourceService(dir)
	require.NoError(t, os.MkdirAll(sources.SourcesDir(), 0755))
	geo := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"item_id":5,"title":"Mill","dates":["1850",1901],"type_id":"2"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[3,4]},"properties":{"item_id":"6","date":"2001-02-03","marker_color":"#ABCDEF"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[5,6]},"properties":{"title":"orphan"}}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(sources.SourcesDir(), "mills.geojson"), []byte(geo), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sources.SourcesDir(), "notes.txt"), []byte("x"), 0644))

	files, err := sources.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "mills.geojson", files[0].Name)

	store := NewFileFeatureStore(dir, nil, nil)
	res, err := sources.Import(ctx, "mills.geojson", store)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{File: "mills.geojson", Imported: 2, Skipped: 1}, res)

	all, err := store.Search(ctx, FeatureQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"1850", "1901"}, all[0].Dates)
	assert.Equal(t, int64(2), *all[0].TypeID)
	assert.Equal(t, "Mill", all[0].Title)
	assert.Equal(t, []string{"2001-02-03"}, all[1].Dates)
	assert.Equal(t, "#abcdef", all[1].MarkerColor)

	_, err = sources.Import(ctx, "missing.geojson", store)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = sources.Import(ctx, "../etc/passwd", store)
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	assert.Equal(t, 1, bus.Subscribers())
	bus.Publish(Event{Resource: ResourceFeatures, Action: "deleted", ID: 3})
	assert.Equal(t, int64(3), (<-ch).ID)
	bus.Unsubscribe(ch)
	bus.Unsubscribe(ch)
	assert.Zero(t, bus.Subscribers())

	var nilBus *EventBus
	nilBus.Publish(Event{})
}
