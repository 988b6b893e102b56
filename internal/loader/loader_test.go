package loader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pages = map[int]string{
	1: `[
		[1, 10, {"type":"Point","coordinates":[2.35,48.85]}, "#ff0000", 4, ["2020-01-01"]],
		[2, 10, {"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{}}, null, null, ["2022-06-15", 7]]
	]`,
	2: `[
		[3, 11, "{\"type\":\"Polygon\",\"coordinates\":[[[0,0],[1,0],[1,1],[0,0]]]}", "#00ff00", "9", []],
		[4, 12, null, null, null, []],
		"not a row"
	]`,
}

type recorder struct {
	mu    sync.Mutex
	pages []int
}

func (r *recorder) add(page int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, page)
}

func (r *recorder) requested() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.pages)
}

func featureServer(t *testing.T, rec *recorder) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/features", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("features_page"))
		rec.add(page)
		body, ok := pages[page]
		if !ok {
			body = `[]`
		}
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("/popup", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<h3>Feature %s</h3>", r.URL.Query().Get("feature_id"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDecodeRow(t *testing.T) {
	f, err := DecodeRow([]byte(`[5, 6, {"type":"Point","coordinates":[1,2]}, null, 12, ["1999", null]]`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.ID)
	assert.Equal(t, int64(6), f.ResourceID)
	assert.Equal(t, orb.Point{1, 2}, f.Geometry)
	assert.Empty(t, f.Color)
	assert.Equal(t, "12", f.TypeID)
	assert.Equal(t, []string{"1999"}, f.Dates)

	tests := []string{
		`{}`,
		`[1, 2]`,
		`["x", 2, {"type":"Point","coordinates":[1,2]}]`,
		`[1, 2, null]`,
		`[1, 2, {"type":"Feature","geometry":null,"properties":{}}]`,
	}
	for _, raw := range tests {
		_, err := DecodeRow([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedRow, raw)
	}
}

func TestPagesSequential(t *testing.T) {
	rec := &recorder{}
	srv := featureServer(t, rec)
	c := New(Config{FeaturesURL: srv.URL + "/features"})

	var got [][]int64
	for page, err := range c.Pages(context.Background(), Query{}) {
		require.NoError(t, err)
		var ids []int64
		for _, f := range page {
			ids = append(ids, f.ID)
		}
		got = append(got, ids)
	}

	assert.Equal(t, [][]int64{{1, 2}, {3}}, got)
	assert.Equal(t, []int{1, 2, 3}, rec.requested())
}

func TestLoadAll(t *testing.T) {
	rec := &recorder{}
	srv := featureServer(t, rec)
	c := New(Config{FeaturesURL: srv.URL + "/features"})

	features, err := c.LoadAll(context.Background(), Query{Items: map[string]any{"site_id": 1}})
	require.NoError(t, err)
	require.Len(t, features, 3)

	assert.Equal(t, "#ff0000", features[0].Color)
	assert.Equal(t, "4", features[0].TypeID)
	assert.Equal(t, []string{"2022-06-15"}, features[1].Dates)
	assert.IsType(t, orb.LineString{}, features[1].Geometry)
	assert.IsType(t, orb.Polygon{}, features[2].Geometry)
	assert.Equal(t, "9", features[2].TypeID)

	spec := features[0].LayerSpec()
	assert.Equal(t, int64(10), spec.ResourceID)
}

func TestQueryParameters(t *testing.T) {
	var mu sync.Mutex
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, r.URL.Query().Get("items_query"), r.URL.Query().Get("features_query"), r.URL.Query().Get("site"))
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := New(Config{FeaturesURL: srv.URL + "/features?site=main"})
	_, err := c.LoadAll(context.Background(), Query{Features: map[string]any{"type_id": []int{3}}})
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"{}", `{"type_id":[3]}`, "main"}, got)
}

func TestPagesStopOnError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `[[1, 1, {"type":"Point","coordinates":[0,0]}, null, null, []]]`)
	}))
	defer srv.Close()

	c := New(Config{FeaturesURL: srv.URL})
	features, err := c.LoadAll(context.Background(), Query{})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Len(t, features, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPagesBreakStopsFetching(t *testing.T) {
	rec := &recorder{}
	srv := featureServer(t, rec)
	c := New(Config{FeaturesURL: srv.URL + "/features"})

	for range c.Pages(context.Background(), Query{}) {
		break
	}
	assert.Equal(t, []int{1}, rec.requested())
}

func TestPopupContent(t *testing.T) {
	rec := &recorder{}
	srv := featureServer(t, rec)

	c := New(Config{FeaturesURL: srv.URL + "/features", PopupURL: srv.URL + "/popup"})
	require.True(t, c.HasPopups())
	html, err := c.PopupContent(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "<h3>Feature 42</h3>", html)

	_, err = New(Config{FeaturesURL: srv.URL}).PopupContent(context.Background(), 1)
	assert.Error(t, err)
}
