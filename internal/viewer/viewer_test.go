package viewer

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapping/internal/loader"
	"github.com/joeblew999/plat-mapping/internal/mapview"
	"github.com/joeblew999/plat-mapping/internal/timeline"
)

type fakeSource struct {
	pages [][]loader.Feature
	err   error
	calls int
}

func (s *fakeSource) Pages(ctx context.Context, q loader.Query) iter.Seq2[[]loader.Feature, error] {
	return func(yield func([]loader.Feature, error) bool) {
		for _, p := range s.pages {
			s.calls++
			if !yield(p, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

type fakePopups struct {
	html string
	err  error
}

func (p fakePopups) PopupContent(ctx context.Context, id int64) (string, error) {
	return p.html, p.err
}

func point(id int64, x, y float64, dates ...string) loader.Feature {
	return loader.Feature{ID: id, ResourceID: id * 10, Geometry: orb.Point{x, y}, Dates: dates}
}

func scenarioSource() *fakeSource {
	return &fakeSource{pages: [][]loader.Feature{
		{point(1, 0, 0, "2020-01-01"), point(2, 10, 10, "2022-06-15")},
		{point(3, 5, 5), {ID: 4}},
	}}
}

func TestLoadBuildsTimelineAfterLastPage(t *testing.T) {
	v := New(Options{Source: scenarioSource(), Popups: fakePopups{html: "<p>x</p>"}})
	require.NoError(t, v.Load(context.Background()))
	require.NoError(t, v.Wait(context.Background()))

	idx := v.Index()
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), idx.Min())
	assert.Equal(t, time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC), idx.Max())

	st := v.Snapshot()
	assert.True(t, st.Loaded)
	assert.Equal(t, 3, st.Layers)
	assert.Equal(t, []int64{1, 2, 3}, st.Visible)
	require.NotNil(t, st.Range)
	assert.True(t, st.Range.Visible)
	assert.Equal(t, "Jan 1, 2020", st.Range.DisplayMin)
	assert.NotEmpty(t, st.Range.Labels)

	// Range filtering is wired to visibility.
	_, err := v.SetRange(50, 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, v.Snapshot().Visible)
}

func TestInitialViewRespectsInteraction(t *testing.T) {
	v := New(Options{Source: scenarioSource()})
	require.NoError(t, v.Load(context.Background()))
	v.Do(func(c *mapview.Context) {
		view, ok := c.Map.View()
		require.True(t, ok)
		assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}, view)
	})

	src := scenarioSource()
	v = New(Options{Source: src})
	v.Interact(orb.Point{3, 3}, 7)
	require.NoError(t, v.Load(context.Background()))
	v.Do(func(c *mapview.Context) {
		_, ok := c.Map.View()
		assert.False(t, ok)
		assert.Equal(t, 7, c.Map.Zoom())
	})

	def := orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}
	v = New(Options{Source: scenarioSource(), DefaultBounds: &def})
	require.NoError(t, v.Load(context.Background()))
	v.Do(func(c *mapview.Context) {
		view, _ := c.Map.View()
		assert.Equal(t, def, view)
	})
}

func TestLoadFailureKeepsRenderedLayers(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{pages: [][]loader.Feature{{point(1, 0, 0, "2020-01-01"), point(2, 1, 1, "2021-01-01")}}, err: boom}
	v := New(Options{Source: src})

	var notices []Notice
	v.OnNotice(func(n Notice) { notices = append(notices, n) })

	err := v.Load(context.Background())
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, v.Wait(context.Background()), boom)

	st := v.Snapshot()
	assert.Equal(t, []int64{1, 2}, st.Visible)
	assert.False(t, st.Range.Visible)
	require.Len(t, notices, 1)
	assert.Equal(t, "error", notices[0].Level)
}

func TestWaitHonoursContext(t *testing.T) {
	v := New(Options{Source: scenarioSource()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, v.Wait(ctx), context.Canceled)

	select {
	case <-v.Ready():
		t.Fatal("ready before load")
	default:
	}
}

func TestTimelineHiddenWithOneDate(t *testing.T) {
	src := &fakeSource{pages: [][]loader.Feature{{point(1, 0, 0, "2020-01-01"), point(2, 1, 1, "2020-01-01")}}}
	v := New(Options{Source: src})
	require.NoError(t, v.Load(context.Background()))

	st := v.Snapshot()
	assert.False(t, st.Range.Visible)
	assert.Equal(t, []int64{1, 2}, st.Visible)
	_, err := v.DragRange(timeline.MinHandle, 50)
	assert.ErrorIs(t, err, timeline.ErrNotReady)
}

func TestCursorTimeline(t *testing.T) {
	v := New(Options{Source: scenarioSource(), Timeline: CursorTimeline})
	require.NoError(t, v.Load(context.Background()))

	st := v.Snapshot()
	require.NotNil(t, st.Cursor)
	assert.False(t, st.Cursor.Disabled)
	assert.Equal(t, "2 item(s) on or after Jan 1, 2020", st.Cursor.Summary)

	cc, err := v.SetCursor(100)
	require.NoError(t, err)
	assert.Equal(t, 1, cc.Shown)
	assert.Equal(t, []int64{2, 3}, v.Snapshot().Visible)
}

func TestPopup(t *testing.T) {
	v := New(Options{Source: scenarioSource(), Popups: fakePopups{html: "<h3>One</h3>"}})
	require.NoError(t, v.Load(context.Background()))

	html, err := v.OpenPopup(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "<h3>One</h3>", html)
	assert.Equal(t, int64(1), v.Snapshot().Popup)
	assert.Equal(t, "<h3>One</h3>", v.PopupHTML())

	// Filtering the feature out closes its popup.
	_, err = v.SetRange(50, 100)
	require.NoError(t, err)
	assert.Zero(t, v.Snapshot().Popup)
	assert.Empty(t, v.PopupHTML())

	_, err = v.OpenPopup(context.Background(), 1)
	assert.Error(t, err)
}

func TestPopupFailureNotifies(t *testing.T) {
	v := New(Options{Source: scenarioSource(), Popups: fakePopups{err: errors.New("down")}})
	require.NoError(t, v.Load(context.Background()))

	var notices []Notice
	v.OnNotice(func(n Notice) { notices = append(notices, n) })
	_, err := v.OpenPopup(context.Background(), 2)
	require.Error(t, err)
	assert.Len(t, notices, 1)
	assert.Zero(t, v.Snapshot().Popup)

	_, err = New(Options{Source: scenarioSource()}).OpenPopup(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNoPopups)
}

func TestToggleAndLegend(t *testing.T) {
	src := &fakeSource{pages: [][]loader.Feature{{
		{ID: 1, ResourceID: 1, Geometry: orb.Point{0, 0}, TypeID: "a"},
		{ID: 2, ResourceID: 1, Geometry: orb.Point{1, 1}, TypeID: "b"},
	}}}
	v := New(Options{Source: src, Legend: []mapview.LegendEntry{{ID: "a"}, {ID: "b"}}})
	require.NoError(t, v.Load(context.Background()))

	v.SetTypeChecked("b", false)
	assert.Equal(t, []int64{1}, v.Snapshot().Rendered)

	assert.Equal(t, mapview.Flat, v.ToggleClustering())
	assert.Equal(t, "flat", v.Snapshot().Mode)
	assert.Equal(t, []int64{1}, v.Snapshot().Rendered)

	v.SetLegendEnabled(false)
	assert.Equal(t, []int64{1, 2}, v.Snapshot().Rendered)
	assert.Equal(t, mapview.Aggregated, v.ToggleClustering())
	assert.Equal(t, []int64{1, 2}, v.Snapshot().Rendered)
}

func TestDragRangeAlternatesHandlesWithoutEndDrag(t *testing.T) {
	v := New(Options{Source: scenarioSource()})
	require.NoError(t, v.Load(context.Background()))

	_, err := v.DragRange(timeline.MinHandle, 20)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, v.Snapshot().Visible)

	rc, err := v.DragRange(timeline.MaxHandle, 80)
	require.NoError(t, err)
	assert.Equal(t, 20.0, rc.MinPercent)
	assert.Equal(t, 80.0, rc.MaxPercent)
	assert.Equal(t, []int64{3}, v.Snapshot().Visible)

	_, err = v.DragRange(timeline.MinHandle, 10)
	require.NoError(t, err)

	rc, err = v.SetRange(0, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rc.MinPercent)
	assert.Equal(t, 100.0, rc.MaxPercent)
	assert.Equal(t, []int64{1, 2, 3}, v.Snapshot().Visible)
}
