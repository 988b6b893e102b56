package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoYearIndex() Index {
	return NewIndex([]time.Time{utc(2020, 1, 1), utc(2021, 3, 9), utc(2022, 6, 15)})
}

func TestRangeSliderHiddenWithoutEnoughDates(t *testing.T) {
	s := NewRangeSlider(nil)
	single := NewIndex([]time.Time{utc(2020, 1, 1)})

	for i := 0; i < 2; i++ {
		assert.False(t, s.Initialize(single))
		assert.False(t, s.Visible())
		assert.Equal(t, Uninitialized, s.State())
		assert.Nil(t, s.Filter())
	}

	s.Show()
	assert.False(t, s.Visible())

	_, err := s.DragTo(MinHandle, 10)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestRangeSliderInitialize(t *testing.T) {
	s := NewRangeSlider(nil)
	require.True(t, s.Initialize(twoYearIndex()))

	assert.Equal(t, Ready, s.State())
	assert.True(t, s.Visible())
	minPct, maxPct := s.Percents()
	assert.Equal(t, 0.0, minPct)
	assert.Equal(t, 100.0, maxPct)
	assert.True(t, s.Range().Min.Equal(utc(2020, 1, 1)))
	assert.True(t, s.Range().Max.Equal(utc(2022, 6, 15)))
	assert.Equal(t, "Jan 1, 2020", s.DisplayMin())
	assert.Equal(t, "Jun 15, 2022", s.DisplayMax())
	assert.NotEmpty(t, s.Labels())
}

func TestRangeSliderDragEmitsLiveUpdates(t *testing.T) {
	s := NewRangeSlider(nil)
	require.True(t, s.Initialize(twoYearIndex()))

	var got []RangeChange
	unsubscribe := s.OnRangeChange(func(c RangeChange) { got = append(got, c) })

	require.NoError(t, s.BeginDrag(MinHandle))
	assert.Equal(t, Dragging, s.State())
	for _, p := range []float64{5, 10, 20} {
		_, err := s.DragTo(MinHandle, p)
		require.NoError(t, err)
	}
	s.EndDrag()
	assert.Equal(t, Ready, s.State())

	require.Len(t, got, 3)
	assert.Equal(t, 20.0, got[2].MinPercent)
	assert.True(t, got[2].Min.Equal(s.Index().DateAt(20)))
	assert.Equal(t, 1, s.labelPasses, "labels must not be recomputed during drag")

	unsubscribe()
	_, err := s.DragTo(MaxHandle, 90)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRangeSliderHandlesDoNotCross(t *testing.T) {
	s := NewRangeSlider(nil)
	require.True(t, s.Initialize(twoYearIndex()))

	_, err := s.DragTo(MaxHandle, 40)
	require.NoError(t, err)
	s.EndDrag()

	c, err := s.DragTo(MinHandle, 75)
	require.NoError(t, err)
	assert.Equal(t, 40.0, c.MinPercent)
	assert.Equal(t, 40.0, c.MaxPercent)
	assert.False(t, c.Min.After(c.Max))
	s.EndDrag()

	c, err = s.DragTo(MaxHandle, 10)
	require.NoError(t, err)
	assert.Equal(t, 40.0, c.MaxPercent)

	left, right := s.HighlightBar()
	assert.Equal(t, 40.0, left)
	assert.Equal(t, 60.0, right)
}

func TestRangeSliderOneHandlePerGesture(t *testing.T) {
	s := NewRangeSlider(nil)
	require.True(t, s.Initialize(twoYearIndex()))
	require.NoError(t, s.BeginDrag(MinHandle))
	_, err := s.DragTo(MaxHandle, 50)
	assert.ErrorIs(t, err, ErrHandleBusy)
}

func TestRangeSliderSingleEventsAlternateHandles(t *testing.T) {
	s := NewRangeSlider(nil)
	require.True(t, s.Initialize(twoYearIndex()))

	c, err := s.DragTo(MinHandle, 10)
	require.NoError(t, err)
	assert.Equal(t, Ready, s.State())
	assert.Equal(t, 10.0, c.MinPercent)

	c, err = s.DragTo(MaxHandle, 90)
	require.NoError(t, err)
	assert.Equal(t, Ready, s.State())
	assert.Equal(t, 10.0, c.MinPercent)
	assert.Equal(t, 90.0, c.MaxPercent)

	c, err = s.DragTo(MinHandle, 30)
	require.NoError(t, err)
	assert.Equal(t, 30.0, c.MinPercent)
}

func TestRangeSliderRoundTrip(t *testing.T) {
	s := NewRangeSlider(nil)
	idx := twoYearIndex()
	require.True(t, s.Initialize(idx))

	span := idx.Max().Sub(idx.Min())
	for _, p := range []float64{0, 17.25, 50, 83.5, 100} {
		c, err := s.DragTo(MaxHandle, p)
		require.NoError(t, err)
		s.EndDrag()
		want := idx.Min().Add(time.Duration(float64(span) * p / 100))
		assert.InDelta(t, 0, c.Max.Sub(want).Seconds(), 0.001)
		assert.Equal(t, FormatDisplay(c.Max), s.DisplayMax())
	}
}

func TestRangeSliderReset(t *testing.T) {
	s := NewRangeSlider(nil)
	require.True(t, s.Initialize(twoYearIndex()))
	_, err := s.DragTo(MinHandle, 30)
	require.NoError(t, err)

	c, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.MinPercent)
	assert.Equal(t, Ready, s.State())
}

func TestRangeSliderTeardown(t *testing.T) {
	s := NewRangeSlider(nil)
	require.True(t, s.Initialize(twoYearIndex()))
	s.Teardown()

	assert.False(t, s.Visible())
	assert.False(t, s.Initialize(twoYearIndex()))
	_, err := s.DragTo(MinHandle, 1)
	assert.ErrorIs(t, err, ErrTornDown)
}

func TestRangeSliderShowHide(t *testing.T) {
	s := NewRangeSlider(nil)
	require.True(t, s.Initialize(twoYearIndex()))
	s.Hide()
	assert.False(t, s.Visible())
	assert.NotNil(t, s.Filter())
	s.Show()
	assert.True(t, s.Visible())
}
