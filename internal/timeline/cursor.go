package timeline

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/joeblew999/plat-mapping/internal/event"
)

// Tick is a labelled mark on the cursor slider track.
type Tick struct {
	Percent float64   `json:"percent"`
	Label   string    `json:"label"`
	Date    time.Time `json:"date"`
}

// CursorChange is published whenever the cursor moves.
type CursorChange struct {
	Cursor
	Percent int `json:"percent"`
	// Shown counts features with at least one date on or after the cursor.
	Shown int `json:"shown"`
}

// CursorSlider is the single-handle timeline: it selects every feature with
// a date on or after the cursor. It is not safe for concurrent use.
type CursorSlider struct {
	parser   *Parser
	features [][]time.Time

	min, max time.Time
	percent  int
	selected time.Time
	disabled bool
	visible  bool
	summary  string
	ticks    []Tick

	changes event.Topic[CursorChange]
	logger  *slog.Logger
}

// NewCursorSlider creates a disabled cursor slider. A nil parser uses
// DefaultParser.
func NewCursorSlider(p *Parser, logger *slog.Logger) *CursorSlider {
	if p == nil {
		p = DefaultParser
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CursorSlider{
		parser:   p,
		disabled: true,
		visible:  true,
		summary:  "No date data",
		logger:   logger,
	}
}

// AsDated converts a typed slice for UpdateFeatures.
func AsDated[T Dated](items []T) []Dated {
	out := make([]Dated, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// OnCursorChange subscribes fn to cursor moves.
func (c *CursorSlider) OnCursorChange(fn func(CursorChange)) (unsubscribe func()) {
	return c.changes.Subscribe(fn)
}

// UpdateFeatures rebinds the slider to items, resets the cursor to the
// earliest date and publishes the resulting change. The slider disables
// itself when fewer than two distinct instants are found.
func (c *CursorSlider) UpdateFeatures(items []Dated) {
	c.features = c.features[:0]
	var raw int
	for _, item := range items {
		strs := item.DateStrings()
		raw += len(strs)
		c.features = append(c.features, c.parser.ParseAll(strs))
	}

	c.min, c.max = time.Time{}, time.Time{}
	var found bool
	for _, dates := range c.features {
		for _, d := range dates {
			d = d.UTC()
			if !found || d.Before(c.min) {
				c.min = d
			}
			if !found || d.After(c.max) {
				c.max = d
			}
			found = true
		}
	}

	switch {
	case raw == 0:
		c.disable("No date data available")
		return
	case !found:
		c.disable("No valid date data available")
		return
	case c.min.Equal(c.max):
		c.disable("Not enough date data to filter")
		return
	}

	c.disabled = false
	c.ticks = buildTicks(c.min, c.max)
	c.logger.Debug("cursor_slider_ready", "min", c.min, "max", c.max, "ticks", len(c.ticks))
	c.SetPercent(0)
}

func (c *CursorSlider) disable(summary string) {
	c.disabled = true
	c.ticks = nil
	c.selected = time.Time{}
	c.percent = 0
	c.summary = summary
}

// SetPercent moves the cursor to an integer percent of the span.
func (c *CursorSlider) SetPercent(p int) (CursorChange, error) {
	if c.disabled {
		return CursorChange{}, ErrNotReady
	}
	p = max(0, min(100, p))
	c.percent = p
	c.selected = c.dateAt(p)

	shown := c.CountOnOrAfter(c.selected)
	c.summary = fmt.Sprintf("%d item(s) on or after %s", shown, FormatDisplay(c.selected))

	change := CursorChange{Cursor: Cursor{At: c.selected}, Percent: p, Shown: shown}
	c.changes.Publish(change)
	return change, nil
}

func (c *CursorSlider) dateAt(p int) time.Time {
	if p >= 100 {
		return c.max
	}
	return interpolate(c.min, c.max, float64(p))
}

// CountOnOrAfter counts features, once each, that have a date on or after t.
func (c *CursorSlider) CountOnOrAfter(t time.Time) int {
	var n int
	for _, dates := range c.features {
		for _, d := range dates {
			if !d.Before(t) {
				n++
				break
			}
		}
	}
	return n
}

// Filter returns the cursor filter, or nil while disabled.
func (c *CursorSlider) Filter() Filter {
	if c.disabled {
		return nil
	}
	return Cursor{At: c.selected}
}

// Selected returns the cursor instant.
func (c *CursorSlider) Selected() time.Time { return c.selected }

// Label returns the cursor read-out.
func (c *CursorSlider) Label() string {
	if c.disabled {
		return "N/A"
	}
	return FormatDisplay(c.selected)
}

// Summary returns the status line under the track.
func (c *CursorSlider) Summary() string { return c.summary }

// Ticks returns the tick marks for the current span.
func (c *CursorSlider) Ticks() []Tick { return c.ticks }

// Disabled reports whether the slider input is disabled.
func (c *CursorSlider) Disabled() bool { return c.disabled }

// Show makes the slider container visible.
func (c *CursorSlider) Show() { c.visible = true }

// Hide hides the slider container.
func (c *CursorSlider) Hide() { c.visible = false }

// Visible reports whether the container should be rendered.
func (c *CursorSlider) Visible() bool { return c.visible }

// buildTicks picks tick spacing from the span: decades, half-decades or
// years for long spans, then years, months, and finally weeks.
func buildTicks(minDate, maxDate time.Time) []Tick {
	if !maxDate.After(minDate) {
		return nil
	}
	percent := func(t time.Time) float64 {
		return positionOf(minDate, maxDate, t)
	}
	inRange := func(t time.Time) bool {
		return !t.Before(minDate) && !t.After(maxDate)
	}

	yearsDiff := maxDate.Year() - minDate.Year()
	monthsDiff := yearsDiff*12 + int(maxDate.Month()) - int(minDate.Month())

	var ticks []Tick
	switch {
	case yearsDiff > 10:
		interval := 1
		if yearsDiff > 50 {
			interval = 10
		} else if yearsDiff > 20 {
			interval = 5
		}
		start := int(math.Ceil(float64(minDate.Year())/float64(interval))) * interval
		for year := start; year <= maxDate.Year(); year += interval {
			t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			if inRange(t) {
				ticks = append(ticks, Tick{Percent: percent(t), Label: strconv.Itoa(year), Date: t})
			}
		}
	case monthsDiff > 12:
		for year := minDate.Year(); year <= maxDate.Year(); year++ {
			t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			if inRange(t) {
				ticks = append(ticks, Tick{Percent: percent(t), Label: strconv.Itoa(year), Date: t})
			}
		}
	case monthsDiff > 3:
		t := time.Date(minDate.Year(), minDate.Month(), 1, 0, 0, 0, 0, time.UTC)
		for ; !t.After(maxDate); t = t.AddDate(0, 1, 0) {
			if inRange(t) {
				ticks = append(ticks, Tick{Percent: percent(t), Label: t.Format("Jan 2006"), Date: t})
			}
		}
	default:
		step := 7
		if maxDate.Sub(minDate).Hours()/24 > 60 {
			step = 14
		}
		for t := minDate; !t.After(maxDate); t = t.AddDate(0, 0, step) {
			ticks = append(ticks, Tick{Percent: percent(t), Label: t.Format("Jan 2"), Date: t})
		}
	}
	return ticks
}
