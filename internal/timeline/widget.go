package timeline

import (
	"errors"
	"log/slog"

	"github.com/joeblew999/plat-mapping/internal/event"
)

// State is the lifecycle of a slider.
type State int

const (
	Uninitialized State = iota
	Ready
	Dragging
	TornDown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Dragging:
		return "dragging"
	case TornDown:
		return "torn-down"
	}
	return "unknown"
}

// Handle identifies one end of the range slider.
type Handle int

const (
	MinHandle Handle = iota
	MaxHandle
)

func (h Handle) String() string {
	if h == MinHandle {
		return "min"
	}
	return "max"
}

var (
	// ErrNotReady is returned for drag events before a usable index was bound.
	ErrNotReady = errors.New("timeline: slider not initialized")
	// ErrTornDown is returned for any event after Teardown.
	ErrTornDown = errors.New("timeline: slider torn down")
	// ErrHandleBusy is returned when a second handle is dragged mid-gesture.
	ErrHandleBusy = errors.New("timeline: another handle is being dragged")
)

// RangeChange is published on every handle update.
type RangeChange struct {
	Range
	MinPercent float64 `json:"minPercent"`
	MaxPercent float64 `json:"maxPercent"`
}

// RangeSlider is the dual-handle date range widget. It is headless: the
// presentation layer reads Labels, HighlightBar and the display strings,
// and feeds pointer input back through DragTo.
//
// A RangeSlider is not safe for concurrent use.
type RangeSlider struct {
	state    State
	index    Index
	minPct   float64
	maxPct   float64
	dragging Handle
	visible  bool

	labels      []Label
	labelPasses int

	changes event.Topic[RangeChange]
	logger  *slog.Logger
}

// NewRangeSlider creates an uninitialized, hidden slider.
func NewRangeSlider(logger *slog.Logger) *RangeSlider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RangeSlider{logger: logger, maxPct: 100}
}

// Initialize binds the slider to idx and resets the selection to the full
// bounds. It returns false, leaving the widget hidden, when idx has fewer
// than two distinct instants.
func (s *RangeSlider) Initialize(idx Index) bool {
	if s.state == TornDown {
		return false
	}
	if !idx.Filterable() {
		s.state = Uninitialized
		s.visible = false
		s.labels = nil
		s.logger.Debug("timeline_hidden", "dates", idx.Len())
		return false
	}

	s.index = idx
	s.minPct, s.maxPct = 0, 100
	s.labels = idx.Labels()
	s.labelPasses++
	s.state = Ready
	s.visible = true
	s.logger.Debug("timeline_ready",
		"dates", idx.Len(),
		"granularity", idx.Granularity(),
		"min", idx.Min(),
		"max", idx.Max(),
	)
	return true
}

// OnRangeChange subscribes fn to range updates. Handlers run synchronously
// inside DragTo.
func (s *RangeSlider) OnRangeChange(fn func(RangeChange)) (unsubscribe func()) {
	return s.changes.Subscribe(fn)
}

// BeginDrag starts a gesture on h.
func (s *RangeSlider) BeginDrag(h Handle) error {
	switch s.state {
	case TornDown:
		return ErrTornDown
	case Uninitialized:
		return ErrNotReady
	case Dragging:
		if s.dragging != h {
			return ErrHandleBusy
		}
		return nil
	}
	s.state = Dragging
	s.dragging = h
	return nil
}

// DragTo moves h to percent and publishes the new range. A handle cannot
// pass the other one; it stops at the other handle's position. Calling
// DragTo without BeginDrag is a one-event gesture: the slider stays Ready.
func (s *RangeSlider) DragTo(h Handle, percent float64) (RangeChange, error) {
	switch s.state {
	case TornDown:
		return RangeChange{}, ErrTornDown
	case Uninitialized:
		return RangeChange{}, ErrNotReady
	case Dragging:
		if s.dragging != h {
			return RangeChange{}, ErrHandleBusy
		}
	}

	percent = clampPercent(percent)
	switch h {
	case MinHandle:
		if percent > s.maxPct {
			percent = s.maxPct
		}
		s.minPct = percent
	case MaxHandle:
		if percent < s.minPct {
			percent = s.minPct
		}
		s.maxPct = percent
	}

	change := s.current()
	s.changes.Publish(change)
	return change, nil
}

// EndDrag finishes the gesture and returns the slider to Ready.
func (s *RangeSlider) EndDrag() {
	if s.state == Dragging {
		s.state = Ready
	}
}

// Reset moves both handles back to the full bounds and publishes the range.
func (s *RangeSlider) Reset() (RangeChange, error) {
	switch s.state {
	case TornDown:
		return RangeChange{}, ErrTornDown
	case Uninitialized:
		return RangeChange{}, ErrNotReady
	}
	s.state = Ready
	s.minPct, s.maxPct = 0, 100
	change := s.current()
	s.changes.Publish(change)
	return change, nil
}

func (s *RangeSlider) current() RangeChange {
	return RangeChange{
		Range: Range{
			Min: s.index.DateAt(s.minPct),
			Max: s.index.DateAt(s.maxPct),
		},
		MinPercent: s.minPct,
		MaxPercent: s.maxPct,
	}
}

// Range returns the current selection. Before initialization it is the
// zero Range.
func (s *RangeSlider) Range() Range {
	if s.state == Uninitialized {
		return Range{}
	}
	return s.current().Range
}

// Filter returns the active filter, or nil when the slider cannot filter.
// A nil filter shows everything.
func (s *RangeSlider) Filter() Filter {
	if s.state != Ready && s.state != Dragging {
		return nil
	}
	return s.current().Range
}

// Percents returns the handle positions.
func (s *RangeSlider) Percents() (minPct, maxPct float64) {
	return s.minPct, s.maxPct
}

// HighlightBar returns the CSS-style left and right insets, in percent, of
// the bar drawn between the handles.
func (s *RangeSlider) HighlightBar() (left, right float64) {
	return s.minPct, 100 - s.maxPct
}

// DisplayMin returns the formatted start date read-out.
func (s *RangeSlider) DisplayMin() string {
	if s.state == Uninitialized {
		return ""
	}
	return FormatDisplay(s.index.DateAt(s.minPct))
}

// DisplayMax returns the formatted end date read-out.
func (s *RangeSlider) DisplayMax() string {
	if s.state == Uninitialized {
		return ""
	}
	return FormatDisplay(s.index.DateAt(s.maxPct))
}

// Labels returns the step labels computed at initialization.
func (s *RangeSlider) Labels() []Label { return s.labels }

// Index returns the bound index.
func (s *RangeSlider) Index() Index { return s.index }

// State returns the lifecycle state.
func (s *RangeSlider) State() State { return s.state }

// Show makes the container visible. It has no effect until a usable index
// is bound.
func (s *RangeSlider) Show() {
	if s.state == Ready || s.state == Dragging {
		s.visible = true
	}
}

// Hide hides the container without discarding the selection.
func (s *RangeSlider) Hide() { s.visible = false }

// Visible reports whether the container should be rendered.
func (s *RangeSlider) Visible() bool { return s.visible }

// Teardown ends the slider's lifecycle. Subsequent events fail.
func (s *RangeSlider) Teardown() {
	s.state = TornDown
	s.visible = false
}
