// Package viewer is the page controller of the public map. It owns the map
// context, loads every feature page, builds the timeline once loading is
// complete and routes user input to the timeline, legend and clustering
// controllers.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapping/internal/event"
	"github.com/joeblew999/plat-mapping/internal/loader"
	"github.com/joeblew999/plat-mapping/internal/mapview"
	"github.com/joeblew999/plat-mapping/internal/timeline"
)

// ErrNoPopups is returned by OpenPopup when no popup source is configured.
var ErrNoPopups = errors.New("viewer: popups disabled")

// Source yields feature pages in request order.
type Source interface {
	Pages(ctx context.Context, q loader.Query) iter.Seq2[[]loader.Feature, error]
}

// PopupSource fetches a feature's detail fragment.
type PopupSource interface {
	PopupContent(ctx context.Context, featureID int64) (string, error)
}

// Timeline selects the slider variant.
type Timeline int

const (
	RangeTimeline Timeline = iota
	CursorTimeline
	NoTimeline
)

// Notice is a transient user-facing message.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Options configures a Viewer.
type Options struct {
	Source Source
	Popups PopupSource
	Query  loader.Query
	Parser *timeline.Parser

	Timeline          Timeline
	Legend            []mapview.LegendEntry
	DisableClustering bool
	// DefaultBounds, when set, is fitted after loading instead of the union
	// of all feature bounds.
	DefaultBounds *orb.Bound

	Logger *slog.Logger
}

// Viewer serializes every page event behind a mutex, so handlers coming
// from several goroutines observe the single-threaded ordering the
// controllers expect.
type Viewer struct {
	mu sync.Mutex

	opts   Options
	parser *timeline.Parser
	logger *slog.Logger

	ctx        *mapview.Context
	visibility *mapview.VisibilityController
	modes      *mapview.ClusteringModeController
	slider     *timeline.RangeSlider
	cursor     *timeline.CursorSlider
	index      timeline.Index
	popupHTML  string

	ready   chan struct{}
	loadErr error
	notices event.Topic[Notice]
}

// New creates a viewer. Nothing is fetched until Load.
func New(opts Options) *Viewer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	parser := opts.Parser
	if parser == nil {
		parser = timeline.DefaultParser
	}

	ctx := mapview.NewContext(mapview.Options{
		DisableClustering: opts.DisableClustering,
		Logger:            logger,
	})
	ctx.Legend.SetEntries(opts.Legend)

	return &Viewer{
		opts:       opts,
		parser:     parser,
		logger:     logger,
		ctx:        ctx,
		visibility: mapview.NewVisibilityController(ctx),
		modes:      mapview.NewClusteringModeController(ctx),
		slider:     timeline.NewRangeSlider(logger),
		cursor:     timeline.NewCursorSlider(parser, logger),
		ready:      make(chan struct{}),
	}
}

// OnNotice subscribes to user-facing notices.
func (v *Viewer) OnNotice(fn func(Notice)) (unsubscribe func()) {
	return v.notices.Subscribe(fn)
}

// Ready is closed once loading has finished, successfully or not.
func (v *Viewer) Ready() <-chan struct{} { return v.ready }

// Wait blocks until loading has finished and returns the load error.
func (v *Viewer) Wait(ctx context.Context) error {
	select {
	case <-v.ready:
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load fetches every page, adding layers as each page arrives. After the
// last page it builds the date index, binds the timeline and sets the
// initial view. A failed page stops loading; layers already added stay on
// the map and the timeline stays hidden. Load must be called once.
func (v *Viewer) Load(ctx context.Context) error {
	if v.opts.Source == nil {
		return v.finish(errors.New("viewer: no feature source"))
	}

	var pages, added, skipped int
	for page, err := range v.opts.Source.Pages(ctx, v.opts.Query) {
		if err != nil {
			v.notify("error", "Failed to load map features.")
			return v.finish(fmt.Errorf("load page %d: %w", pages+1, err))
		}
		pages++
		a, s := v.addPage(page)
		added += a
		skipped += s
	}

	v.logger.Info("features_loaded", "pages", pages, "layers", added, "skipped", skipped)
	v.mu.Lock()
	v.bindTimeline()
	v.setInitialView()
	v.mu.Unlock()
	return v.finish(nil)
}

func (v *Viewer) finish(err error) error {
	v.mu.Lock()
	v.loadErr = err
	v.mu.Unlock()
	close(v.ready)
	return err
}

func (v *Viewer) addPage(features []loader.Feature) (added, skipped int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, f := range features {
		l, err := mapview.NewLayer(f.LayerSpec(), v.parser)
		if err != nil {
			v.logger.Debug("feature_skipped", "feature", f.ID, "error", err)
			skipped++
			continue
		}
		v.ctx.AddLayer(l)
		added++
	}
	return added, skipped
}

// bindTimeline runs once, after the final page.
func (v *Viewer) bindTimeline() {
	layers := v.ctx.Layers()
	switch v.opts.Timeline {
	case RangeTimeline:
		v.index = timeline.BuildWith(v.parser, layers)
		if v.slider.Initialize(v.index) {
			v.slider.OnRangeChange(v.visibility.ApplyRange)
		}
	case CursorTimeline:
		v.cursor.OnCursorChange(v.visibility.ApplyCursor)
		v.cursor.UpdateFeatures(timeline.AsDated(layers))
	}
}

func (v *Viewer) setInitialView() {
	if v.ctx.Map.Interacted() {
		return
	}
	if v.opts.DefaultBounds != nil {
		v.ctx.Map.FitBounds(*v.opts.DefaultBounds)
		return
	}
	if b, ok := v.ctx.Bounds(); ok {
		v.ctx.Map.FitBounds(b)
	}
}

func (v *Viewer) notify(level, msg string) {
	v.notices.Publish(Notice{Level: level, Message: msg})
}

// DragRange moves a range slider handle.
func (v *Viewer) DragRange(h timeline.Handle, percent float64) (timeline.RangeChange, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.slider.DragTo(h, percent)
}

// EndDrag ends the current range gesture.
func (v *Viewer) EndDrag() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.slider.EndDrag()
}

// SetRange moves both handles in one step, as a form submit would.
func (v *Viewer) SetRange(minPct, maxPct float64) (timeline.RangeChange, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if minPct > maxPct {
		minPct, maxPct = maxPct, minPct
	}
	v.slider.EndDrag()
	// Move the handle that would otherwise be blocked first.
	first, second := timeline.MaxHandle, timeline.MinHandle
	firstPct, secondPct := maxPct, minPct
	if curMin, _ := v.slider.Percents(); maxPct < curMin {
		first, second = second, first
		firstPct, secondPct = secondPct, firstPct
	}
	if _, err := v.slider.DragTo(first, firstPct); err != nil {
		return timeline.RangeChange{}, err
	}
	v.slider.EndDrag()
	rc, err := v.slider.DragTo(second, secondPct)
	v.slider.EndDrag()
	return rc, err
}

// SetCursor moves the cursor slider.
func (v *Viewer) SetCursor(percent int) (timeline.CursorChange, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cursor.SetPercent(percent)
}

// ToggleClustering switches between aggregated and flat rendering.
func (v *Viewer) ToggleClustering() mapview.Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.modes.Toggle()
}

// SetTypeChecked toggles one legend type.
func (v *Viewer) SetTypeChecked(typeID string, checked bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visibility.SetTypeChecked(typeID, checked)
}

// SetLegendEnabled flips the legend master toggle.
func (v *Viewer) SetLegendEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visibility.SetLegendEnabled(enabled)
}

// Interact records a user zoom or pan.
func (v *Viewer) Interact(center orb.Point, zoom int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ctx.Map.Interact(center, zoom)
}

// OpenPopup fetches a feature's detail fragment and opens its popup. On a
// fetch failure a notice is published and the popup stays closed.
func (v *Viewer) OpenPopup(ctx context.Context, featureID int64) (string, error) {
	if v.opts.Popups == nil {
		return "", ErrNoPopups
	}
	v.mu.Lock()
	l, ok := v.ctx.Layer(featureID)
	visible := ok && v.ctx.Visible(featureID)
	v.mu.Unlock()
	if !visible {
		return "", fmt.Errorf("viewer: feature %d is not on the map", featureID)
	}

	html, err := v.opts.Popups.PopupContent(ctx, featureID)
	if err != nil {
		v.logger.Warn("popup_failed", "feature", featureID, "error", err)
		v.notify("error", "Failed to load feature content.")
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	// The layer may have been filtered out while the fragment was in flight.
	if !v.ctx.Visible(featureID) {
		return "", fmt.Errorf("viewer: feature %d is not on the map", featureID)
	}
	v.ctx.Map.OpenPopup(l)
	v.popupHTML = html
	return html, nil
}

// ClosePopup closes the open popup.
func (v *Viewer) ClosePopup() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ctx.Map.ClosePopup()
	v.popupHTML = ""
}

// Do runs fn with exclusive access to the map context.
func (v *Viewer) Do(fn func(*mapview.Context)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(v.ctx)
}
