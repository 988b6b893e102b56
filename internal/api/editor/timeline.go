package editor

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapping/internal/humastar"
	"github.com/joeblew999/plat-mapping/internal/mapview"
	"github.com/joeblew999/plat-mapping/internal/viewer"
)

// TimelineHandler drives a server-side map viewer from the editor's
// preview panel. The viewer is shared by every client and rebuilt on each
// GET, which is how the panel (re)loads.
type TimelineHandler struct {
	humastar.Handler
	source StoreSource
	logger *slog.Logger

	mu sync.Mutex
	v  *viewer.Viewer
}

// NewTimelineHandler creates a handler whose viewer loads from source. A nil
// logger discards output.
func NewTimelineHandler(source StoreSource, renderer *humastar.Renderer, logger *slog.Logger) *TimelineHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TimelineHandler{
		Handler: humastar.Handler{Renderer: renderer},
		source:  source,
		logger:  logger,
	}
}

func (h *TimelineHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/timeline", h.Load, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/timeline", h.SetRange, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/timeline/legend", h.SetLegend, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/timeline/mode", h.ToggleMode, huma.OperationTags("editor"))
}

func (h *TimelineHandler) build(ctx context.Context) (*viewer.Viewer, error) {
	var legend []mapview.LegendEntry
	for _, t := range h.source.Types.List() {
		legend = append(legend, mapview.LegendEntry{
			ID: strconv.FormatInt(t.ID, 10), Label: t.Label, Color: t.Color,
		})
	}
	v := viewer.New(viewer.Options{
		Source:   h.source,
		Timeline: viewer.RangeTimeline,
		Legend:   legend,
		Logger:   h.logger,
	})
	if err := v.Load(ctx); err != nil {
		return v, err
	}
	h.mu.Lock()
	h.v = v
	h.mu.Unlock()
	return v, nil
}

func (h *TimelineHandler) current(ctx context.Context) (*viewer.Viewer, error) {
	h.mu.Lock()
	v := h.v
	h.mu.Unlock()
	if v != nil {
		return v, nil
	}
	return h.build(ctx)
}

func (h *TimelineHandler) Load(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		v, err := h.build(ctx)
		if err != nil {
			sse.Error("Failed to load map features.")
			return
		}
		h.patch(sse, v, true)
	}), nil
}

// SetRange applies the rangeMin/rangeMax percent signals.
func (h *TimelineHandler) SetRange(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	minPct, maxPct := 0.0, 100.0
	if signals.Has("rangeMin") {
		minPct = signals.Float("rangeMin")
	}
	if signals.Has("rangeMax") {
		maxPct = signals.Float("rangeMax")
	}

	return h.Stream(func(sse humastar.SSE) {
		v, err := h.current(ctx)
		if err != nil {
			sse.Error("Failed to load map features.")
			return
		}
		if _, err := v.SetRange(minPct, maxPct); err != nil {
			// Hidden slider: the feature set has fewer than two dates.
			sse.Error(err.Error())
			return
		}
		h.patch(sse, v, false)
	}), nil
}

// SetLegend applies the typeId/checked signals, or the legendEnabled
// master toggle when present.
func (h *TimelineHandler) SetLegend(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		v, err := h.current(ctx)
		if err != nil {
			sse.Error("Failed to load map features.")
			return
		}
		if signals.Has("legendEnabled") {
			v.SetLegendEnabled(signals.Bool("legendEnabled"))
		}
		if id := signals.String("typeId"); id != "" {
			v.SetTypeChecked(id, signals.Bool("checked"))
		}
		h.patch(sse, v, true)
	}), nil
}

func (h *TimelineHandler) ToggleMode(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		v, err := h.current(ctx)
		if err != nil {
			sse.Error("Failed to load map features.")
			return
		}
		mode := v.ToggleClustering()
		h.logger.Debug("timeline_mode_toggled", "mode", mode.String())
		h.patch(sse, v, false)
	}), nil
}

type visibleFeature struct {
	ID   int64
	Kind string
}

func (h *TimelineHandler) patch(sse humastar.SSE, v *viewer.Viewer, withLegend bool) {
	st := v.Snapshot()

	signals := map[string]any{
		"visibleCount": len(st.Visible),
		"layerCount":   st.Layers,
		"mode":         st.Mode,
	}
	if st.Range != nil {
		signals["timelineVisible"] = st.Range.Visible
		signals["rangeMin"] = st.Range.MinPercent
		signals["rangeMax"] = st.Range.MaxPercent
		signals["displayMin"] = st.Range.DisplayMin
		signals["displayMax"] = st.Range.DisplayMax
		if withLegend {
			sse.Patch(h.Renderer.MustRender("timeline-labels", st.Range.Labels), "#timeline-labels")
		}
	}
	sse.Signals(signals)

	kinds := make(map[int64]string, len(st.Visible))
	v.Do(func(c *mapview.Context) {
		for _, id := range st.Visible {
			if l, ok := c.Layer(id); ok {
				kinds[id] = l.Kind.String()
			}
		}
	})
	var buf bytes.Buffer
	for _, id := range st.Visible {
		h.Renderer.RenderToBuffer(&buf, "visible-feature", visibleFeature{ID: id, Kind: kinds[id]})
	}
	sse.Patch(buf.String(), "#visible-features")

	if withLegend {
		entries := make([]any, len(st.Legend))
		for i, e := range st.Legend {
			entries[i] = e
		}
		sse.Patch(h.RenderList("legend-entry", entries, "No feature types", "Every feature is shown"), "#legend")
	}
}
