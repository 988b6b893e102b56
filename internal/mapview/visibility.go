package mapview

import (
	"github.com/joeblew999/plat-mapping/internal/timeline"
)

// VisibilityController shows and hides layers as the timeline and legend
// filters change. It is the only writer of layer membership besides the
// ClusteringModeController.
type VisibilityController struct {
	ctx *Context
}

// NewVisibilityController binds a controller to ctx.
func NewVisibilityController(ctx *Context) *VisibilityController {
	return &VisibilityController{ctx: ctx}
}

// Apply records f as the active timeline filter and reconciles every layer
// in layers against it and the legend. A nil filter shows everything the
// legend allows. It returns the number of membership mutations, so a
// repeated call with the same filter returns 0.
func (v *VisibilityController) Apply(f timeline.Filter, layers []*Layer) int {
	v.ctx.filter = f
	var n int
	for _, l := range layers {
		n += v.ctx.setVisible(l, v.ctx.shouldShow(l))
	}
	if n > 0 {
		v.ctx.logger.Debug("visibility_applied", "mutations", n, "visible", len(v.ctx.VisibleIDs()), "mode", v.ctx.mode.String())
	}
	return n
}

// ApplyRange applies a range-change event to every loaded layer. It has
// the signature of a RangeSlider subscriber.
func (v *VisibilityController) ApplyRange(rc timeline.RangeChange) {
	v.Apply(rc.Range, v.ctx.layers)
}

// ApplyCursor applies a cursor-change event to every loaded layer.
func (v *VisibilityController) ApplyCursor(cc timeline.CursorChange) {
	v.Apply(cc.Cursor, v.ctx.layers)
}

// Refresh re-applies the active filter, after a legend change.
func (v *VisibilityController) Refresh() int {
	return v.Apply(v.ctx.filter, v.ctx.layers)
}

// SetTypeChecked toggles one legend type and refreshes.
func (v *VisibilityController) SetTypeChecked(typeID string, checked bool) int {
	if !v.ctx.Legend.SetChecked(typeID, checked) {
		return 0
	}
	return v.Refresh()
}

// SetLegendEnabled flips the legend master toggle and refreshes.
func (v *VisibilityController) SetLegendEnabled(enabled bool) int {
	if !v.ctx.Legend.SetEnabled(enabled) {
		return 0
	}
	return v.Refresh()
}
