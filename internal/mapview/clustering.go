package mapview

// ClusteringModeController switches the map between aggregated and flat
// rendering. Switching only happens on explicit user action.
type ClusteringModeController struct {
	ctx *Context
}

// NewClusteringModeController binds a controller to ctx.
func NewClusteringModeController(ctx *Context) *ClusteringModeController {
	return &ClusteringModeController{ctx: ctx}
}

// Mode returns the active mode.
func (c *ClusteringModeController) Mode() Mode { return c.ctx.mode }

// Toggle switches to the other mode and returns it. Without an aggregator
// it does nothing and returns the current mode.
func (c *ClusteringModeController) Toggle() Mode {
	if c.ctx.mode == Aggregated {
		return c.SetMode(Flat)
	}
	return c.SetMode(Aggregated)
}

// SetMode switches to m. It is a no-op when m is already active or the
// aggregator was never initialized.
func (c *ClusteringModeController) SetMode(m Mode) Mode {
	ctx := c.ctx
	if ctx.Aggregator == nil || ctx.mode == m {
		return ctx.mode
	}

	switch m {
	case Flat:
		ctx.Map.DetachAggregator()
		clear(ctx.visible)
		for _, l := range ctx.layers {
			ctx.visible[l.FeatureID] = false
		}
		for _, l := range ctx.Aggregator.Layers() {
			ctx.visible[l.FeatureID] = true
			ctx.Map.AddLayer(l)
		}
	case Aggregated:
		ctx.Map.ClearDirect()
		ctx.Map.AttachAggregator()
	}

	ctx.mode = m
	ctx.logger.Info("clustering_mode_changed", "mode", m.String(), "layers", len(ctx.Rendered()))
	ctx.modeChanges.Publish(m)
	return m
}
