package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapping/internal/humastar"
	"github.com/joeblew999/plat-mapping/internal/service"
)

// EventHandler streams catalog change events to the editor.
type EventHandler struct {
	types *TypeHandler
	bus   *service.EventBus
}

// NewEventHandler streams bus events, re-rendering type cards through types.
func NewEventHandler(types *TypeHandler, bus *service.EventBus) *EventHandler {
	return &EventHandler{types: types, bus: bus}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/events", h.Events, huma.OperationTags("editor"))
}

func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.bus.Subscribe()
			defer h.bus.Unsubscribe(ch)

			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					if ev.Resource == service.ResourceTypes {
						h.patchTypes(sse, ev)
					}
					sse.DispatchCustomEvent("resource-changed", map[string]any{
						"resource": ev.Resource,
						"action":   ev.Action,
						"id":       ev.ID,
					})
				}
			}
		},
	}, nil
}

// patchTypes swaps a single card on updates and re-renders the list
// otherwise. A card that no longer resolves falls back to the list.
func (h *EventHandler) patchTypes(sse humastar.SSE, ev service.Event) {
	if ev.Action == "updated" {
		if t, ok := h.types.types.Get(ev.ID); ok {
			sse.Replace(h.types.renderTypeCard(t), typeCardSelector(t.ID))
			return
		}
	}
	sse.Patch(h.types.renderTypeList(), "#type-list")
}
