// Package editor contains Datastar SSE handlers for the editor UI.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapping/internal/cache"
	"github.com/joeblew999/plat-mapping/internal/humastar"
	"github.com/joeblew999/plat-mapping/internal/service"
)

// TypeHandler manages feature types from the editor page.
type TypeHandler struct {
	humastar.Handler
	types    *service.TypeService
	features service.FeatureStore
	popups   cache.PopupCache
}

// NewTypeHandler creates the type editor. popups may be nil.
func NewTypeHandler(types *service.TypeService, features service.FeatureStore, popups cache.PopupCache, renderer *humastar.Renderer) *TypeHandler {
	return &TypeHandler{
		Handler:  humastar.Handler{Renderer: renderer},
		types:    types,
		features: features,
		popups:   popups,
	}
}

func (h *TypeHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/types", h.ListTypes, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/types", h.CreateType, huma.OperationTags("editor"))
	huma.Get(api, "/api/v1/editor/types/options", h.TypeOptions, huma.OperationTags("editor"))
	huma.Put(api, "/api/v1/editor/types/{id}", h.UpdateType, huma.OperationTags("editor"))
	huma.Delete(api, "/api/v1/editor/types/{id}", h.DeleteType, huma.OperationTags("editor"))
}

func (h *TypeHandler) ListTypes(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.renderTypeList(), "#type-list")
	}), nil
}

func (h *TypeHandler) TypeOptions(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	types := h.types.List()
	options := make([]humastar.SelectOptionData, len(types))
	for i, t := range types {
		options[i] = humastar.SelectOptionData{Value: strconv.FormatInt(t.ID, 10), Label: t.Label}
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.RenderSelect("No type", options), "#type-select")
	}), nil
}

func (h *TypeHandler) CreateType(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	label, color := signals.String("typelabel"), signals.String("typecolor")

	return h.Stream(func(sse humastar.SSE) {
		created, err := h.types.Create(label, color)
		switch {
		case errors.Is(err, service.ErrDuplicateColor):
			sse.Error("Another type already uses " + color)
			return
		case errors.Is(err, service.ErrMissingData):
			sse.Error("Label and colour are required")
			return
		case err != nil:
			sse.Error(err.Error())
			return
		}

		sse.Signals(map[string]any{
			"typelabel": "",
			"typecolor": "",
			"success":   fmt.Sprintf("Type '%s' created", created.Label),
		})
		sse.Patch(h.renderTypeList(), "#type-list")
		sse.DispatchCustomEvent("type-changed", map[string]any{
			"action": "created", "id": created.ID, "label": created.Label, "color": created.Color,
		})
	}), nil
}

type UpdateTypeInput struct {
	ID      int64 `path:"id" doc:"Type ID to update"`
	RawBody []byte
}

// UpdateType recolours or relabels a type and swaps its card in place.
func (h *TypeHandler) UpdateType(ctx context.Context, input *UpdateTypeInput) (*huma.StreamResponse, error) {
	signals, err := humastar.ParseSignals(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	label, color := signals.String("typelabel"), signals.String("typecolor")

	return h.Stream(func(sse humastar.SSE) {
		updated, err := h.types.Update(input.ID, label, color)
		switch {
		case errors.Is(err, service.ErrDuplicateColor):
			sse.Error("Another type already uses " + color)
			return
		case errors.Is(err, service.ErrMissingData):
			sse.Error("Colour is required")
			return
		case err != nil:
			sse.Error(err.Error())
			return
		}
		if h.popups != nil {
			h.popups.Flush(ctx)
		}

		sse.Replace(h.renderTypeCard(updated), typeCardSelector(updated.ID))
		sse.Success(fmt.Sprintf("Type '%s' updated", updated.Label))
		sse.DispatchCustomEvent("type-changed", map[string]any{
			"action": "updated", "id": updated.ID, "label": updated.Label, "color": updated.Color,
		})
	}), nil
}

type DeleteTypeInput struct {
	ID int64 `path:"id" doc:"Type ID to delete"`
}

func (h *TypeHandler) DeleteType(ctx context.Context, input *DeleteTypeInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		if err := h.types.Delete(input.ID); err != nil {
			sse.Error(err.Error())
			return
		}
		cleared, err := h.features.ClearType(ctx, input.ID)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		if h.popups != nil {
			h.popups.Flush(ctx)
		}

		sse.RemoveElementByID(typeCardID(input.ID))
		sse.Success(fmt.Sprintf("Type deleted, %d feature(s) updated", cleared))
		sse.DispatchCustomEvent("type-changed", map[string]any{
			"action": "deleted", "id": input.ID,
		})
	}), nil
}

func (h *TypeHandler) renderTypeList() string {
	types := h.types.List()
	items := make([]any, len(types))
	for i, t := range types {
		items[i] = t
	}
	return h.RenderList("type-card", items, "No feature types", "Add a type to colour features on the map")
}

func (h *TypeHandler) renderTypeCard(t service.FeatureType) string {
	return h.Renderer.MustRender("type-card", t)
}

func typeCardID(id int64) string { return fmt.Sprintf("type-%d", id) }

func typeCardSelector(id int64) string { return "#" + typeCardID(id) }
