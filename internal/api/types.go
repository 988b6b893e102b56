package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapping/internal/metrics"
	"github.com/joeblew999/plat-mapping/internal/service"
)

// TypeInput is the body of the type mutations. Fields are optional in the
// schema so missing values come back as missing_data rather than a
// validation error.
type TypeInput struct {
	ID    int64  `json:"id,omitempty" doc:"Type ID (update, delete)"`
	Label string `json:"label,omitempty" doc:"Display label (add; optional on update)"`
	Color string `json:"color,omitempty" doc:"CSS hex colour, compared case-insensitively"`
}

type TypeResult struct {
	Success bool                 `json:"success"`
	Type    *service.FeatureType `json:"type,omitempty"`
	// Cleared is the number of features that lost the deleted type.
	Cleared int `json:"cleared,omitempty"`
}

type TypeIDInput struct {
	ID int64 `path:"id" doc:"Type ID" example:"3"`
}

// RegisterTypes registers feature type routes.
func (h *APIHandler) RegisterTypes(api huma.API) {
	huma.Get(api, "/api/v1/types", h.GetTypes, huma.OperationTags("types"))
	huma.Get(api, "/api/v1/types/{id}", h.GetType, huma.OperationTags("types"))
	huma.Post(api, "/api/v1/types/add", h.AddType, huma.OperationTags("types"))
	huma.Post(api, "/api/v1/types/update", h.UpdateType, huma.OperationTags("types"))
	huma.Post(api, "/api/v1/types/delete", h.DeleteType, huma.OperationTags("types"))
}

func (h *APIHandler) GetTypes(ctx context.Context, input *struct{}) (*struct{ Body []service.FeatureType }, error) {
	return &struct{ Body []service.FeatureType }{Body: h.svc.Types.List()}, nil
}

func (h *APIHandler) GetType(ctx context.Context, input *TypeIDInput) (*struct{ Body service.FeatureType }, error) {
	t, ok := h.svc.Types.Get(input.ID)
	if !ok {
		return nil, typeError(service.ErrNotFound)
	}
	return &struct{ Body service.FeatureType }{Body: t}, nil
}

func (h *APIHandler) AddType(ctx context.Context, input *struct{ Body TypeInput }) (*struct{ Body service.FeatureType }, error) {
	t, err := h.svc.Types.Create(input.Body.Label, input.Body.Color)
	if err != nil {
		return nil, typeError(err)
	}
	metrics.TypeMutationsTotal.WithLabelValues("created").Inc()
	return &struct{ Body service.FeatureType }{Body: t}, nil
}

func (h *APIHandler) UpdateType(ctx context.Context, input *struct{ Body TypeInput }) (*struct{ Body TypeResult }, error) {
	t, err := h.svc.Types.Update(input.Body.ID, input.Body.Label, input.Body.Color)
	if err != nil {
		return nil, typeError(err)
	}
	metrics.TypeMutationsTotal.WithLabelValues("updated").Inc()
	h.svc.flushPopups(ctx)
	return &struct{ Body TypeResult }{Body: TypeResult{Success: true, Type: &t}}, nil
}

// DeleteType removes a type and clears it from its features, which fall
// back to their own marker colour.
func (h *APIHandler) DeleteType(ctx context.Context, input *struct{ Body TypeInput }) (*struct{ Body TypeResult }, error) {
	if input.Body.ID == 0 {
		return nil, typeError(service.ErrMissingData)
	}
	if err := h.svc.Types.Delete(input.Body.ID); err != nil {
		return nil, typeError(err)
	}
	cleared, err := h.svc.Features.ClearType(ctx, input.Body.ID)
	if err != nil {
		h.svc.logger().Error("type_clear_failed", "type", input.Body.ID, "error", err)
	}
	metrics.TypeMutationsTotal.WithLabelValues("deleted").Inc()
	h.svc.flushPopups(ctx)
	return &struct{ Body TypeResult }{Body: TypeResult{Success: true, Cleared: cleared}}, nil
}
