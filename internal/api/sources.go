package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapping/internal/service"
)

type SourceNameInput struct {
	Name string `path:"name" doc:"GeoJSON file in data/sources" example:"mills.geojson"`
}

// RegisterSources registers source listing and import routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
	huma.Post(api, "/api/v1/sources/{name}/import", h.ImportSource, huma.OperationTags("sources"))
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc.Sources == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Sources.List()
	if err != nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

func (h *APIHandler) ImportSource(ctx context.Context, input *SourceNameInput) (*struct{ Body service.ImportResult }, error) {
	if h.svc.Sources == nil {
		return nil, huma.Error503ServiceUnavailable("sources not configured")
	}
	res, err := h.svc.Sources.Import(ctx, input.Name, h.svc.Features)
	if err != nil {
		return nil, statusFor(err)
	}
	h.svc.flushPopups(ctx)
	h.svc.logger().Info("source_imported", "file", res.File, "imported", res.Imported, "skipped", res.Skipped)
	return &struct{ Body service.ImportResult }{Body: res}, nil
}
