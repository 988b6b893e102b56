package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapping/internal/service"
)

// InfoHandler reports the running backends and catalog size.
type InfoHandler struct {
	svc     *Services
	dataDir string
	store   string
	cache   string
}

func NewInfoHandler(svc *Services, dataDir, store, cache string) *InfoHandler {
	return &InfoHandler{svc: svc, dataDir: dataDir, store: store, cache: cache}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name         string `json:"name"`
	DataDir      string `json:"data_dir"`
	Store        string `json:"store" enum:"file,duckdb"`
	Cache        string `json:"cache" enum:"memory,redis"`
	FeatureCount int    `json:"feature_count"`
	TypeCount    int    `json:"type_count"`
	PerPage      int    `json:"per_page" doc:"Rows per features page when the client sends none"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:    "plat-mapping",
		DataDir: h.dataDir,
		Store:   h.store,
		Cache:   h.cache,
		PerPage: h.svc.perPage(),
	}
	if h.svc.Features != nil {
		n, err := h.svc.Features.Count(ctx, service.FeatureQuery{})
		if err != nil {
			return nil, huma.Error500InternalServerError("counting features", err)
		}
		body.FeatureCount = n
	}
	if h.svc.Types != nil {
		body.TypeCount = len(h.svc.Types.List())
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
