// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapping/internal/cache"
	"github.com/joeblew999/plat-mapping/internal/service"
	"github.com/joeblew999/plat-mapping/internal/templates"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Types    *service.TypeService
	Features service.FeatureStore
	Sources  *service.SourceService
	Popups   cache.PopupCache
	Renderer *templates.Renderer
	// PerPage is the features page size when a request names none.
	PerPage int
	Logger  *slog.Logger
}

func (s *Services) perPage() int {
	if s.PerPage > 0 {
		return s.PerPage
	}
	return service.DefaultPerPage
}

func (s *Services) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

func (s *Services) flushPopups(ctx context.Context) {
	if s.Popups != nil {
		s.Popups.Flush(ctx)
	}
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

// statusFor maps service errors to huma errors for the non-type routes.
func statusFor(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrMissingData):
		return huma.Error400BadRequest(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
