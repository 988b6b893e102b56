package api

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapping/internal/humastar"
	"github.com/joeblew999/plat-mapping/internal/metrics"
	"github.com/joeblew999/plat-mapping/internal/service"
)

// FeatureRowsInput is what the map loader sends for each page.
type FeatureRowsInput struct {
	Page          int    `query:"features_page" default:"1" minimum:"1" doc:"1-based page number"`
	PerPage       int    `query:"per_page" minimum:"0" doc:"Page size; 0 uses the server default"`
	ItemsQuery    string `query:"items_query" doc:"JSON item filter, e.g. {\"id\":[4,5]}"`
	FeaturesQuery string `query:"features_query" doc:"JSON feature filter, e.g. {\"type_id\":3}"`
}

type FeatureRowsOutput struct {
	Body []service.FeatureRow `doc:"Rows of [featureId, itemId, geometry, color, typeId, dates]"`
}

type FeatureIDInput struct {
	ID int64 `path:"id" doc:"Feature ID" example:"12"`
}

type PopupInput struct {
	FeatureID int64 `query:"feature_id" required:"true" doc:"Feature ID"`
}

type PopupOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// PopupData is what the feature-popup fragment renders.
type PopupData struct {
	Feature service.FeatureRecord
	Type    *service.FeatureType
}

// FeatureBody is a single feature with its hypermedia actions.
type FeatureBody struct {
	service.FeatureRecord
}

var featureActions = []humastar.ActionDef{
	{Rel: "edit", Pattern: "/api/v1/features/%d", Method: "PUT", Title: "Update feature"},
	{Rel: "delete", Pattern: "/api/v1/features/%d", Method: "DELETE", Title: "Delete feature"},
	{Rel: "popup", Pattern: "/api/v1/features/popup?feature_id=%d", Method: "GET", Title: "Popup content"},
}

func (b FeatureBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, featureActions)
}

type FeatureListInput struct {
	Page    int   `query:"page" default:"1" minimum:"1"`
	PerPage int   `query:"per_page" default:"50" minimum:"1" maximum:"1000"`
	TypeID  int64 `query:"type_id" doc:"Only features of this type"`
	ItemID  int64 `query:"item_id" doc:"Only features of this item"`
}

// RegisterFeatures registers the loader and feature CRUD routes.
func (h *APIHandler) RegisterFeatures(api huma.API) {
	huma.Get(api, "/api/v1/features", h.GetFeatureRows, huma.OperationTags("features"))
	huma.Post(api, "/api/v1/features", h.CreateFeature, huma.OperationTags("features"))
	huma.Get(api, "/api/v1/features/list", h.ListFeatures, huma.OperationTags("features"))
	huma.Get(api, "/api/v1/features/popup", h.GetPopup, huma.OperationTags("features"))
	huma.Get(api, "/api/v1/features/{id}", h.GetFeature, huma.OperationTags("features"))
	huma.Put(api, "/api/v1/features/{id}", h.PutFeature, huma.OperationTags("features"))
	huma.Delete(api, "/api/v1/features/{id}", h.DeleteFeature, huma.OperationTags("features"))
}

func (h *APIHandler) GetFeatureRows(ctx context.Context, input *FeatureRowsInput) (*FeatureRowsOutput, error) {
	perPage := input.PerPage
	if perPage == 0 {
		perPage = h.svc.perPage()
	}
	q, err := service.ParseFeatureQuery(input.ItemsQuery, input.FeaturesQuery, input.Page, perPage)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	rows, err := service.FeatureRows(ctx, h.svc.Features, h.svc.Types, q)
	if err != nil {
		return nil, statusFor(err)
	}
	metrics.FeaturePagesTotal.Inc()
	metrics.FeatureRowsTotal.Add(float64(len(rows)))
	h.svc.logger().Debug("features_page_served", "page", q.Page, "per_page", q.PerPage, "rows", len(rows))
	return &FeatureRowsOutput{Body: rows}, nil
}

func (h *APIHandler) ListFeatures(ctx context.Context, input *FeatureListInput) (*struct {
	Body humastar.PageBody[service.FeatureRecord]
}, error) {
	q := service.FeatureQuery{Page: input.Page, PerPage: input.PerPage}
	if input.TypeID != 0 {
		q.TypeIDs = []int64{input.TypeID}
	}
	if input.ItemID != 0 {
		q.ItemIDs = []int64{input.ItemID}
	}
	total, err := h.svc.Features.Count(ctx, q)
	if err != nil {
		return nil, statusFor(err)
	}
	data, err := h.svc.Features.Search(ctx, q)
	if err != nil {
		return nil, statusFor(err)
	}
	return &struct {
		Body humastar.PageBody[service.FeatureRecord]
	}{Body: humastar.PageBody[service.FeatureRecord]{
		Total: total, Page: input.Page, PerPage: input.PerPage, Data: data,
	}}, nil
}

func (h *APIHandler) GetPopup(ctx context.Context, input *PopupInput) (*PopupOutput, error) {
	html, err := h.popupHTML(ctx, input.FeatureID)
	if err != nil {
		return nil, err
	}
	return &PopupOutput{ContentType: "text/html; charset=utf-8", Body: []byte(html)}, nil
}

func (h *APIHandler) popupHTML(ctx context.Context, id int64) (string, error) {
	if h.svc.Popups != nil {
		if html, ok := h.svc.Popups.Get(ctx, id); ok {
			return html, nil
		}
	}
	f, err := h.svc.Features.Get(ctx, id)
	if err != nil {
		return "", statusFor(err)
	}
	data := PopupData{Feature: f}
	if f.TypeID != nil {
		if t, ok := h.svc.Types.Get(*f.TypeID); ok {
			data.Type = &t
		}
	}
	if h.svc.Renderer == nil {
		return "", huma.Error503ServiceUnavailable("popup templates not loaded")
	}
	html, err := h.svc.Renderer.Render("feature-popup", data)
	if err != nil {
		return "", huma.Error500InternalServerError(fmt.Sprintf("render popup %d: %v", id, err))
	}
	if h.svc.Popups != nil {
		h.svc.Popups.Set(ctx, id, html)
	}
	return html, nil
}

func (h *APIHandler) GetFeature(ctx context.Context, input *FeatureIDInput) (*struct{ Body FeatureBody }, error) {
	f, err := h.svc.Features.Get(ctx, input.ID)
	if err != nil {
		return nil, statusFor(err)
	}
	return &struct{ Body FeatureBody }{Body: FeatureBody{f}}, nil
}

func (h *APIHandler) CreateFeature(ctx context.Context, input *struct{ Body service.FeatureRecord }) (*struct{ Body FeatureBody }, error) {
	rec := input.Body
	rec.ID = 0
	return h.putFeature(ctx, rec)
}

func (h *APIHandler) PutFeature(ctx context.Context, input *struct {
	FeatureIDInput
	Body service.FeatureRecord
}) (*struct{ Body FeatureBody }, error) {
	rec := input.Body
	rec.ID = input.ID
	return h.putFeature(ctx, rec)
}

func (h *APIHandler) putFeature(ctx context.Context, rec service.FeatureRecord) (*struct{ Body FeatureBody }, error) {
	if rec.TypeID != nil {
		if _, ok := h.svc.Types.Get(*rec.TypeID); !ok {
			return nil, huma.Error400BadRequest(fmt.Sprintf("unknown type %d", *rec.TypeID))
		}
	}
	saved, err := h.svc.Features.Put(ctx, rec)
	if err != nil {
		return nil, statusFor(err)
	}
	h.svc.flushPopups(ctx)
	return &struct{ Body FeatureBody }{Body: FeatureBody{saved}}, nil
}

func (h *APIHandler) DeleteFeature(ctx context.Context, input *FeatureIDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Features.Delete(ctx, input.ID); err != nil {
		return nil, statusFor(err)
	}
	h.svc.flushPopups(ctx)
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Feature deleted"}}, nil
}
