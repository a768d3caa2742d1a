package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoview/internal/service"
)

type LayersBody struct {
	Layers  []service.LayerView    `json:"layers" doc:"Catalog layers with live state, filter result last"`
	Surface []service.SurfaceLayer `json:"surface" doc:"Vector layers on the map, in draw order"`
}

type LayerOutput struct {
	Body service.LayerView
}

type VisibilityInput struct {
	IDInput
	Body struct {
		Visible bool `json:"visible" doc:"New visibility"`
	}
}

type VisibilityBody struct {
	ID      string `json:"id" doc:"Layer ID"`
	Visible bool   `json:"visible" doc:"Visibility after the change"`
}

// RegisterLayers registers layer catalog routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{id}/visibility", h.PutVisibility, huma.OperationTags("layers"))
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body LayersBody }, error) {
	return &struct{ Body LayersBody }{Body: LayersBody{
		Layers:  h.svc.Catalog.Views(),
		Surface: h.svc.Surface.List(),
	}}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	v, ok := h.svc.Catalog.View(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	return &LayerOutput{Body: v}, nil
}

func (h *APIHandler) PutVisibility(ctx context.Context, input *VisibilityInput) (*struct{ Body VisibilityBody }, error) {
	if err := h.svc.Layers.SetVisible(input.ID, input.Body.Visible); err != nil {
		return nil, toHTTP(err)
	}
	return &struct{ Body VisibilityBody }{Body: VisibilityBody{
		ID: input.ID, Visible: h.svc.Layers.Visible(input.ID),
	}}, nil
}
