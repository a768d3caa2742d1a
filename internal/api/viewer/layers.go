package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoview/internal/humastar"
)

type ToggleInput struct {
	ID string `path:"id" doc:"Layer ID" example:"mosdar_wfs"`
}

// RegisterLayers registers the layer panel routes.
func (h *Handler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/viewer/layers", h.Layers, huma.OperationTags(Tag))
	huma.Put(api, "/api/v1/viewer/layers/{id}/toggle", h.Toggle, huma.OperationTags(Tag))
}

func (h *Handler) Layers(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.renderLayers(), "#layer-list")
	}), nil
}

func (h *Handler) Toggle(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		if _, err := h.svc.Layers.Toggle(input.ID); err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Patch(h.renderLayers(), "#layer-list")
	}), nil
}

func (h *Handler) renderLayers() string {
	views := h.svc.Catalog.Views()
	items := make([]any, len(views))
	for i, v := range views {
		items[i] = v
	}
	return h.RenderList("layer-toggle", items, "No layers configured", "Add layers to geoview.yaml")
}
