package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-geoview/internal/humastar"
)

type PopupInput struct {
	Layer string  `query:"layer" doc:"Popup layer ID"`
	X     float64 `query:"x" required:"true" doc:"Click X in the map CRS"`
	Y     float64 `query:"y" required:"true" doc:"Click Y in the map CRS"`
	Res   float64 `query:"res" required:"true" exclusiveMinimum:"0" doc:"Map units per pixel"`
}

// RegisterPopup registers the map click popup route.
func (h *Handler) RegisterPopup(api huma.API) {
	huma.Get(api, "/api/v1/viewer/popup", h.Popup, huma.OperationTags(Tag))
}

func (h *Handler) Popup(ctx context.Context, input *PopupInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		popup, err := h.svc.Popup.Lookup(ctx, input.Layer, orb.Point{input.X, input.Y}, input.Res)
		if err != nil {
			sse.Error("Feature info failed: " + err.Error())
			return
		}
		sse.Patch(h.Render("popup", popup.Lines), "#popup")
	}), nil
}
