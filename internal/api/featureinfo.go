package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-geoview/internal/service"
)

type FeatureInfoInput struct {
	Layer      string  `query:"layer" doc:"Popup layer ID, defaults to the first popup layer"`
	X          float64 `query:"x" required:"true" doc:"Click X in the map CRS"`
	Y          float64 `query:"y" required:"true" doc:"Click Y in the map CRS"`
	Resolution float64 `query:"resolution" required:"true" exclusiveMinimum:"0" doc:"Map units per pixel"`
}

// RegisterFeatureInfo registers the click popup route.
func (h *APIHandler) RegisterFeatureInfo(api huma.API) {
	huma.Get(api, "/api/v1/featureinfo", h.GetFeatureInfo, huma.OperationTags("featureinfo"))
}

func (h *APIHandler) GetFeatureInfo(ctx context.Context, input *FeatureInfoInput) (*struct{ Body service.Popup }, error) {
	popup, err := h.svc.Popup.Lookup(ctx, input.Layer, orb.Point{input.X, input.Y}, input.Resolution)
	if err != nil {
		if errors.Is(err, service.ErrUnknownLayer) {
			return nil, toHTTP(err)
		}
		return nil, huma.Error502BadGateway("feature info failed", err)
	}
	return &struct{ Body service.Popup }{Body: popup}, nil
}
