package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-geoview/internal/logger"
	"github.com/joeblew999/plat-geoview/internal/wms"
)

// PopupOptions configures feature info lookups.
type PopupOptions struct {
	Endpoint     string
	CRS          string
	InfoFormat   string
	FeatureCount int
	Labels       []wms.Label
}

// Popup is the result of a map click.
type Popup struct {
	LayerID  string          `json:"layerId" doc:"Layer that answered"`
	Features int             `json:"features" doc:"Features under the click"`
	Lines    []wms.PopupLine `json:"lines" doc:"Labelled attributes of the first feature"`
}

// PopupService answers map clicks with GetFeatureInfo against popup layers.
type PopupService struct {
	opts   PopupOptions
	client *wms.Client
	layers *LayerService
	log    *slog.Logger
}

// NewPopupService creates a popup service.
func NewPopupService(opts PopupOptions, client *wms.Client, layers *LayerService, log *slog.Logger) *PopupService {
	if opts.CRS == "" {
		opts.CRS = "EPSG:3857"
	}
	if opts.FeatureCount <= 0 {
		opts.FeatureCount = 1
	}
	return &PopupService{opts: opts, client: client, layers: layers, log: logger.Or(log)}
}

// DefaultLayer returns the first catalog layer that answers clicks.
func (p *PopupService) DefaultLayer() (LayerConfig, bool) {
	for _, l := range p.layers.List() {
		if l.Popup {
			return l, true
		}
	}
	return LayerConfig{}, false
}

// Lookup queries the layer under a click at coordinate (in the popup CRS)
// for a view resolution. An empty layerID uses DefaultLayer.
func (p *PopupService) Lookup(ctx context.Context, layerID string, coordinate orb.Point, resolution float64) (Popup, error) {
	var (
		l  LayerConfig
		ok bool
	)
	if layerID == "" {
		l, ok = p.DefaultLayer()
	} else {
		l, ok = p.layers.Get(layerID)
	}
	if !ok || !l.Popup {
		return Popup{}, fmt.Errorf("%w: %q does not answer feature info", ErrUnknownLayer, layerID)
	}

	features, err := p.client.FeatureInfo(ctx, wms.FeatureInfoRequest{
		Endpoint:     p.opts.Endpoint,
		Layer:        l.TypeName,
		Coordinate:   coordinate,
		Resolution:   resolution,
		CRS:          p.opts.CRS,
		InfoFormat:   p.opts.InfoFormat,
		FeatureCount: p.opts.FeatureCount,
		CQLFilter:    l.CQLFilter,
	})
	if err != nil {
		p.log.Error("feature info failed", "layer", l.ID, "err", err)
		return Popup{}, err
	}

	out := Popup{LayerID: l.ID, Features: len(features), Lines: []wms.PopupLine{}}
	if len(features) > 0 {
		out.Lines = wms.Popup(features[0].Properties, p.opts.Labels)
	}
	return out, nil
}
