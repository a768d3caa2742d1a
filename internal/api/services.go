package api

import (
	"log/slog"

	"github.com/joeblew999/plat-geoview/internal/config"
	"github.com/joeblew999/plat-geoview/internal/logger"
	"github.com/joeblew999/plat-geoview/internal/service"
	"github.com/joeblew999/plat-geoview/internal/wfs"
	"github.com/joeblew999/plat-geoview/internal/wms"
)

// Deps are the outside-world collaborators of the services.
type Deps struct {
	DataDir string
	Fetcher wfs.Fetcher
	WMS     *wms.Client
	Bus     *service.EventBus
	Metrics *service.Metrics
	Logger  *slog.Logger
}

// NewServices wires the services for a catalog. WMS layers are placed on
// the surface immediately; WFS layers join it as their sessions finish.
func NewServices(cfg *config.Config, deps Deps) *Services {
	log := logger.Or(deps.Logger)
	bus := deps.Bus
	if bus == nil {
		bus = service.NewEventBus()
	}

	catalog := service.LayersFromConfig(cfg)
	layers := service.NewLayerService(deps.DataDir, catalog, bus)
	surface := service.NewSurface(bus)
	for _, l := range catalog {
		if l.Kind == config.KindWMS {
			surface.Add(service.SurfaceLayer{ID: l.ID})
		}
	}

	loader := wfs.NewLoader(deps.Fetcher, cfg.Loader.PageSize, log.With("component", "wfs"))
	sessions := service.NewSessionService(loader, bus, deps.Metrics, log.With("component", "sessions"))
	surface.TrackSessions(sessions)

	allowed := make([]string, 0, len(cfg.Filter.Layers))
	for _, l := range cfg.Filter.Layers {
		allowed = append(allowed, cfg.Qualify(l.TypeName))
	}
	filter := service.NewFilterService(service.FilterOptions{
		Layers: allowed,
		Fields: cfg.Filter.Fields,
		Query: func(typeName string) wfs.Query {
			q := cfg.BaseQuery(typeName, "")
			if l, ok := layers.ByTypeName(typeName); ok && l.SortBy != "" {
				q.SortBy = l.SortBy
			}
			return q
		},
	}, sessions, surface, bus, log.With("component", "filter"))

	labels := make([]wms.Label, len(cfg.Popup.Labels))
	for i, l := range cfg.Popup.Labels {
		labels[i] = wms.Label{Key: l.Key, Label: l.Label}
	}
	client := deps.WMS
	if client == nil {
		client = wms.NewClient(cfg.Loader.PageTimeout, log)
	}
	popup := service.NewPopupService(service.PopupOptions{
		Endpoint:     cfg.GeoServer.WMSURL,
		CRS:          cfg.Loader.SRSName,
		InfoFormat:   cfg.Popup.InfoFormat,
		FeatureCount: cfg.Popup.FeatureCount,
		Labels:       labels,
	}, client, layers, log.With("component", "popup"))

	return &Services{
		Config:   cfg,
		Bus:      bus,
		Layers:   layers,
		Surface:  surface,
		Sessions: sessions,
		Filter:   filter,
		Popup:    popup,
		Catalog: &service.Catalog{
			Layers:   layers,
			Surface:  surface,
			Sessions: sessions,
			Filter:   filter,
			Filtered: service.LayerConfig{
				Name:   "Filter result",
				Fill:   cfg.Filter.Fill,
				Stroke: cfg.Filter.Stroke,
				Width:  cfg.Filter.Width,
			},
		},
	}
}

// Preload starts the sessions of WFS layers marked preload.
func (s *Services) Preload() ([]service.Session, error) {
	return s.Sessions.Preload(s.Layers.List(), func(l service.LayerConfig) wfs.Query {
		return service.QueryFor(s.Config, l)
	})
}
