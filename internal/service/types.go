// Package service contains business logic for the plat-geoview viewer:
// the layer catalog and its visibility map, WFS fetch sessions, the map
// surface, the filtered layer slot and DuckDB snapshots.
package service

import (
	"errors"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geoview/internal/config"
	"github.com/joeblew999/plat-geoview/internal/wms"
)

// FilteredLayerID is the surface and visibility id of the filter result.
const FilteredLayerID = config.FilteredLayerID

var (
	ErrUnknownLayer    = errors.New("unknown layer")
	ErrSessionNotFound = errors.New("session not found")
	ErrNotReady        = errors.New("session is not ready")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrClosed          = errors.New("service closed")
)

// LayerConfig is a catalog layer as served to the viewer.
type LayerConfig struct {
	ID        string            `json:"id" doc:"Unique layer identifier" example:"mosdar_wfs"`
	Name      string            `json:"name" doc:"Display name" example:"Nadlan Mosdar (WFS)"`
	Kind      string            `json:"kind" enum:"wms,wfs" doc:"wms tiles or wfs vectors" example:"wfs"`
	TypeName  string            `json:"typeName" doc:"Workspace-qualified GeoServer layer" example:"test_nadlan:nadlan_mosdar"`
	Visible   bool              `json:"defaultVisible" doc:"Whether the layer is visible by default"`
	Preload   bool              `json:"preload,omitempty" doc:"WFS layer loaded at startup"`
	Popup     bool              `json:"popup,omitempty" doc:"Answers feature info clicks"`
	Fill      string            `json:"fill,omitempty" doc:"Fill color (CSS)" example:"rgba(128, 0, 128, 0.3)"`
	Stroke    string            `json:"stroke,omitempty" doc:"Stroke color (CSS)" example:"purple"`
	Width     float64           `json:"width,omitempty" doc:"Stroke width"`
	SortBy    string            `json:"sortBy,omitempty" doc:"Stable WFS sort key"`
	CQLFilter string            `json:"cqlFilter,omitempty" doc:"Fixed server-side predicate"`
	WMSParams map[string]string `json:"wmsParams,omitempty" doc:"Tile source parameters for WMS layers"`
}

// LayersFromConfig converts catalog entries, qualifying type names.
func LayersFromConfig(cfg *config.Config) []LayerConfig {
	out := make([]LayerConfig, 0, len(cfg.Layers))
	for _, l := range cfg.Layers {
		lc := LayerConfig{
			ID:        l.ID,
			Name:      l.Name,
			Kind:      l.Kind,
			TypeName:  cfg.Qualify(l.TypeName),
			Visible:   l.Visible,
			Preload:   l.Preload,
			Popup:     l.Popup,
			Fill:      l.Fill,
			Stroke:    l.Stroke,
			Width:     l.Width,
			SortBy:    l.SortBy,
			CQLFilter: l.CQLFilter,
		}
		if l.Kind == config.KindWMS {
			lc.WMSParams = wms.LayerParams(lc.TypeName, l.CQLFilter)
		}
		out = append(out, lc)
	}
	return out
}

// SessionStatus is the state of a fetch session.
type SessionStatus string

const (
	StatusLoading SessionStatus = "loading"
	StatusReady   SessionStatus = "ready"
	StatusFailed  SessionStatus = "failed"
)

// Session is one paged load of a feature collection. Features is set only
// once the session is ready and is never mutated afterwards.
type Session struct {
	ID         string             `json:"id" doc:"Session identifier"`
	LayerID    string             `json:"layerId" doc:"Layer the session feeds" example:"mosdar_wfs"`
	TypeName   string             `json:"typeName" doc:"Qualified GeoServer type name"`
	CQLFilter  string             `json:"cqlFilter,omitempty" doc:"Server-side predicate"`
	Status     SessionStatus      `json:"status" enum:"loading,ready,failed" doc:"Load status"`
	Loaded     int                `json:"loaded" doc:"Features received so far"`
	Total      int                `json:"total" doc:"Server-reported total, -1 when unknown"`
	Pages      int                `json:"pages" doc:"Pages fetched"`
	Error      string             `json:"error,omitempty" doc:"Failure reason"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt,omitzero"`
	Features   []*geojson.Feature `json:"-"`
}

// Collection returns the assembled features as a FeatureCollection.
func (s Session) Collection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = s.Features
	return fc
}

// SlotState is the state of the filtered layer slot.
type SlotState string

const (
	SlotEmpty   SlotState = "empty"
	SlotLoading SlotState = "loading"
	SlotReady   SlotState = "ready"
)

// FilterSlot is the single filtered layer.
type FilterSlot struct {
	State      SlotState         `json:"state" enum:"empty,loading,ready" doc:"Slot state"`
	TypeName   string            `json:"typeName,omitempty" doc:"Filtered GeoServer layer"`
	Expression string            `json:"expression,omitempty" doc:"CQL expression" example:"region_name = 'Tel Aviv' OR county_name = 5"`
	SessionID  string            `json:"sessionId,omitempty" doc:"Session loading the result"`
	Features   int               `json:"features" doc:"Matched features once ready"`
	Error      string            `json:"error,omitempty" doc:"Reason the last load failed"`
	WMSParams  map[string]string `json:"wmsParams,omitempty" doc:"Tile source parameters for drawing the filter as WMS"`
}
