// Package config loads the viewer's layer catalog.
//
// The catalog is a YAML file read with viper. Every key can be overridden
// from the environment with the GEOVIEW_ prefix, dots becoming underscores
// (GEOVIEW_GEOSERVER_WMS_URL, GEOVIEW_LOADER_PAGE_SIZE, ...). A missing file
// is not an error: the defaults describe the original Israel real estate
// map.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joeblew999/plat-geoview/internal/cql"
	"github.com/joeblew999/plat-geoview/internal/wfs"
)

// EnvPrefix is the prefix for catalog environment overrides.
const EnvPrefix = "GEOVIEW"

// FilteredLayerID is reserved for the filter result and cannot name a
// catalog layer.
const FilteredLayerID = "filtered"

// Layer kinds.
const (
	KindWMS = "wms"
	KindWFS = "wfs"
)

// Config is the full catalog.
type Config struct {
	GeoServer GeoServer `mapstructure:"geoserver"`
	Loader    Loader    `mapstructure:"loader"`
	Layers    []Layer   `mapstructure:"layers"`
	Filter    Filter    `mapstructure:"filter"`
	Popup     Popup     `mapstructure:"popup"`
	View      View      `mapstructure:"view"`
}

// GeoServer holds the remote service endpoints.
type GeoServer struct {
	WMSURL    string `mapstructure:"wms_url"`
	OWSURL    string `mapstructure:"ows_url"`
	Workspace string `mapstructure:"workspace"`
}

// Loader tunes WFS paging.
type Loader struct {
	PageSize       int           `mapstructure:"page_size"`
	PageTimeout    time.Duration `mapstructure:"page_timeout"`
	PagesPerSecond float64       `mapstructure:"pages_per_second"`
	SRSName        string        `mapstructure:"srs_name"`
	OutputFormat   string        `mapstructure:"output_format"`
	SortBy         string        `mapstructure:"sort_by"`
}

// Layer is one catalog entry.
type Layer struct {
	ID        string  `mapstructure:"id"`
	Name      string  `mapstructure:"name"`
	Kind      string  `mapstructure:"kind"`      // wms or wfs
	TypeName  string  `mapstructure:"type_name"` // unqualified or workspace:name
	Visible   bool    `mapstructure:"visible"`
	Preload   bool    `mapstructure:"preload"` // wfs: load at startup
	Popup     bool    `mapstructure:"popup"`   // wms: answers feature info clicks
	Fill      string  `mapstructure:"fill"`
	Stroke    string  `mapstructure:"stroke"`
	Width     float64 `mapstructure:"width"`
	SortBy    string  `mapstructure:"sort_by"`
	CQLFilter string  `mapstructure:"cql_filter"`
}

// Filter configures the query form.
type Filter struct {
	DefaultLayer string        `mapstructure:"default_layer"`
	Layers       []FilterLayer `mapstructure:"layers"`
	Fields       cql.Fields    `mapstructure:"fields"`
	Fill         string        `mapstructure:"fill"`
	Stroke       string        `mapstructure:"stroke"`
	Width        float64       `mapstructure:"width"`
}

// FilterLayer is one option of the form's layer select.
type FilterLayer struct {
	TypeName string `mapstructure:"type_name"`
	Label    string `mapstructure:"label"`
}

// Popup configures the click popup.
type Popup struct {
	FeatureCount int     `mapstructure:"feature_count"`
	InfoFormat   string  `mapstructure:"info_format"`
	Labels       []Label `mapstructure:"labels"`
}

// Label maps a feature attribute to a popup caption.
type Label struct {
	Key   string `mapstructure:"key"`
	Label string `mapstructure:"label"`
}

// View is the initial map view.
type View struct {
	Center []float64 `mapstructure:"center"` // lon, lat
	Zoom   float64   `mapstructure:"zoom"`
}

// Default returns the built-in catalog.
func Default() *Config {
	return &Config{
		GeoServer: GeoServer{
			WMSURL:    "http://localhost:8080/geoserver/wms",
			OWSURL:    "http://localhost:8080/geoserver/ows",
			Workspace: "test_nadlan",
		},
		Loader: Loader{
			PageSize:     wfs.DefaultPageSize,
			PageTimeout:  wfs.DefaultPageTimeout,
			SRSName:      "EPSG:3857",
			OutputFormat: "application/json",
			SortBy:       "id",
		},
		Layers: []Layer{
			{ID: "assets", Name: "Assets Polygons", Kind: KindWMS, TypeName: "assets_polygons", Visible: true},
			{ID: "mosdar", Name: "Nadlan Mosdar (WMS)", Kind: KindWMS, TypeName: "dis_from_tel_aviv_1", Visible: true, Popup: true},
			{ID: "mosdar_wfs", Name: "Nadlan Mosdar (WFS)", Kind: KindWFS, TypeName: "nadlan_mosdar", Visible: true, Preload: true,
				Fill: "rgba(128, 0, 128, 0.3)", Stroke: "purple", Width: 2},
		},
		Filter: Filter{
			DefaultLayer: "nadlan_mosdar",
			Layers: []FilterLayer{
				{TypeName: "nadlan_mosdar", Label: "Nadlan Mosdar"},
				{TypeName: "assets_polygons", Label: "Assets Polygons"},
			},
			Fields: cql.Fields{
				{Name: "region_name", Label: "Region"},
				{Name: "locality_name", Label: "Locality"},
				{Name: "county_name", Label: "County"},
			},
			Fill:   "rgba(255, 0, 0, 0.3)",
			Stroke: "red",
			Width:  2,
		},
		Popup: Popup{
			FeatureCount: 1,
			InfoFormat:   "application/json",
			Labels: []Label{
				{Key: "region_name", Label: "Region - 1"},
				{Key: "locality_name", Label: "Locality"},
				{Key: "county_name", Label: "County"},
				{Key: "distance_from_tel_aviv_km", Label: "Distance From Tel-Aviv"},
			},
		},
		View: View{Center: []float64{35.2137, 31.7683}, Zoom: 8},
	}
}

// Load reads the catalog at path over the defaults. An empty path or a
// missing file yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !missing(err) {
			return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func missing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// setDefaults registers scalar defaults so AutomaticEnv can see the keys,
// and list defaults so a file may omit them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("geoserver.wms_url", d.GeoServer.WMSURL)
	v.SetDefault("geoserver.ows_url", d.GeoServer.OWSURL)
	v.SetDefault("geoserver.workspace", d.GeoServer.Workspace)

	v.SetDefault("loader.page_size", d.Loader.PageSize)
	v.SetDefault("loader.page_timeout", d.Loader.PageTimeout)
	v.SetDefault("loader.pages_per_second", d.Loader.PagesPerSecond)
	v.SetDefault("loader.srs_name", d.Loader.SRSName)
	v.SetDefault("loader.output_format", d.Loader.OutputFormat)
	v.SetDefault("loader.sort_by", d.Loader.SortBy)

	v.SetDefault("layers", layerMaps(d.Layers))

	v.SetDefault("filter.default_layer", d.Filter.DefaultLayer)
	v.SetDefault("filter.layers", filterLayerMaps(d.Filter.Layers))
	v.SetDefault("filter.fields", fieldMaps(d.Filter.Fields))
	v.SetDefault("filter.fill", d.Filter.Fill)
	v.SetDefault("filter.stroke", d.Filter.Stroke)
	v.SetDefault("filter.width", d.Filter.Width)

	v.SetDefault("popup.feature_count", d.Popup.FeatureCount)
	v.SetDefault("popup.info_format", d.Popup.InfoFormat)
	v.SetDefault("popup.labels", labelMaps(d.Popup.Labels))

	v.SetDefault("view.center", d.View.Center)
	v.SetDefault("view.zoom", d.View.Zoom)
}

func layerMaps(layers []Layer) []map[string]any {
	out := make([]map[string]any, len(layers))
	for i, l := range layers {
		out[i] = map[string]any{
			"id": l.ID, "name": l.Name, "kind": l.Kind, "type_name": l.TypeName,
			"visible": l.Visible, "preload": l.Preload, "popup": l.Popup,
			"fill": l.Fill, "stroke": l.Stroke, "width": l.Width,
			"sort_by": l.SortBy, "cql_filter": l.CQLFilter,
		}
	}
	return out
}

func filterLayerMaps(layers []FilterLayer) []map[string]any {
	out := make([]map[string]any, len(layers))
	for i, l := range layers {
		out[i] = map[string]any{"type_name": l.TypeName, "label": l.Label}
	}
	return out
}

func fieldMaps(fields cql.Fields) []map[string]any {
	out := make([]map[string]any, len(fields))
	for i, f := range fields {
		out[i] = map[string]any{"name": f.Name, "label": f.Label}
	}
	return out
}

func labelMaps(labels []Label) []map[string]any {
	out := make([]map[string]any, len(labels))
	for i, l := range labels {
		out[i] = map[string]any{"key": l.Key, "label": l.Label}
	}
	return out
}

// Validate checks the catalog for internal consistency.
func (c *Config) Validate() error {
	if c.Loader.PageSize <= 0 {
		return fmt.Errorf("loader.page_size must be positive, got %d", c.Loader.PageSize)
	}
	if c.GeoServer.WMSURL == "" && c.GeoServer.OWSURL == "" {
		return errors.New("geoserver.wms_url or geoserver.ows_url is required")
	}

	seen := make(map[string]bool, len(c.Layers))
	for i, l := range c.Layers {
		if l.ID == "" {
			return fmt.Errorf("layers[%d]: id is required", i)
		}
		if l.ID == FilteredLayerID {
			return fmt.Errorf("layers[%d]: id %q is reserved for the filter result", i, l.ID)
		}
		if seen[l.ID] {
			return fmt.Errorf("layers[%d]: duplicate id %q", i, l.ID)
		}
		seen[l.ID] = true
		if l.TypeName == "" {
			return fmt.Errorf("layer %q: type_name is required", l.ID)
		}
		switch l.Kind {
		case KindWMS:
			if c.GeoServer.WMSURL == "" {
				return fmt.Errorf("layer %q: wms layer needs geoserver.wms_url", l.ID)
			}
		case KindWFS:
			if c.GeoServer.OWSURL == "" {
				return fmt.Errorf("layer %q: wfs layer needs geoserver.ows_url", l.ID)
			}
		default:
			return fmt.Errorf("layer %q: kind must be wms or wfs, got %q", l.ID, l.Kind)
		}
	}
	return nil
}

// Qualify returns name qualified with the catalog workspace.
func (c *Config) Qualify(name string) string {
	return wfs.Qualify(c.GeoServer.Workspace, name)
}

// BaseQuery returns the WFS query for a type name, before paging.
func (c *Config) BaseQuery(typeName, sortBy string) wfs.Query {
	if sortBy == "" {
		sortBy = c.Loader.SortBy
	}
	return wfs.Query{
		Endpoint:     c.GeoServer.OWSURL,
		TypeName:     c.Qualify(typeName),
		OutputFormat: c.Loader.OutputFormat,
		SRSName:      c.Loader.SRSName,
		SortBy:       sortBy,
	}
}
