package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default().GeoServer, cfg.GeoServer)
	assert.Equal(t, 100000, cfg.Loader.PageSize)
	assert.Equal(t, 60*time.Second, cfg.Loader.PageTimeout)
	require.Len(t, cfg.Layers, 3)
	assert.Equal(t, "mosdar_wfs", cfg.Layers[2].ID)
	assert.True(t, cfg.Layers[2].Preload)
	assert.True(t, cfg.Filter.Fields.Has("county_name"))
	assert.Len(t, cfg.Popup.Labels, 4)
	assert.Equal(t, "test_nadlan:nadlan_mosdar", cfg.Qualify("nadlan_mosdar"))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geoview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
geoserver:
  ows_url: http://gs:8080/geoserver/ows
  workspace: demo
loader:
  page_size: 500
  page_timeout: 5s
  pages_per_second: 2
layers:
  - id: parcels
    name: Parcels
    kind: wfs
    type_name: parcels
    visible: true
    preload: true
    sort_by: gid
filter:
  default_layer: parcels
  fields:
    - name: owner
      label: Owner
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://gs:8080/geoserver/ows", cfg.GeoServer.OWSURL)
	assert.Equal(t, "http://localhost:8080/geoserver/wms", cfg.GeoServer.WMSURL)
	assert.Equal(t, 500, cfg.Loader.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Loader.PageTimeout)
	assert.Equal(t, 2.0, cfg.Loader.PagesPerSecond)
	require.Len(t, cfg.Layers, 1)
	assert.Equal(t, "parcels", cfg.Layers[0].ID)
	assert.False(t, cfg.Filter.Fields.Has("region_name"))
	assert.True(t, cfg.Filter.Fields.Has("owner"))

	q := cfg.BaseQuery("parcels", cfg.Layers[0].SortBy)
	assert.Equal(t, "demo:parcels", q.TypeName)
	assert.Equal(t, "gid", q.SortBy)
	assert.Equal(t, "EPSG:3857", q.SRSName)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GEOVIEW_GEOSERVER_WORKSPACE", "prod")
	t.Setenv("GEOVIEW_LOADER_PAGE_SIZE", "250")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.GeoServer.Workspace)
	assert.Equal(t, 250, cfg.Loader.PageSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"page size", func(c *Config) { c.Loader.PageSize = 0 }},
		{"no endpoints", func(c *Config) { c.GeoServer.WMSURL, c.GeoServer.OWSURL = "", "" }},
		{"duplicate id", func(c *Config) { c.Layers[1].ID = c.Layers[0].ID }},
		{"reserved id", func(c *Config) { c.Layers[2].ID = FilteredLayerID }},
		{"bad kind", func(c *Config) { c.Layers[0].Kind = "xyz" }},
		{"missing type name", func(c *Config) { c.Layers[0].TypeName = "" }},
		{"wfs without ows", func(c *Config) { c.GeoServer.OWSURL = "" }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
