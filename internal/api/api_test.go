package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-geoview/internal/config"
	"github.com/joeblew999/plat-geoview/internal/cql"
	"github.com/joeblew999/plat-geoview/internal/humastar"
	"github.com/joeblew999/plat-geoview/internal/logger"
	"github.com/joeblew999/plat-geoview/internal/service"
	"github.com/joeblew999/plat-geoview/internal/wfs"
	"github.com/joeblew999/plat-geoview/internal/wms"
)

// pointFetcher serves n point features for every query.
type pointFetcher struct{ n int }

func (f pointFetcher) FetchPage(ctx context.Context, q wfs.Query, start, count int) (*wfs.Page, error) {
	page := &wfs.Page{StartIndex: start, Count: count, Total: f.n}
	for i := start; i < f.n && i < start+count; i++ {
		feat := geojson.NewFeature(orb.Point{float64(i), float64(i)})
		feat.ID = fmt.Sprintf("f.%d", i)
		page.Features = append(page.Features, feat)
	}
	return page, nil
}

func newTestAPI(t *testing.T) (humatest.TestAPI, *Services) {
	t.Helper()

	info := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},
			"properties":{"region_name":"Center","locality_name":"","distance_from_tel_aviv_km":4}}]}`))
	}))
	t.Cleanup(info.Close)

	cfg := config.Default()
	cfg.Loader.PageSize = 10
	cfg.GeoServer.WMSURL = info.URL

	svc := NewServices(cfg, Deps{
		DataDir: t.TempDir(),
		Fetcher: pointFetcher{n: 25},
		WMS:     wms.NewClient(time.Second, logger.Discard()),
		Logger:  logger.Discard(),
	})
	t.Cleanup(svc.Sessions.Close)

	links := humastar.NewLinks("viewer")
	hcfg := huma.DefaultConfig("geoview test", Version)
	hcfg.Transformers = append(hcfg.Transformers, links.Transformer())
	_, api := humatest.New(t, hcfg)
	RegisterRoutes(api, svc)
	NewInfoHandler("/tmp/data", false, cfg).RegisterRoutes(api)
	NewDBHandler(nil).RegisterRoutes(api)
	links.Build(api)
	return api, svc
}

func waitSession(t *testing.T, svc *Services, id string) {
	t.Helper()
	done := svc.Sessions.Done(id)
	require.NotNil(t, done)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v), resp.Body.String())
	return v
}

func TestHealthAndInfo(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", decode[HealthBody](t, resp).Status)

	resp = api.Get("/api/v1/info")
	require.Equal(t, http.StatusOK, resp.Code)
	info := decode[InfoBody](t, resp)
	assert.Equal(t, "plat-geoview", info.Name)
	assert.Equal(t, "test_nadlan", info.GeoServer.Workspace)
	assert.NotContains(t, info.Features, "duckdb")
}

func TestLayers(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/api/v1/layers")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[LayersBody](t, resp)
	require.Len(t, body.Layers, 3)
	assert.Equal(t, "assets", body.Layers[0].ID)
	assert.Equal(t, "test_nadlan:assets_polygons", body.Layers[0].TypeName)
	assert.Equal(t, "test_nadlan:assets_polygons", body.Layers[0].WMSParams["LAYERS"])
	assert.True(t, body.Layers[0].OnSurface)
	assert.False(t, body.Layers[2].OnSurface)
	assert.Equal(t, []service.SurfaceLayer{{ID: "assets"}, {ID: "mosdar"}}, body.Surface)

	resp = api.Get("/api/v1/layers/nope")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestPutVisibility(t *testing.T) {
	api, svc := newTestAPI(t)

	resp := api.Put("/api/v1/layers/assets/visibility", map[string]any{"visible": false})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[VisibilityBody](t, resp).Visible)
	assert.False(t, svc.Layers.Visible("assets"))

	resp = api.Put("/api/v1/layers/filtered/visibility", map[string]any{"visible": false})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = api.Put("/api/v1/layers/nope/visibility", map[string]any{"visible": true})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSessions(t *testing.T) {
	api, svc := newTestAPI(t)

	resp := api.Post("/api/v1/sessions", map[string]any{"layerId": "assets"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = api.Post("/api/v1/sessions", map[string]any{"layerId": "mosdar_wfs"})
	require.Equal(t, http.StatusAccepted, resp.Code)
	started := decode[service.Session](t, resp)
	assert.Equal(t, service.StatusLoading, started.Status)
	waitSession(t, svc, started.ID)

	resp = api.Get("/api/v1/sessions/" + started.ID + "?offset=20&limit=10")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[struct {
		Session service.Session   `json:"session"`
		Total   int               `json:"total"`
		Offset  int               `json:"offset"`
		Data    []json.RawMessage `json:"data"`
	}](t, resp)
	assert.Equal(t, service.StatusReady, page.Session.Status)
	assert.Equal(t, 25, page.Total)
	assert.Len(t, page.Data, 5)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/sessions/`+started.ID+`/geojson>; rel="geojson"; method="GET"; title="Download features"`)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/sessions/`+started.ID+`?offset=10&limit=10>; rel="prev"`)

	resp = api.Get("/api/v1/sessions/" + started.ID + "/geojson")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/geo+json", resp.Header().Get("Content-Type"))
	fc, err := geojson.UnmarshalFeatureCollection(resp.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 25)

	resp = api.Get("/api/v1/sessions/" + started.ID + "/tiles/0/0/0")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "gzip", resp.Header().Get("Content-Encoding"))
	layers, err := mvt.UnmarshalGzipped(resp.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "mosdar_wfs", layers[0].Name)

	resp = api.Get("/api/v1/sessions/" + started.ID + "/tiles/2/3/0")
	assert.Equal(t, http.StatusNoContent, resp.Code)
	resp = api.Get("/api/v1/sessions/" + started.ID + "/tiles/1/2/0")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = api.Get("/api/v1/layers/mosdar_wfs")
	require.Equal(t, http.StatusOK, resp.Code)
	view := decode[service.LayerView](t, resp)
	assert.True(t, view.OnSurface)
	assert.Equal(t, started.ID, view.SessionID)

	resp = api.Delete("/api/v1/sessions/" + started.ID)
	assert.Equal(t, http.StatusOK, resp.Code)
	resp = api.Get("/api/v1/sessions/" + started.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFilterExpression(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Post("/api/v1/filter/expression", map[string]any{"rows": []cql.Row{
		{Field: "region_name", Value: "O'Hara", Connective: cql.And},
		{Field: "county_name", Value: " 5 ", Connective: cql.Or},
	}})
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[ExpressionBody](t, resp)
	assert.True(t, body.Valid)
	assert.Equal(t, "region_name = 'O''Hara' OR county_name = 5", body.Expression)

	resp = api.Post("/api/v1/filter/expression", map[string]any{"rows": []cql.Row{
		{Field: "secret", Value: "x", Connective: cql.And},
	}})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestFilterSubmitAndClear(t *testing.T) {
	api, svc := newTestAPI(t)

	resp := api.Get("/api/v1/filter")
	require.Equal(t, http.StatusOK, resp.Code)
	form := decode[FilterFormBody](t, resp)
	assert.Equal(t, service.SlotEmpty, form.Slot.State)
	require.Len(t, form.Layers, 2)
	assert.True(t, form.Layers[0].Default)
	assert.Len(t, form.Fields, 3)

	resp = api.Post("/api/v1/filter", map[string]any{
		"typeName": "test_nadlan:nadlan_mosdar",
		"rows":     []cql.Row{{Field: "region_name", Connective: cql.And}},
	})
	require.Equal(t, http.StatusOK, resp.Code)
	submitted := decode[SubmitFilterBody](t, resp)
	assert.False(t, submitted.Applied)
	assert.Equal(t, service.SlotEmpty, submitted.Slot.State)

	resp = api.Post("/api/v1/filter", map[string]any{
		"typeName": "test_nadlan:nadlan_mosdar",
		"rows":     []cql.Row{{Field: "region_name", Value: "Center", Connective: cql.And}},
	})
	require.Equal(t, http.StatusOK, resp.Code)
	submitted = decode[SubmitFilterBody](t, resp)
	assert.True(t, submitted.Applied)
	assert.Equal(t, service.SlotLoading, submitted.Slot.State)
	waitSession(t, svc, submitted.Slot.SessionID)

	resp = api.Get("/api/v1/layers/filtered")
	require.Equal(t, http.StatusOK, resp.Code)
	view := decode[service.LayerView](t, resp)
	assert.True(t, view.OnSurface)
	assert.Equal(t, "red", view.Stroke)
	assert.Equal(t, "region_name = 'Center'", view.CQLFilter)

	resp = api.Delete("/api/v1/filter")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, service.SlotEmpty, decode[service.FilterSlot](t, resp).State)

	resp = api.Post("/api/v1/filter", map[string]any{
		"typeName": "other:layer",
		"rows":     []cql.Row{{Field: "region_name", Value: "Center", Connective: cql.And}},
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFeatureInfo(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/api/v1/featureinfo?x=100&y=200&resolution=1.5")
	require.Equal(t, http.StatusOK, resp.Code)
	popup := decode[service.Popup](t, resp)
	assert.Equal(t, "mosdar", popup.LayerID)
	assert.Equal(t, []wms.PopupLine{
		{Label: "Region - 1", Value: "Center"},
		{Label: "Distance From Tel-Aviv", Value: "4"},
	}, popup.Lines)

	resp = api.Get("/api/v1/featureinfo?layer=assets&x=1&y=1&resolution=1")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTablesWithoutDB(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/api/v1/tables")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
