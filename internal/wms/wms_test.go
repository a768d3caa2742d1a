package wms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerParams(t *testing.T) {
	p := LayerParams("ws:assets", "")
	assert.Equal(t, "ws:assets", p["LAYERS"])
	assert.Equal(t, "image/png", p["FORMAT"])
	assert.NotContains(t, p, "CQL_FILTER")

	p = LayerParams("ws:assets", "county_name = 5")
	assert.Equal(t, "county_name = 5", p["CQL_FILTER"])
}

func TestFeatureInfoRequest_Values(t *testing.T) {
	r := FeatureInfoRequest{
		Endpoint:     "http://gs/geoserver/wms",
		Layer:        "ws:dis",
		Coordinate:   orb.Point{1000, 2000},
		Resolution:   2,
		CRS:          "EPSG:3857",
		InfoFormat:   "application/json",
		FeatureCount: 1,
	}

	b := r.Bound()
	assert.Equal(t, orb.Point{899, 1899}, b.Min)
	assert.Equal(t, orb.Point{1101, 2101}, b.Max)
	assert.True(t, b.Contains(r.Coordinate))

	v := r.Values()
	assert.Equal(t, "GetFeatureInfo", v.Get("REQUEST"))
	assert.Equal(t, "899,1899,1101,2101", v.Get("BBOX"))
	assert.Equal(t, "50", v.Get("I"))
	assert.Equal(t, "50", v.Get("J"))
	assert.Equal(t, "ws:dis", v.Get("QUERY_LAYERS"))
	assert.Equal(t, "1", v.Get("FEATURE_COUNT"))
}

func TestClient_FeatureInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.URL.Query().Get("INFO_FORMAT"))
		w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","id":"dis.7","geometry":{"type":"Point","coordinates":[0,0]},
			 "properties":{"region_name":"Center","county_name":"","distance_from_tel_aviv_km":12.5}}]}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, nil)
	features, err := c.FeatureInfo(context.Background(), FeatureInfoRequest{
		Endpoint: srv.URL, Layer: "ws:dis", Resolution: 1, CRS: "EPSG:3857",
		InfoFormat: "application/json", FeatureCount: 1,
	})
	require.NoError(t, err)
	require.Len(t, features, 1)

	lines := Popup(features[0].Properties, []Label{
		{Key: "region_name", Label: "Region - 1"},
		{Key: "locality_name", Label: "Locality"},
		{Key: "county_name", Label: "County"},
		{Key: "distance_from_tel_aviv_km", Label: "Distance From Tel-Aviv"},
	})
	assert.Equal(t, []PopupLine{
		{Label: "Region - 1", Value: "Center"},
		{Label: "Distance From Tel-Aviv", Value: "12.5"},
	}, lines)
}

func TestClient_FeatureInfoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(time.Second, nil).FeatureInfo(context.Background(), FeatureInfoRequest{Endpoint: srv.URL})
	assert.Error(t, err)
}

func TestPopup_Empty(t *testing.T) {
	assert.Empty(t, Popup(geojson.Properties{}, []Label{{Key: "a", Label: "A"}}))
}
