// Package wms builds GeoServer WMS requests: tile source parameters for
// the map and GetFeatureInfo lookups for the click popup.
package wms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// infoPixels is the width and height of the GetFeatureInfo image; the
// click lands on its centre pixel.
const infoPixels = 101

// LayerParams returns the tile source parameters for a WMS layer. The CQL
// filter is only set when non-empty.
func LayerParams(layer, cqlFilter string) map[string]string {
	p := map[string]string{
		"LAYERS":      layer,
		"TILED":       "true",
		"FORMAT":      "image/png",
		"TRANSPARENT": "true",
	}
	if cqlFilter != "" {
		p["CQL_FILTER"] = cqlFilter
	}
	return p
}

// FeatureInfoRequest describes a click on the map.
type FeatureInfoRequest struct {
	Endpoint     string
	Layer        string
	Coordinate   orb.Point // in CRS units
	Resolution   float64   // CRS units per pixel
	CRS          string
	InfoFormat   string
	FeatureCount int
	CQLFilter    string
}

// Bound returns the map extent of the request image.
func (r FeatureInfoRequest) Bound() orb.Bound {
	half := r.Resolution * infoPixels / 2
	return orb.Bound{
		Min: orb.Point{r.Coordinate.X() - half, r.Coordinate.Y() - half},
		Max: orb.Point{r.Coordinate.X() + half, r.Coordinate.Y() + half},
	}
}

// Values renders the WMS 1.3.0 GetFeatureInfo parameters.
func (r FeatureInfoRequest) Values() url.Values {
	b := r.Bound()
	v := url.Values{}
	v.Set("SERVICE", "WMS")
	v.Set("VERSION", "1.3.0")
	v.Set("REQUEST", "GetFeatureInfo")
	v.Set("FORMAT", "image/png")
	v.Set("TRANSPARENT", "true")
	v.Set("LAYERS", r.Layer)
	v.Set("QUERY_LAYERS", r.Layer)
	v.Set("STYLES", "")
	v.Set("CRS", r.CRS)
	v.Set("BBOX", strings.Join([]string{
		ftoa(b.Min.X()), ftoa(b.Min.Y()), ftoa(b.Max.X()), ftoa(b.Max.Y()),
	}, ","))
	v.Set("WIDTH", strconv.Itoa(infoPixels))
	v.Set("HEIGHT", strconv.Itoa(infoPixels))
	v.Set("I", strconv.Itoa(infoPixels/2))
	v.Set("J", strconv.Itoa(infoPixels/2))
	v.Set("INFO_FORMAT", r.InfoFormat)
	v.Set("FEATURE_COUNT", strconv.Itoa(r.FeatureCount))
	if r.CQLFilter != "" {
		v.Set("CQL_FILTER", r.CQLFilter)
	}
	return v
}

// URL returns the full request URL.
func (r FeatureInfoRequest) URL() string {
	return r.Endpoint + "?" + r.Values().Encode()
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Client performs GetFeatureInfo requests.
type Client struct {
	HTTP    *http.Client
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewClient creates a feature info client.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{HTTP: &http.Client{}, Timeout: timeout, Logger: logger}
}

// FeatureInfo returns the features under the clicked pixel.
func (c *Client) FeatureInfo(ctx context.Context, req FeatureInfoRequest) ([]*geojson.Feature, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("building feature info request: %w", err)
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching feature info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching feature info: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feature info: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decoding feature info: %w", err)
	}
	c.logger().Debug("feature info", "layer", req.Layer, "features", len(fc.Features))
	return fc.Features, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
