// Package vtile cuts a loaded feature collection into Mapbox vector tiles
// on request, so large WFS layers can be drawn without shipping the whole
// collection to the browser.
package vtile

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"github.com/paulmach/orb/simplify"
)

// MaxZoom is the deepest tile served.
const MaxZoom = 22

// Mercator reports whether srsName is a web mercator CRS. Anything else
// is treated as lon/lat.
func Mercator(srsName string) bool {
	s := strings.ToUpper(srsName)
	return strings.HasSuffix(s, ":3857") || strings.HasSuffix(s, ":900913")
}

// Tile returns the tile at z/x/y, or an error when it is outside the grid.
func Tile(z, x, y int) (maptile.Tile, error) {
	if z < 0 || z > MaxZoom {
		return maptile.Tile{}, fmt.Errorf("zoom %d out of range 0-%d", z, MaxZoom)
	}
	n := 1 << z
	if x < 0 || x >= n || y < 0 || y >= n {
		return maptile.Tile{}, fmt.Errorf("tile %d/%d/%d outside the grid", z, x, y)
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), nil
}

// Encode renders the features intersecting tile as one gzipped MVT layer.
// mercator says whether feature coordinates are EPSG:3857. An empty tile
// returns nil data.
func Encode(features []*geojson.Feature, tile maptile.Tile, layerName string, mercator bool) ([]byte, error) {
	bound := tile.Bound()
	nativeBound := bound
	if mercator {
		nativeBound = orb.Bound{
			Min: project.WGS84.ToMercator(bound.Min),
			Max: project.WGS84.ToMercator(bound.Max),
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		if f.Geometry == nil || !f.Geometry.Bound().Intersects(nativeBound) {
			continue
		}

		// mvt clips and projects in place; the session's features are shared
		g := orb.Clone(f.Geometry)
		if mercator {
			g = project.Geometry(g, project.Mercator.ToWGS84)
		}
		if !intersects(g, bound) {
			continue
		}

		clone := geojson.NewFeature(g)
		clone.ID = f.ID
		for k, v := range f.Properties {
			clone.Properties[k] = v
		}
		fc.Append(clone)
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	layer := mvt.NewLayer(layerName, fc)
	if epsilon := simplifyEpsilon(tile.Z); epsilon > 0 {
		layer.Simplify(simplify.DouglasPeucker(epsilon))
	}
	layer.Clip(bound)
	layer.ProjectToTile(tile)
	layer.RemoveEmpty(0.5, 0.5)
	if len(layer.Features) == 0 {
		return nil, nil
	}

	data, err := mvt.MarshalGzipped(mvt.Layers{layer})
	if err != nil {
		return nil, fmt.Errorf("encoding tile %d/%d/%d: %w", tile.Z, tile.X, tile.Y, err)
	}
	return data, nil
}

// intersects refines the bounding box test for points and polygons. Lines
// whose boxes overlap the tile are kept.
func intersects(g orb.Geometry, b orb.Bound) bool {
	if !g.Bound().Intersects(b) {
		return false
	}

	switch g := g.(type) {
	case orb.Point:
		return b.Contains(g)

	case orb.MultiPoint:
		for _, p := range g {
			if b.Contains(p) {
				return true
			}
		}
		return false

	case orb.Polygon:
		for _, ring := range g {
			for _, p := range ring {
				if b.Contains(p) {
					return true
				}
			}
		}
		// the polygon may cover the whole tile
		corners := []orb.Point{b.Min, {b.Max[0], b.Min[1]}, b.Max, {b.Min[0], b.Max[1]}, b.Center()}
		for _, p := range corners {
			if planar.PolygonContains(g, p) {
				return true
			}
		}
		return false

	case orb.MultiPolygon:
		for _, poly := range g {
			if intersects(poly, b) {
				return true
			}
		}
		return false
	}
	return true
}

// simplifyEpsilon returns the Douglas-Peucker tolerance in degrees for a
// zoom level; zero disables simplification.
func simplifyEpsilon(zoom maptile.Zoom) float64 {
	switch {
	case zoom >= 14:
		return 0
	case zoom >= 10:
		return 0.00001
	case zoom >= 6:
		return 0.0001
	case zoom >= 4:
		return 0.0005
	default:
		return 0.001
	}
}
