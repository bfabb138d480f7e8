// Package boundary loads census block-group polygons from GeoJSON or
// TIGER/Line shapefile sources into an immutable in-memory record set.
package boundary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// geoidFallbackKeys are tried in order when the configured GEOID property
// key is absent from a feature. TIGER vintages disagree on the name.
var geoidFallbackKeys = []string{"GEOID", "GEOID10", "GEO_ID"}

// BlockGroup is one census block-group polygon with its source properties.
// Records are immutable once loaded.
type BlockGroup struct {
	GEOID      string
	Properties map[string]any
	Geometry   *geom.MultiPolygon
}

// Load reads boundary records from a GeoJSON or shapefile path, dispatching
// on extension.
func Load(path, geoidKey string) ([]BlockGroup, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return LoadGeoJSON(path, geoidKey)
	case ".shp":
		return LoadShapefile(path, geoidKey)
	default:
		return nil, eris.Errorf("boundary: unsupported boundary file %s", path)
	}
}

// LoadGeoJSON reads a GeoJSON FeatureCollection of polygons. Features with
// missing or non-areal geometry are skipped. Input feature order is
// preserved in the returned slice.
func LoadGeoJSON(path, geoidKey string) ([]BlockGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "boundary: parse geojson %s", path)
	}

	groups := make([]BlockGroup, 0, len(fc.Features))
	var skipped int
	for _, f := range fc.Features {
		mp := toMultiPolygon(f.Geometry)
		if mp == nil {
			skipped++
			continue
		}
		props := f.Properties
		if props == nil {
			props = map[string]any{}
		}
		groups = append(groups, BlockGroup{
			GEOID:      extractGEOID(props, geoidKey),
			Properties: props,
			Geometry:   mp,
		})
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped non-polygon features",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(groups) == 0 {
		return nil, eris.Errorf("boundary: no polygon features in %s", path)
	}

	return groups, nil
}

// toMultiPolygon normalizes an areal geometry to a MultiPolygon.
// Returns nil for nil or non-areal geometries.
func toMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}

// extractGEOID pulls the block-group identifier out of a property map,
// trying the configured key first and then the common TIGER variants.
func extractGEOID(props map[string]any, geoidKey string) string {
	keys := geoidFallbackKeys
	if geoidKey != "" {
		keys = append([]string{geoidKey}, geoidFallbackKeys...)
	}
	for _, k := range keys {
		if v, ok := props[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
