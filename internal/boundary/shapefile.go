package boundary

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads a TIGER/Line shapefile of polygon records. DBF
// attributes become the property map; non-polygon shapes are skipped.
func LoadShapefile(path, geoidKey string) ([]BlockGroup, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Field name -> index map.
	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var groups []BlockGroup
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[name] = val
			}
		}

		groups = append(groups, BlockGroup{
			GEOID:      extractGEOID(props, geoidKey),
			Properties: props,
			Geometry:   mp,
		})
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(groups) == 0 {
		return nil, eris.Errorf("boundary: no polygon records in %s", path)
	}

	return groups, nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Shapefile parts carry no explicit nesting: exterior rings wind clockwise,
// holes wind counter-clockwise, and each hole follows its shell in part
// order. Parts are regrouped so every hole sits at ring index >= 1 of its
// shell's polygon, which is where the containment test looks for holes.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var shell *geom.Polygon

	flush := func() {
		if shell == nil {
			return
		}
		if err := mp.Push(shell); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon", zap.Error(err))
		}
		shell = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		// Clockwise parts start a new shell. A counter-clockwise part with
		// no preceding shell has broken winding in the source; promote it
		// to a shell rather than lose the record.
		if signedArea(flat) < 0 || shell == nil {
			flush()
			next := geom.NewPolygon(geom.XY)
			if err := next.Push(ring); err != nil {
				zap.L().Debug("boundary: skipping malformed shell ring", zap.Int32("part", i), zap.Error(err))
				continue
			}
			shell = next
			continue
		}

		if err := shell.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed hole ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is the shoelace sum over a flat XY ring: negative for
// clockwise rings, positive for counter-clockwise. Works whether or not
// the ring repeats its first vertex.
func signedArea(flat []float64) float64 {
	n := len(flat)
	if n < 6 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i += 2 {
		x1, y1 := flat[i], flat[i+1]
		x2, y2 := flat[(i+2)%n], flat[(i+3)%n]
		sum += x1*y2 - x2*y1
	}
	return sum / 2
}
