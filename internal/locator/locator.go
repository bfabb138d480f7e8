// Package locator answers point-in-polygon queries against a block-group
// boundary set. A bounding-box R-tree filters candidates in O(log n); exact
// ray-cast containment keeps only true positives.
package locator

import (
	"fmt"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/streetscope/blockgeo/internal/boundary"
	"github.com/streetscope/blockgeo/internal/fips"
)

// Status classifies a lookup outcome. The three states are distinct on
// purpose: "outside all known geography" and "malformed input" must never
// collapse into one another.
type Status string

const (
	StatusFound     Status = "found"
	StatusNoMatch   Status = "no_match"
	StatusMalformed Status = "malformed"
)

// Match is one containing block group.
type Match struct {
	GEOID      string         `json:"geoid"`
	TractGEOID string         `json:"tract_geoid,omitempty"`
	Properties map[string]any `json:"properties"`
}

// Result is the typed outcome of a point lookup.
type Result struct {
	Status  Status  `json:"status"`
	Matches []Match `json:"matches,omitempty"`
	// Raw holds the original input for malformed lookups so downstream
	// consumers can report what failed to parse.
	Raw string `json:"raw,omitempty"`
}

// Found builds a found result.
func Found(matches []Match) Result { return Result{Status: StatusFound, Matches: matches} }

// NoMatch is the result for a point outside every known polygon.
func NoMatch() Result { return Result{Status: StatusNoMatch} }

// Malformed builds a malformed-input result carrying the offending input.
func Malformed(raw string) Result { return Result{Status: StatusMalformed, Raw: raw} }

// minExtent pads degenerate bounding boxes so every entry has positive area.
const minExtent = 1e-9

// item is one R-tree entry, keyed by record position.
type item struct {
	idx  int
	rect rtreego.Rect
}

func (it *item) Bounds() rtreego.Rect { return it.rect }

// Index is a read-only spatial index over a boundary set. Build it once and
// share it across datasets; concurrent Locate calls are safe.
type Index struct {
	tree   *rtreego.Rtree
	groups []boundary.BlockGroup
}

// Build constructs the bounding-box index over the given records.
func Build(groups []boundary.BlockGroup) (*Index, error) {
	if len(groups) == 0 {
		return nil, eris.New("locator: no boundary records to index")
	}

	tree := rtreego.NewTree(2, 25, 50)
	for i := range groups {
		b := groups[i].Geometry.Bounds()
		w := b.Max(0) - b.Min(0)
		h := b.Max(1) - b.Min(1)
		if w < minExtent {
			w = minExtent
		}
		if h < minExtent {
			h = minExtent
		}
		rect, err := rtreego.NewRect(rtreego.Point{b.Min(0), b.Min(1)}, []float64{w, h})
		if err != nil {
			return nil, eris.Wrapf(err, "locator: bounding box for record %d", i)
		}
		tree.Insert(&item{idx: i, rect: rect})
	}

	zap.L().Info("locator: index built", zap.Int("polygons", len(groups)))
	return &Index{tree: tree, groups: groups}, nil
}

// Size returns the number of indexed records.
func (ix *Index) Size() int { return len(ix.groups) }

// Locate returns every block group containing the point. Candidates come
// from the R-tree bbox filter; each is confirmed with an exact containment
// test. Matches are returned in record order so repeated runs over identical
// input are deterministic, including points on shared edges and inside
// overlapping polygons (all matches are kept, none deduplicated).
//
// Invalid coordinates and containment panics yield StatusMalformed; they
// never propagate and never masquerade as StatusNoMatch.
func (ix *Index) Locate(lng, lat float64) (res Result) {
	raw := fmt.Sprintf("(%v, %v)", lat, lng)

	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("locator: containment test panicked",
				zap.Float64("lng", lng),
				zap.Float64("lat", lat),
				zap.Any("panic", r),
			)
			res = Malformed(raw)
		}
	}()

	if !validCoord(lng, lat) {
		return Malformed(raw)
	}

	candidates := ix.tree.SearchIntersect(rtreego.Point{lng, lat}.ToRect(minExtent))
	if len(candidates) == 0 {
		return NoMatch()
	}

	idxs := make([]int, 0, len(candidates))
	for _, c := range candidates {
		idxs = append(idxs, c.(*item).idx)
	}
	sort.Ints(idxs)

	coord := geom.Coord{lng, lat}
	var matches []Match
	for _, i := range idxs {
		g := &ix.groups[i]
		if !contains(g.Geometry, coord) {
			continue
		}
		m := Match{GEOID: g.GEOID, Properties: g.Properties}
		if tract, err := fips.TractFromBlockGroup(g.GEOID); err == nil {
			m.TractGEOID = tract
		}
		matches = append(matches, m)
	}

	if len(matches) == 0 {
		return NoMatch()
	}
	return Found(matches)
}

// validCoord rejects non-finite and out-of-range coordinates.
func validCoord(lng, lat float64) bool {
	if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// contains runs the exact ray-cast test: inside some polygon's outer ring
// and outside all of that polygon's holes.
func contains(mp *geom.MultiPolygon, c geom.Coord) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		if p.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(p.Layout(), c, p.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for j := 1; j < p.NumLinearRings(); j++ {
			if xy.IsPointInRing(p.Layout(), c, p.LinearRing(j).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
