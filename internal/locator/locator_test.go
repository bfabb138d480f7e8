package locator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/streetscope/blockgeo/internal/boundary"
)

// square returns a unit-ordered square MultiPolygon over [x0,x1]x[y0,y1].
func square(x0, y0, x1, y1 float64) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY)
	poly := geom.NewPolygon(geom.XY)
	ring := geom.NewLinearRingFlat(geom.XY, []float64{
		x0, y0, x1, y0, x1, y1, x0, y1, x0, y0,
	})
	if err := poly.Push(ring); err != nil {
		panic(err)
	}
	if err := mp.Push(poly); err != nil {
		panic(err)
	}
	return mp
}

// squareWithHole is a square with a centered square hole.
func squareWithHole(x0, y0, x1, y1, hx0, hy0, hx1, hy1 float64) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY)
	poly := geom.NewPolygon(geom.XY)
	outer := geom.NewLinearRingFlat(geom.XY, []float64{
		x0, y0, x1, y0, x1, y1, x0, y1, x0, y0,
	})
	hole := geom.NewLinearRingFlat(geom.XY, []float64{
		hx0, hy0, hx1, hy0, hx1, hy1, hx0, hy1, hx0, hy0,
	})
	if err := poly.Push(outer); err != nil {
		panic(err)
	}
	if err := poly.Push(hole); err != nil {
		panic(err)
	}
	if err := mp.Push(poly); err != nil {
		panic(err)
	}
	return mp
}

func testGroups() []boundary.BlockGroup {
	return []boundary.BlockGroup{
		{
			GEOID:      "360050121011",
			Properties: map[string]any{"BoroName": "Bronx"},
			Geometry:   square(-73.92, 40.84, -73.88, 40.88),
		},
		{
			GEOID:      "360470121012",
			Properties: map[string]any{"BoroName": "Brooklyn"},
			Geometry:   square(-73.96, 40.64, -73.92, 40.68),
		},
		{
			// Overlaps the Bronx square on its western half.
			GEOID:      "360610121013",
			Properties: map[string]any{"BoroName": "Manhattan"},
			Geometry:   square(-73.94, 40.84, -73.90, 40.88),
		},
	}
}

func buildIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Build(testGroups())
	require.NoError(t, err)
	return ix
}

func TestBuildEmpty(t *testing.T) {
	_, err := Build(nil)
	assert.Error(t, err)
}

func TestLocateSingleContainingPolygon(t *testing.T) {
	ix := buildIndex(t)

	// Strictly interior to the Brooklyn square only.
	res := ix.Locate(-73.94, 40.66)
	require.Equal(t, StatusFound, res.Status)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "360470121012", res.Matches[0].GEOID)
	assert.Equal(t, "36047012101", res.Matches[0].TractGEOID)
	assert.Equal(t, "Brooklyn", res.Matches[0].Properties["BoroName"])
}

func TestLocateOutsideAllBoundingBoxes(t *testing.T) {
	ix := buildIndex(t)

	res := ix.Locate(-74.5, 41.5)
	assert.Equal(t, StatusNoMatch, res.Status)
	assert.Empty(t, res.Matches)
}

func TestLocateBBoxHitButOutsidePolygon(t *testing.T) {
	groups := []boundary.BlockGroup{
		{
			GEOID: "360050121011",
			// Triangle whose bbox covers the unit square but whose area
			// excludes the upper-left corner region.
			Geometry: func() *geom.MultiPolygon {
				mp := geom.NewMultiPolygon(geom.XY)
				poly := geom.NewPolygon(geom.XY)
				ring := geom.NewLinearRingFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 0})
				if err := poly.Push(ring); err != nil {
					panic(err)
				}
				if err := mp.Push(poly); err != nil {
					panic(err)
				}
				return mp
			}(),
			Properties: map[string]any{},
		},
	}
	ix, err := Build(groups)
	require.NoError(t, err)

	// Inside the bbox, outside the triangle.
	res := ix.Locate(0.1, 0.9)
	assert.Equal(t, StatusNoMatch, res.Status)

	// Inside the triangle.
	res = ix.Locate(0.9, 0.1)
	assert.Equal(t, StatusFound, res.Status)
}

func TestLocateHole(t *testing.T) {
	groups := []boundary.BlockGroup{
		{
			GEOID:      "360050121011",
			Geometry:   squareWithHole(0, 0, 10, 10, 4, 4, 6, 6),
			Properties: map[string]any{},
		},
	}
	ix, err := Build(groups)
	require.NoError(t, err)

	assert.Equal(t, StatusFound, ix.Locate(1, 1).Status)
	assert.Equal(t, StatusNoMatch, ix.Locate(5, 5).Status)
}

func TestLocateOverlappingPolygons(t *testing.T) {
	ix := buildIndex(t)

	// Inside both the Bronx and Manhattan test squares.
	res := ix.Locate(-73.91, 40.86)
	require.Equal(t, StatusFound, res.Status)
	require.Len(t, res.Matches, 2)

	// All matches kept, in record order.
	assert.Equal(t, "360050121011", res.Matches[0].GEOID)
	assert.Equal(t, "360610121013", res.Matches[1].GEOID)
}

func TestLocateDeterministic(t *testing.T) {
	ix := buildIndex(t)

	first := ix.Locate(-73.91, 40.86)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ix.Locate(-73.91, 40.86))
	}
}

func TestLocateMalformedCoordinates(t *testing.T) {
	ix := buildIndex(t)

	tests := []struct {
		name     string
		lng, lat float64
	}{
		{name: "nan lng", lng: math.NaN(), lat: 40.86},
		{name: "nan lat", lng: -73.91, lat: math.NaN()},
		{name: "inf", lng: math.Inf(1), lat: 40.86},
		{name: "lat out of range", lng: -73.91, lat: 140.0},
		{name: "lng out of range", lng: -200.0, lat: 40.86},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ix.Locate(tt.lng, tt.lat)
			assert.Equal(t, StatusMalformed, res.Status)
			assert.NotEmpty(t, res.Raw)
			assert.Empty(t, res.Matches)
		})
	}
}

func TestLocateTractDerivationSkipsBadGEOIDs(t *testing.T) {
	groups := []boundary.BlockGroup{
		{
			GEOID:      "short",
			Geometry:   square(0, 0, 1, 1),
			Properties: map[string]any{},
		},
	}
	ix, err := Build(groups)
	require.NoError(t, err)

	res := ix.Locate(0.5, 0.5)
	require.Equal(t, StatusFound, res.Status)
	assert.Equal(t, "short", res.Matches[0].GEOID)
	assert.Empty(t, res.Matches[0].TractGEOID)
}

func TestLocateConcurrentReaders(t *testing.T) {
	ix := buildIndex(t)

	done := make(chan Result, 32)
	for i := 0; i < 32; i++ {
		go func() { done <- ix.Locate(-73.94, 40.66) }()
	}
	for i := 0; i < 32; i++ {
		res := <-done
		assert.Equal(t, StatusFound, res.Status)
	}
}
