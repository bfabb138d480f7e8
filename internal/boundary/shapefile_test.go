package boundary

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolygonToMultiPolygonDonut(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			// clockwise shell
			{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0},
			// counter-clockwise hole
			{X: 4, Y: 4}, {X: 6, Y: 4}, {X: 6, Y: 6}, {X: 4, Y: 6}, {X: 4, Y: 4},
		},
	}

	mp := polygonToMultiPolygon(poly)
	require.NotNil(t, mp)
	require.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings(), "hole must nest inside its shell")
}

func TestPolygonToMultiPolygonTwoShells(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			// two clockwise shells
			{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0},
			{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 6, Y: 6}, {X: 6, Y: 5}, {X: 5, Y: 5},
		},
	}

	mp := polygonToMultiPolygon(poly)
	require.NotNil(t, mp)
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 1, mp.Polygon(0).NumLinearRings())
	assert.Equal(t, 1, mp.Polygon(1).NumLinearRings())
}

func TestPolygonToMultiPolygonShellWithTwoHoles(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 3,
		Parts:    []int32{0, 5, 10},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0},
			{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 1},
			{X: 7, Y: 7}, {X: 8, Y: 7}, {X: 8, Y: 8}, {X: 7, Y: 8}, {X: 7, Y: 7},
		},
	}

	mp := polygonToMultiPolygon(poly)
	require.NotNil(t, mp)
	require.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 3, mp.Polygon(0).NumLinearRings())
}

func TestPolygonToMultiPolygonHoleWithoutShell(t *testing.T) {
	// A lone counter-clockwise part has broken winding; it is promoted to
	// a shell instead of dropping the record.
	poly := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: 4, Y: 4}, {X: 6, Y: 4}, {X: 6, Y: 6}, {X: 4, Y: 6}, {X: 4, Y: 4},
		},
	}

	mp := polygonToMultiPolygon(poly)
	require.NotNil(t, mp)
	require.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 1, mp.Polygon(0).NumLinearRings())
}

func TestPolygonToMultiPolygonEmpty(t *testing.T) {
	assert.Nil(t, polygonToMultiPolygon(nil))
	assert.Nil(t, polygonToMultiPolygon(&shp.Polygon{}))
}

func TestSignedArea(t *testing.T) {
	clockwise := []float64{0, 0, 0, 10, 10, 10, 10, 0, 0, 0}
	counter := []float64{4, 4, 6, 4, 6, 6, 4, 6, 4, 4}

	assert.Negative(t, signedArea(clockwise))
	assert.Positive(t, signedArea(counter))
	assert.Zero(t, signedArea([]float64{0, 0, 1, 1}))
}
