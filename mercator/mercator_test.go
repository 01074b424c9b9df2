package mercator

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanatlas/tilegrid/geodesy"
)

func TestLonToX(t *testing.T) {
	tests := []struct {
		lon  float64
		zoom uint
		want float64
	}{
		{lon: -180, zoom: 0, want: 0},
		{lon: 0, zoom: 0, want: 128},
		{lon: 180, zoom: 0, want: 256},
		{lon: -180, zoom: 5, want: 0},
		{lon: 0, zoom: 5, want: 4096},
		{lon: 90, zoom: 1, want: 384},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, LonToX(tt.lon, tt.zoom), 1e-9, "lon %v zoom %d", tt.lon, tt.zoom)
	}
}

func TestLatToY(t *testing.T) {
	assert.InDelta(t, 128, LatToY(0, 0), 1e-9)
	// projection is symmetric around the equator
	assert.InDelta(t, 256-LatToY(60, 0), LatToY(-60, 0), 1e-9)
	// north of the equator lies above the midline
	assert.Less(t, LatToY(45, 0), 128.0)
	assert.Greater(t, LatToY(-45, 0), 128.0)
	// the mercator square closes at about 85.05 degrees
	assert.InDelta(t, 0, LatToY(85.0511287798, 0), 1e-6)
}

func TestBBoxToPixels(t *testing.T) {
	b := geodesy.NewBBox(10.0, 36.0, 10.2, 36.1)
	p := BBoxToPixels(b, 15)

	assert.Equal(t, uint(15), p.Zoom)
	assert.Equal(t, p.XMax-p.XMin, p.Width)
	assert.Equal(t, p.YMax-p.YMin, p.Height)
	assert.Greater(t, p.Width, 0)
	assert.Greater(t, p.Height, 0)
	// y min comes from the north edge
	assert.Equal(t, int(LatToY(b.North, 15)), p.YMin)
	assert.Equal(t, int(LatToY(b.South, 15)), p.YMax)
	assert.Equal(t, int(LonToX(b.West, 15)), p.XMin)
}

func TestBBoxToPixelsZoomDoubling(t *testing.T) {
	b := geodesy.NewBBox(10.0, 36.0, 10.2, 36.1)
	lo := BBoxToPixels(b, 12)
	hi := BBoxToPixels(b, 13)
	// one zoom step doubles the pixel span, up to truncation
	assert.InDelta(t, 2*lo.Width, hi.Width, 2)
	assert.InDelta(t, 2*lo.Height, hi.Height, 2)
}

// cross-check against an independent tiling implementation: the web-map tile
// under a coordinate is the global pixel coordinate divided by the tile size
func TestAgreesWithMaptile(t *testing.T) {
	points := []struct {
		lon, lat float64
		zoom     uint
	}{
		{10.1, 36.05, 15},
		{12.57, 55.68, 12},
		{-112.07, 33.45, 10},
		{151.21, -33.87, 14},
		{0, 0, 3},
		{-179.9, 84.9, 8},
	}
	for _, pt := range points {
		tile := maptile.At(orb.Point{pt.lon, pt.lat}, maptile.Zoom(pt.zoom))
		x := math.Floor(LonToX(pt.lon, pt.zoom) / TileSize)
		y := math.Floor(LatToY(pt.lat, pt.zoom) / TileSize)
		require.Equal(t, uint32(x), tile.X, "x at %v,%v zoom %d", pt.lon, pt.lat, pt.zoom)
		require.Equal(t, uint32(y), tile.Y, "y at %v,%v zoom %d", pt.lon, pt.lat, pt.zoom)
	}
}
