// Package mercator maps geographic degrees to the global pixel space of
// spherical Web Mercator web-map tiling: 256px per tile at zoom 0, resolution
// doubling per zoom level. Stateless; used by downstream imaging consumers to
// align generated pixels to ground tiles. Nothing here renders anything.
package mercator

import (
	"math"

	"github.com/urbanatlas/tilegrid/geodesy"
	"github.com/urbanatlas/tilegrid/mathhelp"
)

// TileSize is the pixel size of one web-map tile.
const TileSize = 256

// LonToX returns the global pixel x coordinate of a longitude at a zoom level.
func LonToX(lon float64, zoom uint) float64 {
	return (lon + 180) / 360 * float64(mathhelp.Pow2(zoom)) * TileSize
}

// LatToY returns the global pixel y coordinate of a latitude at a zoom level.
// y grows southwards, like image rows.
func LatToY(lat float64, zoom uint) float64 {
	latRad := lat * math.Pi / 180
	return (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * float64(mathhelp.Pow2(zoom)) * TileSize
}

// PixelBBox is a geographic bbox projected to whole pixels at one zoom level.
type PixelBBox struct {
	XMin   int  `json:"x_min"`
	XMax   int  `json:"x_max"`
	YMin   int  `json:"y_min"`
	YMax   int  `json:"y_max"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Zoom   uint `json:"zoom_level"`
}

// BBoxToPixels projects a geographic bbox to a pixel rectangle. YMin comes
// from the north edge: pixel y grows towards the south.
func BBoxToPixels(b geodesy.BBox, zoom uint) PixelBBox {
	p := PixelBBox{
		XMin: int(LonToX(b.West, zoom)),
		XMax: int(LonToX(b.East, zoom)),
		YMin: int(LatToY(b.North, zoom)),
		YMax: int(LatToY(b.South, zoom)),
		Zoom: zoom,
	}
	p.Width = p.XMax - p.XMin
	p.Height = p.YMax - p.YMin
	return p
}
