package geomhelp

import (
	"math"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/muesli/reflow/truncate"

	"github.com/urbanatlas/tilegrid/geodesy"
)

// https://en.wikipedia.org/wiki/Shoelace_formula
func Shoelace(pts [][2]float64) float64 {
	sum := 0.
	if len(pts) == 0 {
		return 0.
	}

	p0 := pts[len(pts)-1]
	for _, p1 := range pts {
		sum += p0[1]*p1[0] - p0[0]*p1[1]
		p0 = p1
	}
	return math.Abs(sum / 2)
}

// AreaDeg2 returns the polygon area in square degrees, exterior ring minus holes.
func AreaDeg2(p geom.Polygon) float64 {
	if len(p) == 0 {
		return 0.
	}
	area := Shoelace(p[0])
	for _, hole := range p[1:] {
		area -= Shoelace(hole)
	}
	return area
}

// AreaKm2 approximates the polygon area in square kilometers using the
// spherical per-degree factor on both axes, matching how capture areas are
// reported. Coarse, but consistent with the rest of the sizing math.
func AreaKm2(p geom.Polygon) float64 {
	return AreaDeg2(p) * geodesy.KmPerDegreeLat * geodesy.KmPerDegreeLat
}

// LargestPolygon returns the polygon with the biggest area from a
// multipolygon. Geocoders return multipolygons for cities with islands or
// exclaves; the main landmass is what the capture box should frame.
func LargestPolygon(mp geom.MultiPolygon) geom.Polygon {
	var largest geom.Polygon
	maxArea := -1.
	for i := range mp {
		p := geom.Polygon(mp[i])
		if a := AreaDeg2(p); a > maxArea {
			maxArea = a
			largest = p
		}
	}
	return largest
}

// WktMustEncode encodes to WKT for log lines, truncated to maxLen runes.
// maxLen 0 means no truncation.
func WktMustEncode(g geom.Geometry, maxLen uint) string {
	if maxLen == 0 {
		return wkt.MustEncode(g)
	}
	return truncate.StringWithTail(wkt.MustEncode(g), maxLen, "...")
}
