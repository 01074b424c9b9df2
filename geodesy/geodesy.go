// Package geodesy holds the spherical degree<->kilometer conversion shared by
// the capture-box and tile-grid calculations. Both must use the exact same
// factors, otherwise the built grid drifts from the validated box.
//
// The constant 111 km per degree of latitude is a spherical approximation that
// ignores ellipsoidal eccentricity. The error stays below ~0.6% for latitude
// and below ~0.35% for longitude at city scale (<200 km extents), which is
// accepted for sizing capture regions. This package is not suitable for
// geodetically exact distance work.
package geodesy

import (
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"
)

// KmPerDegreeLat is the spherical approximation for one degree of latitude.
const KmPerDegreeLat = 111.0

// KmPerDegree returns the kilometers spanned by one degree of longitude and
// one degree of latitude at the given latitude.
func KmPerDegree(lat float64) (lonKm, latKm float64) {
	return KmPerDegreeLat * math.Cos(lat*math.Pi/180), KmPerDegreeLat
}

// BBox is a geographic bounding box in degrees with a precomputed center.
type BBox struct {
	West      float64 `json:"west" yaml:"west" validate:"gte=-180,lte=180"`
	South     float64 `json:"south" yaml:"south" validate:"gte=-90,lte=90"`
	East      float64 `json:"east" yaml:"east" validate:"gte=-180,lte=180,gtfield=West"`
	North     float64 `json:"north" yaml:"north" validate:"gte=-90,lte=90,gtfield=South"`
	CenterLat float64 `json:"center_lat" yaml:"center_lat,omitempty"`
	CenterLon float64 `json:"center_lon" yaml:"center_lon,omitempty"`
}

// NewBBox builds a BBox and fills in its center.
func NewBBox(west, south, east, north float64) BBox {
	return BBox{
		West:      west,
		South:     south,
		East:      east,
		North:     north,
		CenterLat: (south + north) / 2,
		CenterLon: (west + east) / 2,
	}
}

// Validate checks coordinate ranges and corner ordering.
func (b BBox) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(&b)
}

// Center returns the center of the box, recomputed from the corners.
func (b BBox) Center() (lat, lon float64) {
	return (b.South + b.North) / 2, (b.West + b.East) / 2
}

// SizeKm returns the ground size of the box using the per-degree factors at
// the box center latitude.
func (b BBox) SizeKm() (widthKm, heightKm float64) {
	lat, _ := b.Center()
	lonKm, latKm := KmPerDegree(lat)
	return (b.East - b.West) * lonKm, (b.North - b.South) * latKm
}

// Polygon returns the box as a closed exterior ring, counterclockwise.
func (b BBox) Polygon() geom.Polygon {
	return geom.Polygon{{
		{b.West, b.South},
		{b.East, b.South},
		{b.East, b.North},
		{b.West, b.North},
	}}
}

// Extent returns the box as a geom extent (minx, miny, maxx, maxy).
func (b BBox) Extent() *geom.Extent {
	return &geom.Extent{b.West, b.South, b.East, b.North}
}
