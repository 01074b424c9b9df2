// Package boundary resolves city administrative polygons and sizes their
// 16:9 capture boxes.
package boundary

import (
	"context"
	"fmt"
	"log"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"

	"github.com/urbanatlas/tilegrid/config"
	"github.com/urbanatlas/tilegrid/geomhelp"
	"github.com/urbanatlas/tilegrid/mathhelp"
)

// Provenance tags where a city polygon came from.
type Provenance string

const (
	ProvenanceOfficial Provenance = "official"
	ProvenanceFallback Provenance = "fallback"
)

// CityBoundary is a resolved city polygon. Created once per city; immutable.
type CityBoundary struct {
	Polygon    geom.Polygon
	AreaKm2    float64
	Provenance Provenance
}

// Resolver turns configured city keys into boundary polygons. Lookup failures
// are absorbed: the caller always gets a usable polygon, tagged with its
// provenance.
type Resolver struct {
	cities   map[string]config.City
	geocoder Geocoder
}

func NewResolver(cities map[string]config.City, geocoder Geocoder) *Resolver {
	return &Resolver{cities: cities, geocoder: geocoder}
}

// Resolve looks up the official boundary for a configured city, falling back
// to the static bbox on any failure or empty result. The only error is an
// unknown city key, which is a caller mistake, not a lookup failure.
func (r *Resolver) Resolve(ctx context.Context, cityKey string) (CityBoundary, error) {
	city, ok := r.cities[cityKey]
	if !ok {
		return CityBoundary{}, fmt.Errorf("unknown city key %q", cityKey)
	}

	polygon, err := r.geocoder.Geocode(ctx, city.Query)
	if err != nil {
		log.Printf("  warning: boundary lookup for %s failed, using fallback bbox: %v", cityKey, err)
		fallback := city.FallbackBBox.Polygon()
		return CityBoundary{
			Polygon:    fallback,
			AreaKm2:    geomhelp.AreaKm2(fallback),
			Provenance: ProvenanceFallback,
		}, nil
	}

	areaKm2 := geomhelp.AreaKm2(polygon)
	log.Printf("  boundary for %s: %.2f km2 %s", cityKey, areaKm2, geomhelp.WktMustEncode(polygon, 80))
	return CityBoundary{
		Polygon:    polygon,
		AreaKm2:    areaKm2,
		Provenance: ProvenanceOfficial,
	}, nil
}

// Record is the durable boundary document for one city, written next to the
// manifests so downstream consumers can recover the original polygon.
type Record struct {
	OfficialBoundary geojson.Geometry `json:"official_boundary"`
	MasterBBox       MasterBBox       `json:"master_bbox"`
	Config           config.City      `json:"config"`
	CaptureAreaKm2   float64          `json:"capture_area_km2"`
	CityAreaKm2      float64          `json:"city_area_km2"`
	Provenance       Provenance       `json:"provenance"`
}

func NewRecord(city config.City, cb CityBoundary, box MasterBBox) Record {
	return Record{
		OfficialBoundary: geojson.Geometry{Geometry: cb.Polygon},
		MasterBBox:       box,
		Config:           city,
		CaptureAreaKm2:   mathhelp.RoundTo(box.WidthKm*box.HeightKm, 2),
		CityAreaKm2:      mathhelp.RoundTo(cb.AreaKm2, 2),
		Provenance:       cb.Provenance,
	}
}
