package boundary

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"

	"github.com/urbanatlas/tilegrid/config"
	"github.com/urbanatlas/tilegrid/geodesy"
)

// TargetAspect is the fixed width:height ratio of every capture box.
const TargetAspect = 16.0 / 9.0

// aspect deviation allowed before a box is rejected, relative
const aspectTolerance = 1e-6

var ErrInvalidBBox = errors.New("invalid master bbox")

// MasterBBox is the fixed-aspect-ratio capture rectangle around a city.
// Computed once and validated; immutable afterwards.
type MasterBBox struct {
	geodesy.BBox
	WidthKm           float64 `json:"width_km" validate:"gt=0"`
	HeightKm          float64 `json:"height_km" validate:"gt=0"`
	ClearanceWidthKm  float64 `json:"clearance_width_km" validate:"gte=0"`
	ClearanceHeightKm float64 `json:"clearance_height_km" validate:"gte=0"`
}

// ComputeMasterBBox sizes a 16:9 capture box around the polygon with at least
// minClearanceKm of ground distance between the polygon bounds and every box
// edge. The aspect ratio is enforced by growing the relatively smaller
// dimension only, so the realized clearance never drops below the requested
// minimum. A pure function of its inputs: the same polygon, clearance and
// offset always reproduce the same box.
func ComputeMasterBBox(p geom.Polygon, minClearanceKm float64, offset *config.Offset) (MasterBBox, error) {
	var m MasterBBox
	if minClearanceKm <= 0 {
		return m, fmt.Errorf("%w: clearance must be positive, got %v", ErrInvalidBBox, minClearanceKm)
	}
	ext, err := geom.NewExtentFromGeometry(p)
	if err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidBBox, err)
	}

	centerLat := (ext.MinY() + ext.MaxY()) / 2
	centerLon := (ext.MinX() + ext.MaxX()) / 2
	lonKmPerDeg, latKmPerDeg := geodesy.KmPerDegree(centerLat)

	if offset != nil {
		centerLon += offset.EastKm / lonKmPerDeg
		centerLat += offset.NorthKm / latKmPerDeg
	}

	cityWidthKm := ext.XSpan() * lonKmPerDeg
	cityHeightKm := ext.YSpan() * latKmPerDeg

	// minimum clearance on both sides of each axis
	minWidthKm := cityWidthKm + 2*minClearanceKm
	minHeightKm := cityHeightKm + 2*minClearanceKm

	// Grow the relatively smaller dimension up to the target aspect. Never
	// shrink: shrinking would eat into the clearance.
	var widthKm, heightKm float64
	if minWidthKm/minHeightKm > TargetAspect {
		widthKm = minWidthKm
		heightKm = widthKm / TargetAspect
	} else {
		heightKm = minHeightKm
		widthKm = heightKm * TargetAspect
	}

	halfWidthDeg := (widthKm / 2) / lonKmPerDeg
	halfHeightDeg := (heightKm / 2) / latKmPerDeg

	m = MasterBBox{
		BBox: geodesy.BBox{
			West:      centerLon - halfWidthDeg,
			South:     centerLat - halfHeightDeg,
			East:      centerLon + halfWidthDeg,
			North:     centerLat + halfHeightDeg,
			CenterLat: centerLat,
			CenterLon: centerLon,
		},
		WidthKm:           widthKm,
		HeightKm:          heightKm,
		ClearanceWidthKm:  (widthKm - cityWidthKm) / 2,
		ClearanceHeightKm: (heightKm - cityHeightKm) / 2,
	}
	if err := m.Validate(); err != nil {
		return MasterBBox{}, err
	}
	return m, nil
}

// Validate checks coordinate ranges, corner ordering and the aspect ratio.
// A box that fails here must not be used; it is never silently coerced.
func (m MasterBBox) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBBox, err)
	}
	if rel := math.Abs(m.WidthKm/m.HeightKm-TargetAspect) / TargetAspect; rel > aspectTolerance {
		return fmt.Errorf("%w: aspect ratio %v deviates from %v", ErrInvalidBBox, m.WidthKm/m.HeightKm, TargetAspect)
	}
	return nil
}
