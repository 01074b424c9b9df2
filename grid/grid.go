// Package grid partitions a capture box into tiles that are exact squares in
// ground distance and tracks per-tile, per-source acquisition status.
package grid

import (
	"errors"
	"fmt"
	"math"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/urbanatlas/tilegrid/boundary"
	"github.com/urbanatlas/tilegrid/geodesy"
)

// Per-tile render target for downstream imaging, in pixels.
const (
	TargetPixelWidth  = 512
	TargetPixelHeight = 512
)

// Status of one data source for one tile.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDownloading, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

var (
	ErrUnknownTile   = errors.New("unknown tile id")
	ErrUnknownSource = errors.New("unknown data source")
	ErrUnknownStatus = errors.New("unknown status")
)

type PixelSize struct {
	TargetWidth  int `json:"target_width"`
	TargetHeight int `json:"target_height"`
}

type PhysicalSizeKm struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Metadata struct {
	Created           *time.Time `json:"created"`
	LastUpdated       *time.Time `json:"last_updated"`
	AlignmentVerified bool       `json:"alignment_verified"`
	QualityScore      *float64   `json:"quality_score"`
}

// Tile is one ground-square subdivision of the master bbox. The bbox is a
// non-square rectangle in degrees but an exact square in km. Status, paths and
// metadata are mutated per data source after creation; geometry never is.
// The ordered maps keep the configured source order stable in the manifest.
type Tile struct {
	ID           string                                  `json:"tile_id"`
	NumericID    int                                     `json:"numeric_id"`
	Row          int                                     `json:"row"`
	Col          int                                     `json:"col"`
	BBox         geodesy.BBox                            `json:"bbox"`
	PixelSize    PixelSize                               `json:"pixel_size"`
	PhysicalSize PhysicalSizeKm                          `json:"physical_size_km"`
	Status       *orderedmap.OrderedMap[string, Status]  `json:"status"`
	DataSources  *orderedmap.OrderedMap[string, *string] `json:"data_sources"`
	Metadata     Metadata                                `json:"metadata"`
}

type Dimensions struct {
	NTiles int `json:"n_tiles"`
	NRows  int `json:"n_rows"`
	NCols  int `json:"n_cols"`
}

// Manifest is the durable, authoritative snapshot of one city's tile grid.
// It exclusively owns its tiles; a manifest is rewritten wholesale, tiles are
// never deleted individually.
type Manifest struct {
	CityName   string              `json:"city_name"`
	MasterBBox boundary.MasterBBox `json:"master_bbox"`
	TileSizeKm float64             `json:"tile_size_km"`
	Grid       Dimensions          `json:"grid_dimensions"`
	Tiles      []*Tile             `json:"tiles"`

	byID map[string]*Tile
}

// Build partitions the capture box into ground-square tiles.
//
// The per-degree factors are taken at the bbox center latitude with the same
// formula the box was sized with. Tile counts are rounded to the nearest
// integer and the grid is re-centered on the bbox center, so the grid
// footprint can differ from the box corners by up to half a tile per axis.
// That is intentional: exact-square tiles take priority over exactly
// preserving the validated corners.
func Build(cityName string, box boundary.MasterBBox, tileSizeKm float64, sources []string) (*Manifest, error) {
	if cityName == "" {
		return nil, errors.New("city name is required")
	}
	if tileSizeKm <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got %v", tileSizeKm)
	}
	if len(sources) == 0 {
		return nil, errors.New("at least one data source is required")
	}
	// ordering and ranges only: the box was aspect-validated when computed,
	// and callers may tile any well-formed rectangle
	if err := box.BBox.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture box: %w", err)
	}
	if box.WidthKm <= 0 || box.HeightKm <= 0 {
		return nil, fmt.Errorf("invalid capture box: non-positive ground size %vx%v", box.WidthKm, box.HeightKm)
	}

	lonKmPerDeg, latKmPerDeg := geodesy.KmPerDegree(box.CenterLat)

	// separate per axis: same ground size, different degree spans
	tileLonDeg := tileSizeKm / lonKmPerDeg
	tileLatDeg := tileSizeKm / latKmPerDeg

	nCols := int(math.Round(box.WidthKm / tileSizeKm))
	nRows := int(math.Round(box.HeightKm / tileSizeKm))
	if nCols < 1 || nRows < 1 {
		return nil, fmt.Errorf("tile size %v km too large for %vx%v km box", tileSizeKm, box.WidthKm, box.HeightKm)
	}

	gridWest := box.CenterLon - float64(nCols)*tileLonDeg/2
	gridSouth := box.CenterLat - float64(nRows)*tileLatDeg/2

	created := time.Now().UTC()
	tiles := make([]*Tile, 0, nRows*nCols)
	for row := 0; row < nRows; row++ {
		for col := 0; col < nCols; col++ {
			status := orderedmap.New[string, Status]()
			paths := orderedmap.New[string, *string]()
			for _, source := range sources {
				status.Set(source, StatusPending)
				paths.Set(source, nil)
			}
			createdAt := created
			tiles = append(tiles, &Tile{
				ID:        fmt.Sprintf("%s_tile_%03d_%03d", cityName, row, col),
				NumericID: row*nCols + col,
				Row:       row,
				Col:       col,
				BBox: geodesy.NewBBox(
					gridWest+float64(col)*tileLonDeg,
					gridSouth+float64(row)*tileLatDeg,
					gridWest+float64(col+1)*tileLonDeg,
					gridSouth+float64(row+1)*tileLatDeg,
				),
				PixelSize:    PixelSize{TargetWidth: TargetPixelWidth, TargetHeight: TargetPixelHeight},
				PhysicalSize: PhysicalSizeKm{Width: tileSizeKm, Height: tileSizeKm},
				Status:       status,
				DataSources:  paths,
				Metadata:     Metadata{Created: &createdAt},
			})
		}
	}

	m := &Manifest{
		CityName:   cityName,
		MasterBBox: box,
		TileSizeKm: tileSizeKm,
		Grid:       Dimensions{NTiles: len(tiles), NRows: nRows, NCols: nCols},
		Tiles:      tiles,
	}
	m.Reindex()
	return m, nil
}

// Reindex rebuilds the id lookup. Needed after loading a manifest from disk.
func (m *Manifest) Reindex() {
	m.byID = make(map[string]*Tile, len(m.Tiles))
	for _, tile := range m.Tiles {
		m.byID[tile.ID] = tile
	}
}

// Tile returns the tile with the given string id.
func (m *Manifest) Tile(id string) (*Tile, error) {
	if m.byID == nil {
		m.Reindex()
	}
	tile, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTile, id)
	}
	return tile, nil
}

// Sources returns the data source names the grid was built with, in order.
func (m *Manifest) Sources() []string {
	if len(m.Tiles) == 0 {
		return nil
	}
	sources := make([]string, 0, m.Tiles[0].Status.Len())
	for pair := m.Tiles[0].Status.Oldest(); pair != nil; pair = pair.Next() {
		sources = append(sources, pair.Key)
	}
	return sources
}

// TilesByStatus returns the tiles whose status for the given source equals
// the given value.
func (m *Manifest) TilesByStatus(source string, status Status) ([]*Tile, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, status)
	}
	var matches []*Tile
	for _, tile := range m.Tiles {
		st, ok := tile.Status.Get(source)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
		}
		if st == status {
			matches = append(matches, tile)
		}
	}
	return matches, nil
}

// UpdateStatus sets the status of one data source on one tile, records the
// file path if given and refreshes the last-updated timestamp. Unknown tile
// ids, sources and statuses are explicit errors.
func (m *Manifest) UpdateStatus(tileID, source string, status Status, path string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, status)
	}
	tile, err := m.Tile(tileID)
	if err != nil {
		return err
	}
	if _, ok := tile.Status.Get(source); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	tile.Status.Set(source, status)
	if path != "" {
		p := path
		tile.DataSources.Set(source, &p)
	}
	now := time.Now().UTC()
	tile.Metadata.LastUpdated = &now
	return nil
}

// StatusCounts tallies tile statuses for one data source.
func (m *Manifest) StatusCounts(source string) (map[Status]int, error) {
	counts := map[Status]int{
		StatusPending:     0,
		StatusDownloading: 0,
		StatusProcessing:  0,
		StatusCompleted:   0,
		StatusFailed:      0,
	}
	for _, tile := range m.Tiles {
		st, ok := tile.Status.Get(source)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
		}
		counts[st]++
	}
	return counts, nil
}

// CoverageAreaKm2 is the summed ground area of all tiles.
func (m *Manifest) CoverageAreaKm2() float64 {
	return float64(len(m.Tiles)) * m.TileSizeKm * m.TileSizeKm
}
