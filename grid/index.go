package grid

import (
	"fmt"

	"github.com/dhconnelly/rtreego"
)

const (
	indexMinChildren = 25
	indexMaxChildren = 50
	indexDimensions  = 2
)

type tileEntry struct {
	tile *Tile
	rect *rtreego.Rect
}

func (e *tileEntry) Bounds() *rtreego.Rect {
	return e.rect
}

// SpatialIndex answers point-in-tile queries over a manifest. Downstream
// consumers use it to map a coordinate to the tile whose imagery covers it.
// Read-only over an immutable grid; build it once per manifest.
type SpatialIndex struct {
	tree *rtreego.Rtree
}

func NewSpatialIndex(m *Manifest) (*SpatialIndex, error) {
	tree := rtreego.NewTree(indexDimensions, indexMinChildren, indexMaxChildren)
	for _, tile := range m.Tiles {
		rect, err := rtreego.NewRect(
			rtreego.Point{tile.BBox.West, tile.BBox.South},
			[]float64{tile.BBox.East - tile.BBox.West, tile.BBox.North - tile.BBox.South},
		)
		if err != nil {
			return nil, fmt.Errorf("could not index tile %s: %w", tile.ID, err)
		}
		tree.Insert(&tileEntry{tile: tile, rect: rect})
	}
	return &SpatialIndex{tree: tree}, nil
}

// TileAt returns the tile containing the given coordinate, or false when the
// point falls outside the grid footprint.
func (ix *SpatialIndex) TileAt(lon, lat float64) (*Tile, bool) {
	hits := ix.tree.SearchIntersect(rtreego.Point{lon, lat}.ToRect(1e-9))
	for _, hit := range hits {
		tile := hit.(*tileEntry).tile
		b := tile.BBox
		if lon >= b.West && lon < b.East && lat >= b.South && lat < b.North {
			return tile, true
		}
	}
	return nil, false
}
