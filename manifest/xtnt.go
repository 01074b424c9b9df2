package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urbanatlas/tilegrid/grid"
)

// .xtnt extent files drive the QGIS MapTileLoader plugin that downloads the
// satellite imagery for a capture area. Two lines:
//
//	west,north   (upper-left corner)
//	east,south   (lower-right corner)

// ExportExtent writes the full capture extent of a manifest.
func ExportExtent(m *grid.Manifest, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, m.CityName+"_tiles_full.xtnt")
	return path, writeExtent(path, m.MasterBBox.West, m.MasterBBox.South, m.MasterBBox.East, m.MasterBBox.North)
}

// ExportChunks splits the capture extent into an nx by ny grid of extents,
// one file per chunk. Large cities are downloaded in chunks to keep each
// plugin run manageable.
func ExportChunks(m *grid.Manifest, dir string, nx, ny int) ([]string, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("invalid chunk split %dx%d", nx, ny)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	box := m.MasterBBox
	stepLon := (box.East - box.West) / float64(nx)
	stepLat := (box.North - box.South) / float64(ny)

	var paths []string
	for row := 0; row < ny; row++ {
		for col := 0; col < nx; col++ {
			west := box.West + float64(col)*stepLon
			east := box.West + float64(col+1)*stepLon
			south := box.South + float64(row)*stepLat
			north := box.South + float64(row+1)*stepLat

			name := fmt.Sprintf("%s_tiles_%s_%s.xtnt", m.CityName, chunkRowName(row, ny), chunkColName(col, nx))
			path := filepath.Join(dir, name)
			if err := writeExtent(path, west, south, east, north); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func chunkRowName(row, ny int) string {
	if ny == 2 {
		if row == 0 {
			return "north"
		}
		return "south"
	}
	return fmt.Sprintf("row%d", row)
}

func chunkColName(col, nx int) string {
	switch nx {
	case 2:
		return [2]string{"west", "east"}[col]
	case 3:
		return [3]string{"west", "center", "east"}[col]
	}
	return fmt.Sprintf("col%d", col)
}

func writeExtent(path string, west, south, east, north float64) error {
	content := coord(west) + "," + coord(north) + "\n" + coord(east) + "," + coord(south)
	return os.WriteFile(path, []byte(content), 0o644)
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
