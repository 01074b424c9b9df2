package manifest

import (
	"fmt"
	"log"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"

	"github.com/urbanatlas/tilegrid/grid"
)

// how many tile features are written per transaction
const gpkgPageSize = 1000

var wgs84 = gpkg.SpatialReferenceSystem{
	Name:                   "WGS 84",
	ID:                     4326,
	Organization:           "EPSG",
	OrganizationCoordsysID: 4326,
	Definition: `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],` +
		`AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],` +
		`UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`,
	Description: "World Geodetic System 1984",
}

// ExportGeoPackage writes the tile polygons of a manifest to a GeoPackage so
// the grid can be inspected in GIS tooling next to the downloaded imagery.
// The target file must not exist yet.
func ExportGeoPackage(m *grid.Manifest, path string) error {
	h, err := gpkg.Open(path)
	if err != nil {
		return fmt.Errorf("could not open target GeoPackage: %w", err)
	}
	defer h.Close()

	if err := h.UpdateSRS(wgs84); err != nil {
		return err
	}

	tableName := m.CityName + "_tiles"
	createSQL := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS "%v" (fid INTEGER PRIMARY KEY AUTOINCREMENT, tile_id TEXT NOT NULL, `+
			`numeric_id INTEGER, tile_row INTEGER, tile_col INTEGER, geom POLYGON);`, tableName)
	if _, err := h.Exec(createSQL); err != nil {
		return fmt.Errorf("error building table in target GeoPackage: %w", err)
	}
	err = h.AddGeometryTable(gpkg.TableDescription{
		Name:          tableName,
		ShortName:     tableName,
		Description:   fmt.Sprintf("capture grid for %s, %v km tiles", m.CityName, m.TileSizeKm),
		GeometryField: "geom",
		GeometryType:  gpkg.Polygon,
		SRS:           int32(wgs84.ID),
		Z:             gpkg.Prohibited,
		M:             gpkg.Prohibited,
	})
	if err != nil {
		return fmt.Errorf("error adding geometry table in target GeoPackage: %w", err)
	}

	insertSQL := fmt.Sprintf(
		`INSERT INTO "%v"(tile_id, numeric_id, tile_row, tile_col, geom) VALUES(?, ?, ?, ?, ?)`, tableName)

	var ext *geom.Extent
	for offset := 0; offset < len(m.Tiles); offset += gpkgPageSize {
		end := offset + gpkgPageSize
		if end > len(m.Tiles) {
			end = len(m.Tiles)
		}
		if err := writeTilePage(h, insertSQL, m.Tiles[offset:end], &ext); err != nil {
			return err
		}
	}

	if err := h.UpdateGeometryExtent(tableName, ext); err != nil {
		return fmt.Errorf("failed to update the grid extent: %w", err)
	}
	return nil
}

func writeTilePage(h *gpkg.Handle, insertSQL string, tiles []*grid.Tile, ext **geom.Extent) error {
	tx, err := h.Begin()
	if err != nil {
		return fmt.Errorf("could not start a transaction: %w", err)
	}
	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("could not prepare a statement: %w", err)
	}

	for _, tile := range tiles {
		polygon := tile.BBox.Polygon()
		sb, err := gpkg.NewBinary(int32(wgs84.ID), polygon)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("could not create a binary geometry for %s: %w", tile.ID, err)
		}
		if _, err := stmt.Exec(tile.ID, tile.NumericID, tile.Row, tile.Col, sb); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("could not write tile %s: %w", tile.ID, err)
		}

		if *ext == nil {
			*ext, err = geom.NewExtentFromGeometry(polygon)
			if err != nil {
				*ext = nil
				log.Println("failed to create new extent:", err)
				continue
			}
		} else {
			(*ext).AddGeometry(polygon)
		}
	}
	stmt.Close()
	return tx.Commit()
}
