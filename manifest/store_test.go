package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanatlas/tilegrid/boundary"
	"github.com/urbanatlas/tilegrid/config"
	"github.com/urbanatlas/tilegrid/geodesy"
	"github.com/urbanatlas/tilegrid/grid"
)

var testSources = []string{"sentinel_2015", "sentinel_2020", "osm_buildings"}

func testManifest(t *testing.T) *grid.Manifest {
	t.Helper()
	b := geodesy.NewBBox(10.0, 36.0, 10.2, 36.1)
	widthKm, heightKm := b.SizeKm()
	box := boundary.MasterBBox{BBox: b, WidthKm: widthKm, HeightKm: heightKm}
	m, err := grid.Build("testcity", box, 2.0, testSources)
	require.NoError(t, err)
	return m
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	m := testManifest(t)
	require.NoError(t, m.UpdateStatus("testcity_tile_001_002", "sentinel_2020", grid.StatusCompleted, "tiles/001_002.tif"))
	require.NoError(t, store.Save(m))

	loaded, err := store.Load("testcity")
	require.NoError(t, err)

	assert.Equal(t, m.CityName, loaded.CityName)
	assert.Equal(t, m.Grid, loaded.Grid)
	assert.Equal(t, m.TileSizeKm, loaded.TileSizeKm)
	assert.Equal(t, m.MasterBBox, loaded.MasterBBox)
	require.Len(t, loaded.Tiles, len(m.Tiles))

	// source order survives the round trip
	assert.Equal(t, testSources, loaded.Sources())

	for i, tile := range loaded.Tiles {
		assert.Equal(t, m.Tiles[i].ID, tile.ID)
		assert.Equal(t, m.Tiles[i].BBox, tile.BBox)
	}

	// the status update is durable, lookup works after loading
	tile, err := loaded.Tile("testcity_tile_001_002")
	require.NoError(t, err)
	st, _ := tile.Status.Get("sentinel_2020")
	assert.Equal(t, grid.StatusCompleted, st)
	path, _ := tile.DataSources.Get("sentinel_2020")
	require.NotNil(t, path)
	assert.Equal(t, "tiles/001_002.tif", *path)

	counts, err := loaded.StatusCounts("sentinel_2020")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[grid.StatusCompleted])
	assert.Equal(t, loaded.Grid.NTiles-1, counts[grid.StatusPending])
}

func TestStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(testManifest(t)))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestStoreSaveReplaces(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	m := testManifest(t)
	require.NoError(t, store.Save(m))
	require.NoError(t, m.UpdateStatus("testcity_tile_000_000", "sentinel_2015", grid.StatusFailed, ""))
	require.NoError(t, store.Save(m))

	loaded, err := store.Load("testcity")
	require.NoError(t, err)
	tile, err := loaded.Tile("testcity_tile_000_000")
	require.NoError(t, err)
	st, _ := tile.Status.Get("sentinel_2015")
	assert.Equal(t, grid.StatusFailed, st)
}

func TestStoreLoadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nowhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManifestNotFound)
}

func TestStoreLoadCorrupt(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path("testcity"), []byte("{not json"), 0o644))

	_, err = store.Load("testcity")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrManifestNotFound)
}

func TestStoreList(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	cities, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, cities)

	m := testManifest(t)
	require.NoError(t, store.Save(m))
	m2 := testManifest(t)
	m2.CityName = "othercity"
	require.NoError(t, store.Save(m2))

	cities, err = store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"testcity", "othercity"}, cities)
}

func TestBoundaryRecordsRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	polygon := geodesy.NewBBox(10.05, 36.65, 10.35, 36.95).Polygon()
	box, err := boundary.ComputeMasterBBox(polygon, 15, nil)
	require.NoError(t, err)
	city := config.City{
		Query:          "Tunis, Tunisia",
		MinClearanceKm: 15,
		FallbackBBox:   geodesy.NewBBox(10.05, 36.65, 10.35, 36.95),
	}
	cb := boundary.CityBoundary{Polygon: polygon, AreaKm2: 887.12, Provenance: boundary.ProvenanceOfficial}
	records := map[string]boundary.Record{
		"tunis": boundary.NewRecord(city, cb, box),
	}

	path, err := store.SaveBoundaryRecords(records)
	require.NoError(t, err)
	assert.FileExists(t, path)

	loaded, err := store.LoadBoundaryRecords()
	require.NoError(t, err)
	require.Contains(t, loaded, "tunis")

	rec := loaded["tunis"]
	assert.Equal(t, boundary.ProvenanceOfficial, rec.Provenance)
	assert.Equal(t, box, rec.MasterBBox)
	assert.Equal(t, city.Query, rec.Config.Query)
	assert.Equal(t, 887.12, rec.CityAreaKm2)
	assert.Equal(t, polygon, rec.OfficialBoundary.Geometry)
}

func TestLoadBoundaryRecordsMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.LoadBoundaryRecords()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boundaries command")
}
