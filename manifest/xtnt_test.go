package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportExtent(t *testing.T) {
	dir := t.TempDir()
	m := testManifest(t)

	path, err := ExportExtent(m, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "testcity_tiles_full.xtnt"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "10,36.1\n10.2,36", string(raw))
}

func TestExportChunksQuadrants(t *testing.T) {
	dir := t.TempDir()
	m := testManifest(t)

	paths, err := ExportChunks(m, dir, 2, 2)
	require.NoError(t, err)
	require.Len(t, paths, 4)

	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	assert.Equal(t, []string{
		"testcity_tiles_north_west.xtnt",
		"testcity_tiles_north_east.xtnt",
		"testcity_tiles_south_west.xtnt",
		"testcity_tiles_south_east.xtnt",
	}, names)

	// first chunk covers the southwest quadrant of the box
	box := m.MasterBBox
	midLon := box.West + (box.East-box.West)/2
	midLat := box.South + (box.North-box.South)/2
	raw, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, coord(box.West)+","+coord(midLat)+"\n"+coord(midLon)+","+coord(box.South), string(raw))
}

func TestExportChunksThreeColumns(t *testing.T) {
	dir := t.TempDir()
	m := testManifest(t)

	paths, err := ExportChunks(m, dir, 3, 2)
	require.NoError(t, err)
	require.Len(t, paths, 6)
	assert.Equal(t, "testcity_tiles_north_center.xtnt", filepath.Base(paths[1]))
}

func TestExportChunksFallbackNames(t *testing.T) {
	dir := t.TempDir()
	m := testManifest(t)

	paths, err := ExportChunks(m, dir, 4, 3)
	require.NoError(t, err)
	require.Len(t, paths, 12)
	assert.Equal(t, "testcity_tiles_row0_col0.xtnt", filepath.Base(paths[0]))
	assert.Equal(t, "testcity_tiles_row2_col3.xtnt", filepath.Base(paths[11]))
}

func TestExportChunksInvalidSplit(t *testing.T) {
	m := testManifest(t)
	_, err := ExportChunks(m, t.TempDir(), 0, 2)
	assert.Error(t, err)
	_, err = ExportChunks(m, t.TempDir(), 2, -1)
	assert.Error(t, err)
}
