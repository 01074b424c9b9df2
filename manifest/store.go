// Package manifest persists tile grids and boundary records as durable JSON
// documents, plus export formats for external imagery tooling.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/urbanatlas/tilegrid/boundary"
	"github.com/urbanatlas/tilegrid/grid"
)

// ErrManifestNotFound is returned when a city has no saved manifest.
var ErrManifestNotFound = errors.New("manifest not found")

const (
	manifestSuffix     = "_tile_manifest.json"
	boundariesFilename = "city_boundaries.json"
)

// Store reads and writes manifests in a single directory, one file per city.
// Saves replace the whole document. A single writer per city is assumed;
// concurrent writers must be serialized by the caller.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create manifest dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Path(cityName string) string {
	return filepath.Join(s.dir, cityName+manifestSuffix)
}

// Save writes the full manifest, replacing any prior version. The write goes
// to a temp file first and is renamed into place, so an interrupted save
// never leaves a corrupt manifest behind.
func (s *Store) Save(m *grid.Manifest) error {
	return WriteAtomic(s.Path(m.CityName), m)
}

// Load reads and reconstructs a saved manifest.
func (s *Store) Load(cityName string) (*grid.Manifest, error) {
	raw, err := os.ReadFile(s.Path(cityName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, cityName)
		}
		return nil, err
	}
	var m grid.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("could not parse manifest for %s: %w", cityName, err)
	}
	m.Reindex()
	return &m, nil
}

// List returns the city names that have a saved manifest.
func (s *Store) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+manifestSuffix))
	if err != nil {
		return nil, err
	}
	cities := make([]string, 0, len(matches))
	for _, match := range matches {
		cities = append(cities, strings.TrimSuffix(filepath.Base(match), manifestSuffix))
	}
	return cities, nil
}

// SaveBoundaryRecords writes the per-city boundary document next to the
// manifests.
func (s *Store) SaveBoundaryRecords(records map[string]boundary.Record) (string, error) {
	path := filepath.Join(s.dir, boundariesFilename)
	return path, WriteAtomic(path, records)
}

// LoadBoundaryRecords reads the boundary document back.
func (s *Store) LoadBoundaryRecords() (map[string]boundary.Record, error) {
	path := filepath.Join(s.dir, boundariesFilename)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no boundary records at %s, run the boundaries command first: %w", path, err)
		}
		return nil, err
	}
	var records map[string]boundary.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("could not parse boundary records: %w", err)
	}
	return records, nil
}

// WriteAtomic marshals v as indented JSON and writes it with a
// write-temporary-then-rename so readers never observe a partial document.
func WriteAtomic(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err = tmp.Write(raw); err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
