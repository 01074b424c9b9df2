package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/urbanatlas/tilegrid/boundary"
	"github.com/urbanatlas/tilegrid/config"
	"github.com/urbanatlas/tilegrid/grid"
	"github.com/urbanatlas/tilegrid/manifest"
)

const CONFIG string = `config`
const CITIES string = `cities`
const TILESIZE string = `tilesize`
const SPLITX string = `splitx`
const SPLITY string = `splity`
const GEOPACKAGE string = `geopackage`
const OVERWRITE string = `overwrite`
const CITY string = `city`
const LON string = `lon`
const LAT string = `lat`

func main() {
	app := cli.NewApp()
	app.Name = "tilegrid"
	app.Usage = "Prepares capture regions and ground-square tile grids for cities"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    CONFIG,
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config. Uses the built-in city configuration when omitted",
			EnvVars: []string{strcase.ToScreamingSnake(CONFIG)},
		},
		&cli.StringSliceFlag{
			Name:    CITIES,
			Usage:   "City keys to process. Defaults to every configured city",
			EnvVars: []string{strcase.ToScreamingSnake(CITIES)},
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:   "boundaries",
			Usage:  "Resolve city boundaries, size the 16:9 capture boxes and save the boundary records",
			Action: runBoundaries,
		},
		{
			Name:  "grid",
			Usage: "Build tile grids from saved boundary records and save one manifest per city",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:    TILESIZE,
					Usage:   "Tile size in km, overriding the configured size",
					EnvVars: []string{strcase.ToScreamingSnake(TILESIZE)},
				},
			},
			Action: runGrid,
		},
		{
			Name:  "export",
			Usage: "Write .xtnt extent files (full + chunks) and optionally a GeoPackage per saved manifest",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    SPLITX,
					Usage:   "Number of horizontal chunk splits",
					Value:   2,
					EnvVars: []string{strcase.ToScreamingSnake(SPLITX)},
				},
				&cli.IntFlag{
					Name:    SPLITY,
					Usage:   "Number of vertical chunk splits",
					Value:   2,
					EnvVars: []string{strcase.ToScreamingSnake(SPLITY)},
				},
				&cli.BoolFlag{
					Name:    GEOPACKAGE,
					Aliases: []string{"g"},
					Usage:   "Also export the tile polygons as a GeoPackage",
					EnvVars: []string{strcase.ToScreamingSnake(GEOPACKAGE)},
				},
				&cli.BoolFlag{
					Name:    OVERWRITE,
					Aliases: []string{"o"},
					Usage:   "Overwrite an existing target GeoPackage",
					EnvVars: []string{strcase.ToScreamingSnake(OVERWRITE)},
				},
			},
			Action: runExport,
		},
		{
			Name:  "status",
			Usage: "Print per-source status counts for a saved manifest",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     CITY,
					Usage:    "City key of the manifest",
					Required: true,
					EnvVars:  []string{strcase.ToScreamingSnake(CITY)},
				},
				&cli.Float64Flag{
					Name:  LON,
					Usage: "With --lat: print the tile covering this coordinate",
				},
				&cli.Float64Flag{
					Name:  LAT,
					Usage: "With --lon: print the tile covering this coordinate",
				},
			},
			Action: runStatus,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup(c *cli.Context) (*config.Config, *manifest.Store, []string, error) {
	cfg, err := config.Load(c.String(CONFIG))
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := manifest.NewStore(filepath.Join(cfg.OutputDir, "manifests"))
	if err != nil {
		return nil, nil, nil, err
	}

	cities := c.StringSlice(CITIES)
	if len(cities) == 0 {
		cities = maps.Keys(cfg.Cities)
	} else {
		for _, key := range cities {
			if _, ok := cfg.Cities[key]; !ok {
				return nil, nil, nil, fmt.Errorf("unknown city key %q", key)
			}
		}
	}
	slices.Sort(cities)
	return cfg, store, cities, nil
}

func runBoundaries(c *cli.Context) error {
	cfg, store, cities, err := setup(c)
	if err != nil {
		return err
	}
	resolver := boundary.NewResolver(cfg.Cities, boundary.NewNominatimGeocoder(cfg.Geocoder))

	log.Println("=== resolving city boundaries ===")
	records := make(map[string]boundary.Record, len(cities))
	for _, key := range cities {
		log.Printf("processing %s", key)
		city := cfg.Cities[key]

		cb, err := resolver.Resolve(c.Context, key)
		if err != nil {
			return err
		}
		box, err := boundary.ComputeMasterBBox(cb.Polygon, city.MinClearanceKm, city.CenterOffsetKm)
		if err != nil {
			// one bad city must not abort the batch
			log.Printf("  skipping %s: %v", key, err)
			continue
		}
		records[key] = boundary.NewRecord(city, cb, box)
		log.Printf("  %s: %.2f x %.2f km capture box, clearance %.2f/%.2f km (%s)",
			key, box.WidthKm, box.HeightKm, box.ClearanceWidthKm, box.ClearanceHeightKm, cb.Provenance)
	}
	if len(records) == 0 {
		return errors.New("no city produced a valid boundary")
	}

	path, err := store.SaveBoundaryRecords(records)
	if err != nil {
		return err
	}
	log.Printf("=== saved %d boundary records to %s ===", len(records), path)
	return nil
}

func runGrid(c *cli.Context) error {
	cfg, store, cities, err := setup(c)
	if err != nil {
		return err
	}
	tileSizeKm := cfg.TileSizeKm
	if c.IsSet(TILESIZE) {
		tileSizeKm = c.Float64(TILESIZE)
	}

	records, err := store.LoadBoundaryRecords()
	if err != nil {
		return err
	}

	log.Println("=== building tile grids ===")
	var built int
	for _, key := range cities {
		record, ok := records[key]
		if !ok {
			log.Printf("  skipping %s: no boundary record", key)
			continue
		}
		m, err := grid.Build(key, record.MasterBBox, tileSizeKm, cfg.DataSources)
		if err != nil {
			log.Printf("  skipping %s: %v", key, err)
			continue
		}
		if err := store.Save(m); err != nil {
			return err
		}
		built++
		log.Printf("  %s: %d tiles (%d x %d), %.2f km2 covered",
			key, m.Grid.NTiles, m.Grid.NRows, m.Grid.NCols, m.CoverageAreaKm2())
	}
	if built == 0 {
		return errors.New("no city produced a valid grid")
	}
	log.Printf("=== built %d tile grids ===", built)
	return nil
}

func runExport(c *cli.Context) error {
	cfg, store, cities, err := setup(c)
	if err != nil {
		return err
	}
	framesDir := filepath.Join(cfg.OutputDir, "frames")

	log.Println("=== exporting extents ===")
	for _, key := range cities {
		m, err := store.Load(key)
		if err != nil {
			if errors.Is(err, manifest.ErrManifestNotFound) {
				log.Printf("  skipping %s: no manifest", key)
				continue
			}
			return err
		}

		path, err := manifest.ExportExtent(m, framesDir)
		if err != nil {
			return err
		}
		log.Printf("  %s", path)

		chunks, err := manifest.ExportChunks(m, framesDir, c.Int(SPLITX), c.Int(SPLITY))
		if err != nil {
			return err
		}
		log.Printf("  %d chunk extents for %s", len(chunks), key)

		if c.Bool(GEOPACKAGE) {
			target := filepath.Join(cfg.OutputDir, key+"_tiles.gpkg")
			if c.Bool(OVERWRITE) {
				if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("could not remove target file: %w", err)
				}
			}
			if err := manifest.ExportGeoPackage(m, target); err != nil {
				return err
			}
			log.Printf("  %s", target)
		}
	}
	log.Println("=== done exporting ===")
	return nil
}

func runStatus(c *cli.Context) error {
	_, store, _, err := setup(c)
	if err != nil {
		return err
	}

	m, err := store.Load(c.String(CITY))
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d tiles (%d x %d), %.2f km2\n",
		m.CityName, m.Grid.NTiles, m.Grid.NRows, m.Grid.NCols, m.CoverageAreaKm2())
	for _, source := range m.Sources() {
		counts, err := m.StatusCounts(source)
		if err != nil {
			return err
		}
		fmt.Printf("  %-16s pending=%d downloading=%d processing=%d completed=%d failed=%d\n",
			source,
			counts[grid.StatusPending], counts[grid.StatusDownloading],
			counts[grid.StatusProcessing], counts[grid.StatusCompleted], counts[grid.StatusFailed])
	}

	if c.IsSet(LON) && c.IsSet(LAT) {
		index, err := grid.NewSpatialIndex(m)
		if err != nil {
			return err
		}
		tile, ok := index.TileAt(c.Float64(LON), c.Float64(LAT))
		if !ok {
			return fmt.Errorf("no tile covers (%v, %v)", c.Float64(LON), c.Float64(LAT))
		}
		fmt.Printf("tile at (%v, %v): %s\n", c.Float64(LON), c.Float64(LAT), tile.ID)
	}
	return nil
}
