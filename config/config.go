// Package config loads the capture configuration: which cities to process,
// their geocode queries and fallback boxes, clearances, tile size and the data
// source enumeration. Loaded once at process start; nothing here is mutated
// afterwards.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/urbanatlas/tilegrid/geodesy"
)

//go:embed cities.yaml
var embeddedConfigYAML []byte

// Offset shifts a capture-box center away from terrain that should not
// dominate the frame (e.g. open water). East and north in km, negative for
// west/south.
type Offset struct {
	EastKm  float64 `yaml:"east_km" json:"east_km"`
	NorthKm float64 `yaml:"north_km" json:"north_km"`
}

// City configures one capture region.
type City struct {
	// Geocoder query, e.g. "Grand Tunis, Tunisia"
	Query       string `yaml:"query" json:"osm_query" validate:"required"`
	CountryCode string `yaml:"country_code" json:"country_code,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
	// Minimum ground distance between the city boundary and the capture-area
	// edge, on every side.
	MinClearanceKm float64 `yaml:"min_clearance_km" json:"min_clearance_km" default:"10" validate:"gt=0"`
	CenterOffsetKm *Offset `yaml:"center_offset_km,omitempty" json:"center_offset_km,omitempty"`
	// Used when the geocoder fails or returns nothing.
	FallbackBBox geodesy.BBox `yaml:"fallback_bbox" json:"fallback_bbox" validate:"required"`
}

type Geocoder struct {
	BaseURL        string  `yaml:"base_url" default:"https://nominatim.openstreetmap.org/search" validate:"required,url"`
	TimeoutSeconds float64 `yaml:"timeout_seconds" default:"10" validate:"gt=0"`
	MaxRetries     int     `yaml:"max_retries" default:"2" validate:"gte=0"`
	BackoffSeconds float64 `yaml:"backoff_seconds" default:"1" validate:"gt=0"`
}

func (g Geocoder) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds * float64(time.Second))
}

func (g Geocoder) Backoff() time.Duration {
	return time.Duration(g.BackoffSeconds * float64(time.Second))
}

type Config struct {
	OutputDir  string  `yaml:"output_dir" default:"./datasets"`
	TileSizeKm float64 `yaml:"tile_size_km" default:"2" validate:"gt=0"`
	// The data source names must stay identical between grid construction and
	// later status updates; they are part of every manifest.
	DataSources []string        `yaml:"data_sources" validate:"required,min=1,unique"`
	Geocoder    Geocoder        `yaml:"geocoder"`
	Cities      map[string]City `yaml:"cities" validate:"required,min=1,dive"`
}

// Load reads a YAML config from path, or the embedded default configuration
// when path is empty.
func Load(path string) (*Config, error) {
	raw := embeddedConfigYAML
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, err
	}
	// defaults.Set does not reach into map values
	for key, city := range cfg.Cities {
		if err := defaults.Set(&city); err != nil {
			return nil, err
		}
		cfg.Cities[key] = city
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
