package boundary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/perimeterx/marshmallow"

	"github.com/urbanatlas/tilegrid/config"
	"github.com/urbanatlas/tilegrid/geomhelp"
)

// ErrBoundaryNotFound means the geocoder answered but had no usable polygon
// for the query. Not retried; the resolver falls back to the configured bbox.
var ErrBoundaryNotFound = errors.New("no boundary found")

// Geocoder looks up an administrative boundary polygon for a free-form query.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (geom.Polygon, error)
}

// NominatimGeocoder queries a Nominatim-compatible search endpoint for
// administrative polygons. Every call is bounded by the configured timeout and
// retried a bounded number of times with doubling backoff; exhaustion is
// reported as an error, never as a hang.
type NominatimGeocoder struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
}

func NewNominatimGeocoder(cfg config.Geocoder) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: cfg.Timeout()},
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff(),
	}
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (geom.Polygon, error) {
	backoff := g.backoff
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("  geocode retry %d/%d for %q in %v", attempt, g.maxRetries, query, backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		polygon, err := g.geocodeOnce(ctx, query)
		if err == nil {
			return polygon, nil
		}
		if errors.Is(err, ErrBoundaryNotFound) {
			// an empty result will not improve on retry
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("geocoding %q failed after %d attempts: %w", query, g.maxRetries+1, lastErr)
}

func (g *NominatimGeocoder) geocodeOnce(ctx context.Context, query string) (geom.Polygon, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "geojson")
	q.Set("polygon_geojson", "1")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "tilegrid")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var fc geojson.FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("could not decode geocoder response: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, ErrBoundaryNotFound
	}
	feature := fc.Features[0]
	logFeatureName(query, feature.Properties)
	return polygonFromGeometry(feature.Geometry.Geometry)
}

// logFeatureName pulls the display name out of the otherwise free-form
// properties object.
func logFeatureName(query string, properties map[string]interface{}) {
	if properties == nil {
		return
	}
	var named struct {
		DisplayName string `json:"display_name"`
	}
	if _, err := marshmallow.UnmarshalFromJSONMap(properties, &named); err != nil || named.DisplayName == "" {
		return
	}
	log.Printf("  geocoder matched %q to %q", query, named.DisplayName)
}

func polygonFromGeometry(g geom.Geometry) (geom.Polygon, error) {
	switch gg := g.(type) {
	case geom.Polygon:
		return gg, nil
	case geom.MultiPolygon:
		p := geomhelp.LargestPolygon(gg)
		if len(p) == 0 {
			return nil, ErrBoundaryNotFound
		}
		return p, nil
	default:
		// point or linestring results are not boundaries
		return nil, ErrBoundaryNotFound
	}
}
