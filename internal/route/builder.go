// Package route builds dense shipment paths from ordered waypoint lists.
//
// Each consecutive waypoint pair is resolved against an OSRM-style routing
// service (driving profile, full GeoJSON geometry). Any lookup failure
// (network error, non-2xx response, empty geometry, timeout) falls back to
// straight-line interpolation, so Build never fails and never blocks the
// simulator: it runs only at shipment-creation time.
package route

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/realpay/supply-engine/internal/geo"
	"github.com/realpay/supply-engine/internal/model"
)

// DefaultBaseURL is the public OSRM demo server.
const DefaultBaseURL = "https://router.project-osrm.org"

// FallbackSteps is the number of interpolation steps for the straight-line
// fallback, producing steps+1 points per pair.
const FallbackSteps = 100

const lookupTimeout = 5 * time.Second

// Builder resolves waypoint chains into dense paths plus labeled stops.
type Builder struct {
	baseURL string
	client  *http.Client
}

// NewBuilder creates a Builder against the given OSRM base URL. An empty
// baseURL uses the public demo server.
func NewBuilder(baseURL string) *Builder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Builder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: lookupTimeout},
	}
}

// Build produces the dense path and the ordered hub stops for the given
// waypoints. Every waypoint becomes a hub stop, the first one included.
func (b *Builder) Build(ctx context.Context, waypoints []model.Waypoint) (path []model.Point, stops []model.Stop) {
	for i := 0; i < len(waypoints)-1; i++ {
		from, to := waypoints[i], waypoints[i+1]
		seg := b.routeBetween(ctx,
			model.Point{Lat: from.Lat, Lng: from.Lng},
			model.Point{Lat: to.Lat, Lng: to.Lng},
		)
		// Drop the joint point to avoid duplicating segment boundaries.
		if len(path) > 0 && len(seg) > 0 {
			seg = seg[1:]
		}
		path = append(path, seg...)
		stops = append(stops, model.Stop{Lat: to.Lat, Lng: to.Lng, Label: to.Name, Type: model.StopHub})
	}
	if len(waypoints) > 0 {
		first := waypoints[0]
		stops = append([]model.Stop{{Lat: first.Lat, Lng: first.Lng, Label: first.Name, Type: model.StopHub}}, stops...)
	}
	return path, stops
}

// osrmResponse is the subset of the OSRM route response we read.
type osrmResponse struct {
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lng, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// routeBetween fetches a driving path between two points, falling back to
// straight-line interpolation on any failure.
func (b *Builder) routeBetween(ctx context.Context, from, to model.Point) []model.Point {
	pts, err := b.lookup(ctx, from, to)
	if err != nil {
		slog.Warn("route lookup failed, using straight-line fallback", "err", err)
		return FallbackLine(from, to)
	}
	return pts
}

func (b *Builder) lookup(ctx context.Context, from, to model.Point) ([]model.Point, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		b.baseURL, from.Lng, from.Lat, to.Lng, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing service returned %d", resp.StatusCode)
	}

	var decoded osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Routes) == 0 || len(decoded.Routes[0].Geometry.Coordinates) == 0 {
		return nil, fmt.Errorf("empty geometry")
	}

	coords := decoded.Routes[0].Geometry.Coordinates
	pts := make([]model.Point, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			return nil, fmt.Errorf("malformed coordinate")
		}
		pts = append(pts, model.Point{Lat: c[1], Lng: c[0]})
	}
	return pts, nil
}

// FallbackLine traces a straight line from a to b with FallbackSteps
// interpolation steps, endpoints included.
func FallbackLine(a, b model.Point) []model.Point {
	out := make([]model.Point, 0, FallbackSteps+1)
	for i := 0; i <= FallbackSteps; i++ {
		out = append(out, geo.Interpolate(a, b, float64(i)/FallbackSteps))
	}
	return out
}
