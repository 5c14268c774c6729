// Package geo provides great-circle distance and interpolation helpers for
// the shipment simulator. Distances use the haversine formula with the mean
// Earth radius (6,371,000 m), computed via the s2 geometry library.
//
// NaN inputs are not guarded; callers validate coordinates upstream.
package geo

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/realpay/supply-engine/internal/model"
)

// EarthRadiusM is the mean Earth radius in meters.
const EarthRadiusM = 6371000

// ToRadians converts degrees to radians.
func ToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// HaversineM returns the great-circle distance between a and b in meters.
func HaversineM(a, b model.Point) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusM
}

// Interpolate returns the point a fraction t of the way from a to b,
// linearly in lat/lng degrees. t is not clamped.
func Interpolate(a, b model.Point, t float64) model.Point {
	return model.Point{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}
