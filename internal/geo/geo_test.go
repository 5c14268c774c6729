package geo

import (
	"math"
	"testing"

	"github.com/realpay/supply-engine/internal/model"
)

func TestToRadians(t *testing.T) {
	cases := []struct {
		deg, rad float64
	}{
		{0, 0},
		{90, math.Pi / 2},
		{180, math.Pi},
		{-180, -math.Pi},
		{360, 2 * math.Pi},
	}
	for _, c := range cases {
		if got := ToRadians(c.deg); math.Abs(got-c.rad) > 1e-12 {
			t.Errorf("ToRadians(%v) = %v, want %v", c.deg, got, c.rad)
		}
	}
}

func TestHaversineM_ZeroDistance(t *testing.T) {
	p := model.Point{Lat: 51.5074, Lng: -0.1278}
	if got := HaversineM(p, p); got != 0 {
		t.Errorf("distance from a point to itself should be 0, got %v", got)
	}
}

func TestHaversineM_OneDegreeAtEquator(t *testing.T) {
	// One degree of longitude at the equator ≈ 111,195 m with R = 6,371,000.
	a := model.Point{Lat: 0, Lng: 0}
	b := model.Point{Lat: 0, Lng: 1}
	got := HaversineM(a, b)
	want := 2 * math.Pi * EarthRadiusM / 360
	if math.Abs(got-want) > 1 {
		t.Errorf("expected ≈ %v m, got %v", want, got)
	}
}

func TestHaversineM_LondonBirmingham(t *testing.T) {
	london := model.Point{Lat: 51.5074, Lng: -0.1278}
	birmingham := model.Point{Lat: 52.4862, Lng: -1.8904}
	got := HaversineM(london, birmingham)
	// Roughly 163 km.
	if got < 160000 || got > 166000 {
		t.Errorf("London–Birmingham should be ≈ 163 km, got %v m", got)
	}
}

func TestHaversineM_Symmetric(t *testing.T) {
	a := model.Point{Lat: 55.9533, Lng: -3.1883}
	b := model.Point{Lat: 54.9783, Lng: -1.6178}
	if d1, d2 := HaversineM(a, b), HaversineM(b, a); math.Abs(d1-d2) > 1e-6 {
		t.Errorf("distance should be symmetric: %v vs %v", d1, d2)
	}
}

func TestInterpolate(t *testing.T) {
	a := model.Point{Lat: 0, Lng: 0}
	b := model.Point{Lat: 10, Lng: -20}

	if got := Interpolate(a, b, 0); got != a {
		t.Errorf("t=0 should return a, got %+v", got)
	}
	if got := Interpolate(a, b, 1); got != b {
		t.Errorf("t=1 should return b, got %+v", got)
	}
	mid := Interpolate(a, b, 0.5)
	if math.Abs(mid.Lat-5) > 1e-12 || math.Abs(mid.Lng+10) > 1e-12 {
		t.Errorf("midpoint should be (5, -10), got %+v", mid)
	}
}
