package geo

import (
	"math"
	"testing"

	"campusride/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lng: 77.209, Lat: 28.6139},
			b:         types.Point{Lng: 77.209, Lat: 28.6139},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "across a campus (~1.1km)",
			a:         types.Point{Lng: 77.2090, Lat: 28.6139},
			b:         types.Point{Lng: 77.2190, Lat: 28.6180},
			wantKm:    1.1,
			tolerance: 0.2,
		},
		{
			name:      "Delhi to Mumbai (~1150km)",
			a:         types.Point{Lng: 77.2090, Lat: 28.6139},
			b:         types.Point{Lng: 72.8777, Lat: 19.0760},
			wantKm:    1150,
			tolerance: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	a := types.Point{Lng: 77.0, Lat: 28.0}
	b := types.Point{Lng: 78.0, Lat: 29.0}
	d1 := HaversineKm(a, b)
	d2 := HaversineKm(b, a)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestValidPoint(t *testing.T) {
	tests := []struct {
		name string
		p    types.Point
		want bool
	}{
		{"valid", types.Point{Lng: 77.2, Lat: 28.6}, true},
		{"zero island", types.Point{}, true},
		{"lat too big", types.Point{Lng: 0, Lat: 91}, false},
		{"lng too small", types.Point{Lng: -181, Lat: 0}, false},
		{"nan", types.Point{Lng: math.NaN(), Lat: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidPoint(tt.p); got != tt.want {
				t.Errorf("ValidPoint(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestSortByDistance(t *testing.T) {
	type cand struct {
		id   string
		dist float64
	}
	items := []cand{{"c", 5.0}, {"a", 1.0}, {"b", 3.0}}

	SortByDistance(items, func(c cand) float64 { return c.dist })

	if items[0].id != "a" || items[1].id != "b" || items[2].id != "c" {
		t.Errorf("unexpected sort order: %v", items)
	}
}

func TestSortByDistance_EmptyAndSingle(t *testing.T) {
	var none []int
	SortByDistance(none, func(int) float64 { return 0 })

	one := []int{7}
	SortByDistance(one, func(int) float64 { return 0 })
	if one[0] != 7 {
		t.Errorf("single element sort failed")
	}
}
