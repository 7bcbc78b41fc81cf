package types

import (
	"math"
	"testing"
)

func TestCoordinateIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		coord Coordinate
		want  bool
	}{
		{"raleigh", Coordinate{Latitude: 35.7796, Longitude: -78.6382}, true},
		{"null island", Coordinate{Latitude: 0, Longitude: 0}, false},
		{"lat out of range", Coordinate{Latitude: 91, Longitude: 10}, false},
		{"lng out of range", Coordinate{Latitude: 10, Longitude: -181}, false},
		{"nan lat", Coordinate{Latitude: math.NaN(), Longitude: 10}, false},
		{"inf lng", Coordinate{Latitude: 10, Longitude: math.Inf(1)}, false},
		{"zero lat only", Coordinate{Latitude: 0, Longitude: -78.6}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.coord.IsValid(); got != tt.want {
				t.Errorf("IsValid(%+v) = %v, want %v", tt.coord, got, tt.want)
			}
		})
	}
}

func TestDistanceMeters(t *testing.T) {
	t.Parallel()

	raleigh := Coordinate{Latitude: 35.7796, Longitude: -78.6382}
	durham := Coordinate{Latitude: 35.9940, Longitude: -78.8986}

	// Raleigh to Durham is roughly 34km.
	got := raleigh.DistanceMeters(durham)
	if got < 30000 || got > 38000 {
		t.Errorf("DistanceMeters(raleigh, durham) = %.0f, want ~34000", got)
	}

	if d := raleigh.DistanceMeters(raleigh); d != 0 {
		t.Errorf("DistanceMeters(self) = %f, want 0", d)
	}

	// Symmetry.
	if a, b := raleigh.DistanceMeters(durham), durham.DistanceMeters(raleigh); math.Abs(a-b) > 1e-6 {
		t.Errorf("distance not symmetric: %f vs %f", a, b)
	}
}
