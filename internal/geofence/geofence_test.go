package geofence

import (
	"math"
	"testing"
)

var pune = Coordinates{Latitude: 18.5204, Longitude: 73.8567}

func TestDistanceIdentity(t *testing.T) {
	if d := Distance(pune, pune); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	other := Coordinates{Latitude: 18.9582, Longitude: 72.8321} // Mumbai CST
	ab := Distance(pune, other)
	ba := Distance(other, pune)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("asymmetric: %v vs %v", ab, ba)
	}
	if ab < 100_000 || ab > 200_000 {
		t.Errorf("Pune-Mumbai = %.0fm, expected on the order of 150km", ab)
	}
}

func TestDistanceAlongMeridian(t *testing.T) {
	// one degree of latitude on a 6371km sphere
	a := Coordinates{Latitude: 0, Longitude: 0}
	b := Coordinates{Latitude: 1, Longitude: 0}
	want := 6371000.0 * math.Pi / 180
	if d := Distance(a, b); math.Abs(d-want) > 0.01 {
		t.Errorf("1 degree latitude = %v, want %v", d, want)
	}
}

func TestWithinRadius(t *testing.T) {
	north500 := Coordinates{Latitude: pune.Latitude + 500/111194.93, Longitude: pune.Longitude}

	tests := []struct {
		name   string
		pos    Coordinates
		radius float64
		want   bool
	}{
		{"at center zero radius", pune, 0, true},
		{"inside", Coordinates{Latitude: pune.Latitude + 0.001, Longitude: pune.Longitude}, 500, true},
		{"on the boundary", north500, 500.01, true},
		{"just outside", Coordinates{Latitude: pune.Latitude + 0.006, Longitude: pune.Longitude}, 500, false},
		{"far away", Coordinates{Latitude: 19.0760, Longitude: 72.8777}, 500, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinRadius(tt.pos, pune, tt.radius); got != tt.want {
				t.Errorf("WithinRadius = %v, want %v (distance %v)", got, tt.want, Distance(tt.pos, pune))
			}
		})
	}
}
