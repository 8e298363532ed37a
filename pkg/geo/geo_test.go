package geo

import (
	"math"
	"testing"
)

// lgaRunway04 is the approach corridor used by the default configuration.
var lgaRunway04 = Bounds{North: 40.756132, South: 40.686813, West: -73.961956, East: -73.887739}

// TestParseBoundsBox tests parsing of the "N,S,W,E" box format.
func TestParseBoundsBox(t *testing.T) {
	t.Run("Valid box", func(t *testing.T) {
		b, err := ParseBoundsBox("40.756132,40.686813,-73.961956,-73.887739")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if b != lgaRunway04 {
			t.Errorf("Expected %+v, got %+v", lgaRunway04, b)
		}
	})

	t.Run("Tolerates whitespace", func(t *testing.T) {
		b, err := ParseBoundsBox(" 41, 40 , -74,-73 ")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if b.North != 41 || b.South != 40 || b.West != -74 || b.East != -73 {
			t.Errorf("Unexpected bounds %+v", b)
		}
	})

	t.Run("Wrong field count", func(t *testing.T) {
		if _, err := ParseBoundsBox("40,41,-74"); err == nil {
			t.Error("Expected error for 3 values")
		}
	})

	t.Run("Non-numeric value", func(t *testing.T) {
		if _, err := ParseBoundsBox("40,abc,-74,-73"); err == nil {
			t.Error("Expected error for non-numeric value")
		}
	})

	t.Run("Inverted latitude", func(t *testing.T) {
		if _, err := ParseBoundsBox("40,41,-74,-73"); err == nil {
			t.Error("Expected error when south is north of north")
		}
	})
}

// TestBoundsStringRoundTrip verifies String produces a parseable box.
func TestBoundsStringRoundTrip(t *testing.T) {
	b, err := ParseBoundsBox(lgaRunway04.String())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if b != lgaRunway04 {
		t.Errorf("Expected %+v, got %+v", lgaRunway04, b)
	}
}

// TestContains tests inclusive containment.
func TestContains(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		want     bool
	}{
		{"Center", 40.72, -73.92, true},
		{"North edge", lgaRunway04.North, -73.92, true},
		{"South-west corner", lgaRunway04.South, lgaRunway04.West, true},
		{"Too far north", 40.80, -73.92, false},
		{"Too far east", 40.72, -73.80, false},
		{"NaN latitude", math.NaN(), -73.92, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lgaRunway04.Contains(tt.lat, tt.lng); got != tt.want {
				t.Errorf("Contains(%f, %f) = %v, want %v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}

// TestRadiusNM verifies the covering radius reaches every corner.
func TestRadiusNM(t *testing.T) {
	r := lgaRunway04.RadiusNM()
	c := lgaRunway04.Center()

	// Corridor is roughly 4 nm by 3.4 nm, so the half-diagonal is ~2.6 nm
	if r < 2 || r > 3.5 {
		t.Errorf("Expected radius ~2.6 nm, got %f", r)
	}
	corner := Point{Latitude: lgaRunway04.North, Longitude: lgaRunway04.East}
	if d := DistanceNauticalMiles(c, corner); d > r+1e-9 {
		t.Errorf("Corner at %f nm lies outside radius %f", d, r)
	}
}

// TestDistanceNauticalMiles tests the haversine distance against a known value.
func TestDistanceNauticalMiles(t *testing.T) {
	// One degree of latitude is ~60 nm
	d := DistanceNauticalMiles(Point{Latitude: 40, Longitude: -73}, Point{Latitude: 41, Longitude: -73})
	if math.Abs(d-60.0) > 0.5 {
		t.Errorf("Expected ~60 nm, got %f", d)
	}
}
