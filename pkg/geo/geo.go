// Package geo provides the small amount of geodesy FlightPortal needs:
// a lat/lng bounding box for the approach corridor and great-circle
// helpers for converting that box into a center point and search radius.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// KmPerNauticalMile is the length of one nautical mile in kilometers
	KmPerNauticalMile = 1.852
)

// Point is a position on Earth's surface in WGS84 decimal degrees.
type Point struct {
	// Latitude in decimal degrees (-90 to +90)
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64
}

// Bounds is a geographic box. All edges are inclusive.
// The box never crosses the antimeridian (West <= East).
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// ParseBoundsBox parses a "north,south,west,east" string, the format used by
// the FlightRadar24 zone feed (e.g. "40.756132,40.686813,-73.961956,-73.887739").
func ParseBoundsBox(s string) (Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("bounds box %q: expected 4 comma-separated values, got %d", s, len(parts))
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("bounds box %q: value %d: %w", s, i, err)
		}
		vals[i] = v
	}

	b := Bounds{North: vals[0], South: vals[1], West: vals[2], East: vals[3]}
	if err := b.Validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// String formats the box as "north,south,west,east".
func (b Bounds) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.North, b.South, b.West, b.East)
}

// Validate checks that the box is well formed.
func (b Bounds) Validate() error {
	if b.North < -90 || b.North > 90 || b.South < -90 || b.South > 90 {
		return fmt.Errorf("bounds %s: latitude out of range", b)
	}
	if b.West < -180 || b.West > 180 || b.East < -180 || b.East > 180 {
		return fmt.Errorf("bounds %s: longitude out of range", b)
	}
	if b.South > b.North {
		return fmt.Errorf("bounds %s: south edge is north of north edge", b)
	}
	if b.West > b.East {
		return fmt.Errorf("bounds %s: west edge is east of east edge", b)
	}
	return nil
}

// Contains reports whether the point lies inside the box, edges included.
// NaN coordinates are never contained.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Point {
	return Point{
		Latitude:  (b.North + b.South) / 2,
		Longitude: (b.West + b.East) / 2,
	}
}

// RadiusNM returns the distance from the center to the farthest corner,
// i.e. the smallest circle around Center that covers the whole box.
func (b Bounds) RadiusNM() float64 {
	c := b.Center()
	corners := []Point{
		{b.North, b.West}, {b.North, b.East},
		{b.South, b.West}, {b.South, b.East},
	}
	var r float64
	for _, p := range corners {
		if d := DistanceNauticalMiles(c, p); d > r {
			r = d
		}
	}
	return r
}

// DistanceNauticalMiles calculates the great-circle distance between two points
// using the Haversine formula.
func DistanceNauticalMiles(from, to Point) float64 {
	lat1Rad := from.Latitude * DegreesToRadians
	lon1Rad := from.Longitude * DegreesToRadians
	lat2Rad := to.Latitude * DegreesToRadians
	lon2Rad := to.Longitude * DegreesToRadians

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c / KmPerNauticalMile
}
