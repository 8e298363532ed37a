// Package flight defines the aircraft snapshot shown on the display and the
// filter that reduces a raw search result to display candidates.
package flight

import (
	"context"
	"iter"
	"math"
	"slices"
	"time"

	"github.com/unklstewy/flightportal/pkg/geo"
)

// Record is one aircraft snapshot as returned by a flight source.
// Position and altitude are only meaningful when HasPosition and
// HasAltitude are set; upstream feeds omit them for some targets.
type Record struct {
	// ID is the source's identifier for this flight (e.g. FlightRadar24 flight id)
	ID string `json:"id"`

	// Hex is the 24-bit ICAO Mode S address (e.g. "a12345")
	Hex string `json:"hex"`

	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	HasPosition bool    `json:"has_position"`

	// Track is the ground track in degrees (0-359)
	Track float64 `json:"track"`

	// AltitudeFt is the reported altitude in feet
	AltitudeFt  int  `json:"altitude_ft"`
	HasAltitude bool `json:"has_altitude"`

	// SpeedKt is ground speed in knots
	SpeedKt int `json:"speed_kt"`

	AircraftType string `json:"aircraft_type"`
	Registration string `json:"registration"`
	OriginCode   string `json:"origin"`
	DestCode     string `json:"destination"`
	FlightNumber string `json:"flight_number"`
	Callsign     string `json:"callsign"`
	Airline      string `json:"airline"`

	// ObservedAt is when the source last saw the aircraft
	ObservedAt time.Time `json:"observed_at"`
}

// Label returns the best human-readable identifier for the flight:
// callsign, then flight number, then registration, then hex.
func (r Record) Label() string {
	for _, s := range []string{r.Callsign, r.FlightNumber, r.Registration, r.Hex} {
		if s != "" {
			return s
		}
	}
	return "Unknown"
}

// Route returns "ORIGIN → DEST" with "???" for unknown endpoints, or "" when
// both are unknown.
func (r Record) Route() string {
	if r.OriginCode == "" && r.DestCode == "" {
		return ""
	}
	origin, dest := r.OriginCode, r.DestCode
	if origin == "" {
		origin = "???"
	}
	if dest == "" {
		dest = "???"
	}
	return origin + " → " + dest
}

// Reported altitudes outside this range are decoding errors, not aircraft.
const (
	MinAltitudeFt = -2000
	MaxAltitudeFt = 100000
)

// ValidAltitude converts a reported altitude to whole feet. It reports false
// for NaN, infinities and values outside MinAltitudeFt..MaxAltitudeFt, so
// callers leave HasAltitude unset for them.
func ValidAltitude(ft float64) (int, bool) {
	if math.IsNaN(ft) || ft < MinAltitudeFt || ft > MaxAltitudeFt {
		return 0, false
	}
	return int(math.Round(ft)), true
}

// Source searches for aircraft inside a geographic box.
// Implementations return records in upstream order.
type Source interface {
	SearchFlights(ctx context.Context, bounds geo.Bounds) ([]Record, error)
}

// Filter returns the records whose position lies inside bounds and whose
// altitude is known and at most maxAltitudeFt. Input order is preserved.
//
// The result is lazy and restartable: each range over it walks records
// again. Records with missing or non-finite position or altitude are dropped.
func Filter(records []Record, maxAltitudeFt int, bounds geo.Bounds) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, r := range records {
			if !Displayable(r, maxAltitudeFt, bounds) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Displayable reports whether a single record passes the filter.
func Displayable(r Record, maxAltitudeFt int, bounds geo.Bounds) bool {
	if !r.HasPosition || !r.HasAltitude {
		return false
	}
	if math.IsNaN(r.Lat) || math.IsNaN(r.Lng) || math.IsInf(r.Lat, 0) || math.IsInf(r.Lng, 0) {
		return false
	}
	if r.AltitudeFt > maxAltitudeFt {
		return false
	}
	return bounds.Contains(r.Lat, r.Lng)
}

// Collect materializes a filtered sequence. It never returns nil, so an
// empty result is distinguishable from "no data".
func Collect(seq iter.Seq[Record]) []Record {
	out := slices.Collect(seq)
	if out == nil {
		out = []Record{}
	}
	return out
}
