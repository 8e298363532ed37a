package display

import (
	"fmt"

	"github.com/unklstewy/flightportal/pkg/airport"
	"github.com/unklstewy/flightportal/pkg/runway"
)

// Frame kinds.
const (
	KindFlight    = "flight"
	KindNoTraffic = "no_traffic"
	KindWeather   = "weather"
)

// DefaultRowColors are violet, indigo and orange.
var DefaultRowColors = [3]string{"#EE82EE", "#4B0082", "#FFA500"}

// Frame is three rows of text with one color per row.
type Frame struct {
	Kind   string    `json:"kind"`
	Rows   [3]string `json:"rows"`
	Colors [3]string `json:"colors"`
	Stale  bool      `json:"stale"`
}

// Compose lays out an update:
//
//	flight:     callsign / "A321 1800ft" / "ORD → LGA"
//	no traffic: "RWY04 ACTIVE" / "No Approach" / "Traffic"
//	weather:    "ARR: RWY22" / "DEP: RWY13" / "180@6kt"
func Compose(u Update, colors [3]string) Frame {
	f := Frame{Colors: colors, Stale: u.Stale}

	switch u.Mode {
	case runway.ModeFlightTracking:
		if len(u.Flights) == 0 {
			f.Kind = KindNoTraffic
			f.Rows = [3]string{"RWY" + u.TrackedRunway + " ACTIVE", "No Approach", "Traffic"}
			return f
		}
		rec := u.Flights[0]
		alt := "---"
		if rec.HasAltitude {
			alt = fmt.Sprintf("%dft", rec.AltitudeFt)
		}
		f.Kind = KindFlight
		f.Rows = [3]string{rec.Label(), trimJoin(rec.AircraftType, alt), rec.Route()}

	default:
		arr, dep := "??", "??"
		if u.Runway != nil {
			arr = orUnknown(u.Runway.ArrivalRunway)
			dep = orUnknown(u.Runway.DepartureRunway)
		}
		f.Kind = KindWeather
		f.Rows = [3]string{"ARR: RWY" + arr, "DEP: RWY" + dep, orUnknown(airport.ParseWind(u.Weather))}
	}
	return f
}

func orUnknown(s string) string {
	if s == "" {
		return "??"
	}
	return s
}

func trimJoin(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}
