// Package runway turns an airport-status snapshot into a display mode.
package runway

import (
	"strings"
	"time"
)

// Mode is the display operating mode.
type Mode int

const (
	// ModeWeather shows static weather and runway information.
	// It is the zero value and the cold-start default.
	ModeWeather Mode = iota

	// ModeFlightTracking shows live aircraft on the tracked approach.
	ModeFlightTracking
)

// String returns the mode name used in logs and the status API.
func (m Mode) String() string {
	switch m {
	case ModeFlightTracking:
		return "flight_tracking"
	case ModeWeather:
		return "weather"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name. It accepts the String form plus the short
// aliases "flight" and "flights".
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weather", "":
		return ModeWeather, true
	case "flight_tracking", "flight", "flights":
		return ModeFlightTracking, true
	default:
		return ModeWeather, false
	}
}

// Status holds the runways currently in use at the airport.
type Status struct {
	// ArrivalRunway is the landing runway (e.g. "22", "04L"). Empty when unknown.
	ArrivalRunway string `json:"arrival_runway"`

	// DepartureRunway is the takeoff runway. Empty when unknown.
	DepartureRunway string `json:"departure_runway"`

	// ObservedAt is when the status was fetched.
	ObservedAt time.Time `json:"observed_at"`

	// RawText is the source broadcast text, kept for diagnostics.
	RawText string `json:"-"`
}

// Resolve picks the display mode from the last resolved runway status.
//
// When present is false (no status has ever been fetched) the previous mode
// is returned unchanged: missing data alone never flips the mode. Otherwise
// the mode is flight tracking exactly when the arrival runway is the tracked
// runway.
func Resolve(status Status, present bool, trackedRunway string, previous Mode) Mode {
	if !present {
		return previous
	}
	if Matches(status.ArrivalRunway, trackedRunway) {
		return ModeFlightTracking
	}
	return ModeWeather
}

// Matches reports whether an active runway designator refers to the tracked
// runway. Designators are compared after Normalize. A tracked runway without
// a side suffix matches any parallel with the same number ("04" matches
// "04L"); a tracked runway with a suffix must match exactly. An empty active
// runway never matches.
func Matches(active, tracked string) bool {
	a := Normalize(active)
	t := Normalize(tracked)
	if a == "" || t == "" {
		return false
	}
	if a == t {
		return true
	}
	if !hasSide(t) && hasSide(a) {
		return a[:len(a)-1] == t
	}
	return false
}

// Normalize canonicalizes a runway designator: surrounding space and any
// "RWY"/"RY" prefix are removed, letters are upper-cased and leading zeros
// are dropped from the number, so "rwy 04l" becomes "4L".
// Strings that are not runway designators normalize to "".
func Normalize(designator string) string {
	s := strings.ToUpper(strings.TrimSpace(designator))
	for _, prefix := range []string{"RWY", "RY"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}

	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits == 0 || digits > 2 {
		return ""
	}
	side := s[digits:]
	if len(side) > 1 || (side != "" && !strings.ContainsAny(side, "LCR")) {
		return ""
	}

	num := strings.TrimLeft(s[:digits], "0")
	if num == "" {
		return ""
	}
	return num + side
}

func hasSide(normalized string) bool {
	switch normalized[len(normalized)-1] {
	case 'L', 'C', 'R':
		return true
	}
	return false
}
