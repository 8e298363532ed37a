// Package display turns scheduler updates into three-row frames for a 64x32
// LED matrix and delivers them to a renderer: the matrix driver, a terminal
// simulation or plain console output.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/unklstewy/flightportal/pkg/flight"
	"github.com/unklstewy/flightportal/pkg/runway"
)

// Renderer shows updates. Render is fire-and-forget: it reports nothing and
// callers wrap slow renderers in Async so it never blocks the scheduler.
type Renderer interface {
	Render(u Update)
}

// Update is what the scheduler hands to the renderer after a tick.
type Update struct {
	// Mode is the mode the display should be in
	Mode runway.Mode `json:"mode"`

	// TrackedRunway is the configured runway, for the no-traffic frame
	TrackedRunway string `json:"tracked_runway"`

	// Runway is the last resolved runway status; nil before the first check
	Runway *runway.Status `json:"runway,omitempty"`

	// Flights are the filtered approach flights in source order
	// (flight tracking mode only; empty means no traffic)
	Flights []flight.Record `json:"flights,omitempty"`

	// Weather is the raw METAR (weather mode only)
	Weather string `json:"weather,omitempty"`

	// FetchedAt is when the shown data was fetched; zero when there is none
	FetchedAt time.Time `json:"fetched_at"`

	// Stale is true when the shown data is past its TTL
	Stale bool `json:"stale"`

	// GeneratedAt is the tick time that produced the update
	GeneratedAt time.Time `json:"generated_at"`
}

// Key identifies what the update would put on screen. Two updates with the
// same key draw the same frame, so the second one need not be rendered.
func (u Update) Key() string {
	var b strings.Builder
	b.WriteString(u.Mode.String())
	switch u.Mode {
	case runway.ModeFlightTracking:
		if len(u.Flights) > 0 {
			f := u.Flights[0]
			fmt.Fprintf(&b, "|%s|%d|%s|%s", f.ID, f.AltitudeFt, f.Label(), f.Route())
		} else {
			b.WriteString("|none")
		}
	default:
		if u.Runway != nil {
			fmt.Fprintf(&b, "|%s|%s", u.Runway.ArrivalRunway, u.Runway.DepartureRunway)
		}
		fmt.Fprintf(&b, "|%s", u.Weather)
	}
	if u.Stale {
		b.WriteString("|stale")
	}
	return b.String()
}
