package flightaware

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/unklstewy/flightportal/pkg/cache"
	"github.com/unklstewy/flightportal/pkg/flight"
	"github.com/unklstewy/flightportal/pkg/geo"
)

// RouteLookup resolves a callsign to its route. *Client implements it.
type RouteLookup interface {
	GetRoute(ctx context.Context, callsign string) (*Route, error)
}

// Enricher wraps a flight source and fills in the origin and destination of
// the leading displayable records when the source left them empty. Routes (and misses)
// are cached per callsign, so each flight costs at most one lookup.
//
// Lookup failures never fail the search: the records are returned as the
// source produced them.
type Enricher struct {
	next       flight.Source
	lookup     RouteLookup
	routes     *cache.Cache[string, Route]
	ttl        time.Duration
	maxLookups int
	maxAltFt   int
	logger     *log.Logger
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithRouteTTL sets how long a looked-up route is reused (default 6h).
func WithRouteTTL(ttl time.Duration) EnricherOption {
	return func(e *Enricher) { e.ttl = ttl }
}

// WithMaxLookups sets how many leading records are enriched per search
// (default 1, the flight on the display).
func WithMaxLookups(n int) EnricherOption {
	return func(e *Enricher) { e.maxLookups = n }
}

// WithMaxAltitude sets the altitude ceiling of the display filter. Only
// records that pass the filter for the searched bounds are looked up
// (default flight.MaxAltitudeFt, i.e. bounds only).
func WithMaxAltitude(ft int) EnricherOption {
	return func(e *Enricher) { e.maxAltFt = ft }
}

// WithLogger sets the logger for lookup failures.
func WithLogger(logger *log.Logger) EnricherOption {
	return func(e *Enricher) { e.logger = logger }
}

// NewEnricher wraps next.
func NewEnricher(next flight.Source, lookup RouteLookup, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		next:       next,
		lookup:     lookup,
		routes:     cache.New[string, Route](),
		ttl:        6 * time.Hour,
		maxLookups: 1,
		maxAltFt:   flight.MaxAltitudeFt,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SearchFlights searches the wrapped source and enriches the result.
// Records are only considered in their original order; the filter that
// runs later sees the same records it would have seen without enrichment.
func (e *Enricher) SearchFlights(ctx context.Context, bounds geo.Bounds) ([]flight.Record, error) {
	records, err := e.next.SearchFlights(ctx, bounds)
	if err != nil {
		return nil, err
	}

	looked := 0
	for i := range records {
		if looked >= e.maxLookups {
			break
		}
		r := &records[i]
		if r.Callsign == "" || !flight.Displayable(*r, e.maxAltFt, bounds) {
			continue
		}
		if r.OriginCode != "" && r.DestCode != "" {
			continue
		}
		looked++

		route, ok := e.route(ctx, r.Callsign)
		if !ok {
			continue
		}
		if r.OriginCode == "" {
			r.OriginCode = route.Origin
		}
		if r.DestCode == "" {
			r.DestCode = route.Destination
		}
	}
	return records, nil
}

func (e *Enricher) route(ctx context.Context, callsign string) (Route, bool) {
	if route, fresh, ok := e.routes.Get(callsign); ok && fresh {
		return route, route.Ident != ""
	}

	route, err := e.lookup.GetRoute(ctx, callsign)
	if err != nil {
		e.logger.Debug("route lookup failed", "callsign", callsign, "err", err)
		return Route{}, false
	}
	if route == nil {
		// remember the miss so the quota is not spent on it again
		e.routes.Put(callsign, Route{}, e.ttl)
		return Route{}, false
	}
	e.routes.Put(callsign, *route, e.ttl)
	return *route, true
}
