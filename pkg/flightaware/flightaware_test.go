package flightaware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/flightportal/pkg/flight"
	"github.com/unklstewy/flightportal/pkg/geo"
	"github.com/unklstewy/flightportal/pkg/retry"
)

const flightsJSON = `{
  "flights": [
    {"ident": "AAL328", "fa_flight_id": "AAL328-1", "status": "Scheduled",
     "origin": {"code_iata": "LGA", "code_icao": "KLGA"},
     "destination": {"code_iata": "ORD", "code_icao": "KORD"},
     "actual_on": null, "cancelled": true},
    {"ident": "AAL328", "fa_flight_id": "AAL328-2", "status": "En Route / On Time",
     "origin": {"code_iata": "ORD", "code_icao": "KORD"},
     "destination": {"code_iata": "LGA", "code_icao": "KLGA"},
     "actual_on": null, "cancelled": false},
    {"ident": "AAL328", "fa_flight_id": "AAL328-3", "status": "Arrived",
     "origin": {"code_iata": "LGA", "code_icao": "KLGA"},
     "destination": {"code_iata": "ORD", "code_icao": "KORD"},
     "actual_on": "2026-10-18T21:04:00Z", "cancelled": false}
  ]
}`

func newTestClient(url string) *Client {
	return NewClient(Config{APIKey: "test-key", BaseURL: url, RequestsPerHour: 3600 * 1000})
}

func TestGetRoute(t *testing.T) {
	t.Run("Airborne leg", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/flights/AAL328", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("x-apikey"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(flightsJSON))
		}))
		defer server.Close()

		route, err := newTestClient(server.URL).GetRoute(context.Background(), " aal328 ")
		require.NoError(t, err)
		require.NotNil(t, route)
		assert.Equal(t, "ORD", route.Origin)
		assert.Equal(t, "LGA", route.Destination)
		assert.Equal(t, "AAL328", route.Ident)
	})

	t.Run("ICAO code when IATA is missing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"flights":[{"ident":"N123AB","origin":{"code_icao":"KTEB"},"destination":null}]}`))
		}))
		defer server.Close()

		route, err := newTestClient(server.URL).GetRoute(context.Background(), "N123AB")
		require.NoError(t, err)
		require.NotNil(t, route)
		assert.Equal(t, "KTEB", route.Origin)
		assert.Empty(t, route.Destination)
	})

	t.Run("Not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		route, err := newTestClient(server.URL).GetRoute(context.Background(), "XYZ1")
		require.NoError(t, err)
		assert.Nil(t, route)
	})

	t.Run("Only landed flights", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"flights":[{"ident":"DAL1","actual_on":"2026-10-18T21:04:00Z"}]}`))
		}))
		defer server.Close()

		route, err := newTestClient(server.URL).GetRoute(context.Background(), "DAL1")
		require.NoError(t, err)
		assert.Nil(t, route)
	})

	t.Run("Rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GetRoute(context.Background(), "AAL328")
		require.Error(t, err)
		rle, ok := retry.IsRateLimitError(err)
		require.True(t, ok)
		assert.Equal(t, 429, rle.StatusCode)
	})

	t.Run("Server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GetRoute(context.Background(), "AAL328")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("Empty callsign makes no request", func(t *testing.T) {
		route, err := newTestClient("http://127.0.0.1:1").GetRoute(context.Background(), "  ")
		require.NoError(t, err)
		assert.Nil(t, route)
	})
}

type staticSource struct {
	records []flight.Record
	err     error
}

func (s staticSource) SearchFlights(context.Context, geo.Bounds) ([]flight.Record, error) {
	out := make([]flight.Record, len(s.records))
	copy(out, s.records)
	return out, s.err
}

type fakeLookup struct {
	mu     sync.Mutex
	routes map[string]*Route
	err    error
	calls  []string
}

func (f *fakeLookup) GetRoute(_ context.Context, callsign string) (*Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, callsign)
	if f.err != nil {
		return nil, f.err
	}
	return f.routes[callsign], nil
}

func positioned(callsign string) flight.Record {
	return at(callsign, 40.5, -73.5, 2000)
}

func at(callsign string, lat, lng float64, alt int) flight.Record {
	return flight.Record{ID: callsign, Callsign: callsign, Lat: lat, Lng: lng, HasPosition: true, AltitudeFt: alt, HasAltitude: true}
}

func TestEnricher(t *testing.T) {
	bounds := geo.Bounds{North: 41, South: 40, West: -74, East: -73}

	t.Run("Fills the lead flight once", func(t *testing.T) {
		lookup := &fakeLookup{routes: map[string]*Route{
			"AAL328": {Ident: "AAL328", Origin: "ORD", Destination: "LGA"},
		}}
		src := staticSource{records: []flight.Record{positioned("AAL328"), positioned("RPA4721")}}
		e := NewEnricher(src, lookup)

		for i := 0; i < 3; i++ {
			records, err := e.SearchFlights(context.Background(), bounds)
			require.NoError(t, err)
			assert.Equal(t, "ORD → LGA", records[0].Route())
			assert.Empty(t, records[1].OriginCode, "only the lead flight is looked up")
		}
		assert.Equal(t, []string{"AAL328"}, lookup.calls, "routes are cached")
	})

	t.Run("Misses are cached", func(t *testing.T) {
		lookup := &fakeLookup{routes: map[string]*Route{}}
		e := NewEnricher(staticSource{records: []flight.Record{positioned("N123AB")}}, lookup)

		for i := 0; i < 2; i++ {
			records, err := e.SearchFlights(context.Background(), bounds)
			require.NoError(t, err)
			assert.Empty(t, records[0].Route())
		}
		assert.Len(t, lookup.calls, 1)
	})

	t.Run("Records with a route or no position are skipped", func(t *testing.T) {
		withRoute := positioned("JBU123")
		withRoute.OriginCode, withRoute.DestCode = "BOS", "LGA"
		noPosition := flight.Record{ID: "x", Callsign: "UAL1"}

		lookup := &fakeLookup{routes: map[string]*Route{"DAL9": {Ident: "DAL9", Origin: "ATL", Destination: "LGA"}}}
		e := NewEnricher(staticSource{records: []flight.Record{withRoute, noPosition, positioned("DAL9")}}, lookup, WithMaxLookups(2))

		records, err := e.SearchFlights(context.Background(), bounds)
		require.NoError(t, err)
		assert.Equal(t, "BOS → LGA", records[0].Route())
		assert.Equal(t, "ATL → LGA", records[2].Route())
		assert.Equal(t, []string{"DAL9"}, lookup.calls)
	})

	t.Run("Only displayable records spend a lookup", func(t *testing.T) {
		lookup := &fakeLookup{routes: map[string]*Route{
			"HIGH1": {Ident: "HIGH1", Origin: "JFK", Destination: "LAX"},
			"FAR1":  {Ident: "FAR1", Origin: "EWR", Destination: "MIA"},
			"AAL1":  {Ident: "AAL1", Origin: "ORD", Destination: "LGA"},
		}}
		src := staticSource{records: []flight.Record{
			at("HIGH1", 40.5, -73.5, 35000),
			at("FAR1", 42.0, -71.0, 1800),
			at("AAL1", 40.6, -73.6, 1800),
		}}
		e := NewEnricher(src, lookup, WithMaxAltitude(5000))

		records, err := e.SearchFlights(context.Background(), bounds)
		require.NoError(t, err)
		assert.Equal(t, []string{"AAL1"}, lookup.calls)

		shown := flight.Collect(flight.Filter(records, 5000, bounds))
		require.Len(t, shown, 1)
		assert.Equal(t, "ORD → LGA", shown[0].Route())
		assert.Empty(t, records[0].OriginCode)
		assert.Empty(t, records[1].OriginCode)
	})

	t.Run("Lookup failure passes records through", func(t *testing.T) {
		lookup := &fakeLookup{err: errors.New("quota exceeded")}
		e := NewEnricher(staticSource{records: []flight.Record{positioned("AAL328")}}, lookup)

		records, err := e.SearchFlights(context.Background(), bounds)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Empty(t, records[0].OriginCode)

		_, err = e.SearchFlights(context.Background(), bounds)
		require.NoError(t, err)
		assert.Len(t, lookup.calls, 2, "failures are not cached")
	})

	t.Run("Source error is returned", func(t *testing.T) {
		lookup := &fakeLookup{}
		e := NewEnricher(staticSource{err: errors.New("feed down")}, lookup)

		_, err := e.SearchFlights(context.Background(), bounds)
		require.Error(t, err)
		assert.Empty(t, lookup.calls)
	})
}
