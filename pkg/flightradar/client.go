// Package flightradar implements flight.Source on top of the FlightRadar24
// zone feed, the unofficial endpoint the web map uses to list aircraft in a
// bounding box.
//
// The feed is undocumented and unauthenticated; keep request rates low.
package flightradar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/flightportal/pkg/flight"
	"github.com/unklstewy/flightportal/pkg/geo"
	"github.com/unklstewy/flightportal/pkg/retry"
)

const (
	// DefaultBaseURL is the zone feed host
	DefaultBaseURL = "https://data-cloud.flightradar24.com"

	// DefaultTimeout for a single HTTP request
	DefaultTimeout = 10 * time.Second

	// DefaultLimit is the maximum number of aircraft requested per search
	DefaultLimit = 10

	// feedQuery selects airborne ADS-B/MLAT/FAA targets and drops ground vehicles
	feedQuery = "&faa=1&satellite=1&mlat=1&flarm=1&adsb=1&gnd=0&air=1&vehicles=0&estimated=0&maxage=14400&gliders=0&stats=0&ems=1"
)

// requestHeaders mimic a browser; the feed rejects obvious bots.
var requestHeaders = map[string]string{
	"User-Agent":    "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:106.0) Gecko/20100101 Firefox/106.0",
	"Cache-Control": "no-store, no-cache, must-revalidate, post-check=0, pre-check=0",
	"Accept":        "application/json",
}

// Config contains configuration for the FlightRadar24 client.
type Config struct {
	// BaseURL overrides DefaultBaseURL (tests point this at httptest)
	BaseURL string

	// Timeout bounds each HTTP request
	Timeout time.Duration

	// MinInterval is the minimum time between requests (0 = unlimited)
	MinInterval time.Duration

	// Limit caps the number of aircraft returned by the feed
	Limit int

	// Retry controls in-call retries; the caller's context deadline still wins
	Retry retry.Config
}

// Client implements flight.Source for the FlightRadar24 zone feed.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	limit       int
	retry       retry.Config
}

var _ flight.Source = (*Client)(nil)

// NewClient creates a new FlightRadar24 feed client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(limit, 1),
		limit:       cfg.Limit,
		retry:       cfg.Retry,
	}
}

// SearchFlights returns the aircraft inside bounds in feed order.
func (c *Client) SearchFlights(ctx context.Context, bounds geo.Bounds) ([]flight.Record, error) {
	return retry.Do(ctx, c.retry, func() ([]flight.Record, error) {
		return c.search(ctx, bounds)
	})
}

func (c *Client) search(ctx context.Context, bounds geo.Bounds) ([]flight.Record, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/zones/fcgi/feed.js?bounds=%s%s&limit=%d", c.baseURL, bounds, feedQuery, c.limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range requestHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flight feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, retry.NewRateLimitError(resp)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, string(body))
	}

	records, err := decodeFeed(resp.Body, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to parse flight feed: %w", err)
	}
	return records, nil
}

// Column positions in a feed row.
const (
	colHex = iota
	colLat
	colLng
	colTrack
	colAltitude
	colSpeed
	colSquawk
	colRadar
	colType
	colRegistration
	colTimestamp
	colOrigin
	colDest
	colFlight
	colOnGround
	colVerticalSpeed
	colCallsign
	colGlider
	colAirline
)

// minColumns is the shortest row that still carries origin and destination.
const minColumns = colDest + 1

// decodeFeed walks the feed object in document order. Members whose value
// is an array are flight rows keyed by flight id; everything else
// ("full_count", "version", "stats") is skipped. Short rows are dropped.
func decodeFeed(r io.Reader, now time.Time) ([]flight.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("feed is not a JSON object")
	}

	records := make([]flight.Record, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("member %q: %w", key, err)
		}
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}

		var row []any
		rowDec := json.NewDecoder(bytes.NewReader(raw))
		rowDec.UseNumber()
		if err := rowDec.Decode(&row); err != nil {
			continue
		}
		if len(row) < minColumns {
			continue
		}
		records = append(records, convertRow(key, row, now))
	}

	return records, nil
}

// convertRow converts one feed row into a flight.Record.
func convertRow(id string, row []any, now time.Time) flight.Record {
	rec := flight.Record{
		ID:           id,
		Hex:          stringAt(row, colHex),
		AircraftType: stringAt(row, colType),
		Registration: stringAt(row, colRegistration),
		OriginCode:   stringAt(row, colOrigin),
		DestCode:     stringAt(row, colDest),
		FlightNumber: stringAt(row, colFlight),
		Callsign:     stringAt(row, colCallsign),
		Airline:      stringAt(row, colAirline),
		ObservedAt:   now,
	}

	lat, latOK := numberAt(row, colLat)
	lng, lngOK := numberAt(row, colLng)
	if latOK && lngOK && !(lat == 0 && lng == 0) {
		rec.Lat, rec.Lng, rec.HasPosition = lat, lng, true
	}

	if alt, ok := numberAt(row, colAltitude); ok {
		rec.AltitudeFt, rec.HasAltitude = flight.ValidAltitude(alt)
	}
	if track, ok := numberAt(row, colTrack); ok {
		rec.Track = track
	}
	if speed, ok := numberAt(row, colSpeed); ok {
		rec.SpeedKt = int(speed)
	}
	if ts, ok := numberAt(row, colTimestamp); ok && ts > 0 {
		rec.ObservedAt = time.Unix(int64(ts), 0).UTC()
	}

	return rec
}

func stringAt(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	s, _ := row[i].(string)
	return s
}

// numberAt accepts JSON numbers and numeric strings.
func numberAt(row []any, i int) (float64, bool) {
	if i >= len(row) {
		return 0, false
	}
	switch v := row[i].(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		if v == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
