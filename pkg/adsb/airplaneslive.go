package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/flightportal/pkg/flight"
	"github.com/unklstewy/flightportal/pkg/geo"
	"github.com/unklstewy/flightportal/pkg/retry"
)

const (
	// DefaultBaseURL is the airplanes.live v2 API
	DefaultBaseURL = "https://api.airplanes.live/v2"

	// MaxRadiusNM is the largest radius the /point endpoint accepts
	MaxRadiusNM = 250.0

	// DefaultTimeout for API requests
	DefaultTimeout = 10 * time.Second
)

// AirplanesLiveClient implements flight.Source for the airplanes.live API.
// API Documentation: https://airplanes.live/api-guide/
// Rate Limit: 1 request per second
type AirplanesLiveClient struct {
	// baseURL is the API base URL (default: https://api.airplanes.live/v2)
	baseURL string

	// httpClient is the HTTP client used for API requests
	httpClient *http.Client

	// rateLimiter spaces requests at least one interval apart
	rateLimiter *rate.Limiter

	// retry controls in-call retries on transient failures
	retry retry.Config
}

var _ flight.Source = (*AirplanesLiveClient)(nil)

// NewAirplanesLiveClient creates a new airplanes.live API client.
// baseURL should be DefaultBaseURL (or custom for testing); minInterval
// of zero disables client-side rate limiting. A zero timeout means
// DefaultTimeout.
func NewAirplanesLiveClient(baseURL string, minInterval, timeout time.Duration, retryCfg retry.Config) *AirplanesLiveClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}

	return &AirplanesLiveClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimiter: rate.NewLimiter(limit, 1),
		retry:       retryCfg,
	}
}

// SearchFlights returns aircraft around the center of bounds, in API order.
// The radius reaches the farthest corner of the box and is capped at 250 NM.
func (c *AirplanesLiveClient) SearchFlights(ctx context.Context, bounds geo.Bounds) ([]flight.Record, error) {
	center := bounds.Center()
	radiusNM := min(bounds.RadiusNM(), MaxRadiusNM)

	return retry.Do(ctx, c.retry, func() ([]flight.Record, error) {
		return c.getAircraft(ctx, center, radiusNM)
	})
}

// getAircraft performs one /point/[lat]/[lon]/[radius] request.
func (c *AirplanesLiveClient) getAircraft(ctx context.Context, center geo.Point, radiusNM float64) ([]flight.Record, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	// Round the radius up so the farthest corner stays inside
	url := fmt.Sprintf("%s/point/%.4f/%.4f/%.0f", c.baseURL, center.Latitude, center.Longitude, ceilRadius(radiusNM))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aircraft data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, retry.NewRateLimitError(resp)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp airplanesLiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	now := time.Now().UTC()
	records := make([]flight.Record, 0, len(apiResp.Aircraft))
	for _, ac := range apiResp.Aircraft {
		// Skip aircraft with invalid data
		if ac.Lat == nil || ac.Lon == nil {
			continue
		}
		records = append(records, convertAirplanesLiveAircraft(ac, now))
	}

	return records, nil
}

func ceilRadius(nm float64) float64 {
	if nm < 1 {
		return 1
	}
	if r := float64(int(nm)); r < nm {
		return r + 1
	}
	return nm
}

// convertAirplanesLiveAircraft converts an airplanes.live aircraft to a flight.Record.
func convertAirplanesLiveAircraft(ac airplanesLiveAircraft, now time.Time) flight.Record {
	rec := flight.Record{
		ID:           ac.Hex,
		Hex:          strings.ToUpper(ac.Hex),
		Registration: ac.Registration,
		AircraftType: ac.Type,
		ObservedAt:   now,
	}

	if ac.Flight != nil {
		rec.Callsign = strings.TrimSpace(*ac.Flight)
	}

	if ac.Lat != nil && ac.Lon != nil {
		rec.Lat, rec.Lng, rec.HasPosition = *ac.Lat, *ac.Lon, true
	}

	// Barometric altitude matches what approach charts and other feeds use.
	// Aircraft on the ground are never on approach, so they get no altitude.
	if !onGround(ac.AltBaro) {
		alt, ok := parseAltitude(ac.AltBaro)
		if !ok {
			alt, ok = parseAltitude(ac.AltGeom)
		}
		rec.AltitudeFt, rec.HasAltitude = alt, ok
	}

	if ac.Gs != nil {
		rec.SpeedKt = int(*ac.Gs)
	}
	if ac.Track != nil {
		rec.Track = *ac.Track
	}

	if ac.Seen != nil {
		rec.ObservedAt = now.Add(-time.Duration(*ac.Seen * float64(time.Second)))
	}

	return rec
}

// parseAltitude extracts altitude from interface{} which can be float64 or
// the string "ground". Only plausible numeric altitudes are reported.
func parseAltitude(val interface{}) (int, bool) {
	v, ok := val.(float64)
	if !ok {
		return 0, false
	}
	return flight.ValidAltitude(v)
}

func onGround(val interface{}) bool {
	s, ok := val.(string)
	return ok && s == "ground"
}
