// Package flightaware looks up flight routes with the FlightAware AeroAPI v4.
//
// ADS-B feeds carry a callsign but no origin or destination. The Enricher
// in this package fills those in for the flights that are about to be shown,
// within the small monthly quota of the free AeroAPI tier.
//
// API Documentation: https://www.flightaware.com/aeroapi/portal/documentation
package flightaware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/flightportal/pkg/retry"
)

const (
	// DefaultBaseURL is the FlightAware AeroAPI v4 base URL
	DefaultBaseURL = "https://aeroapi.flightaware.com/aeroapi"

	// DefaultTimeout for API requests
	DefaultTimeout = 10 * time.Second

	// DefaultRequestsPerHour keeps a free-tier key (500 requests/month)
	// inside its quota when the display runs all day.
	DefaultRequestsPerHour = 1
)

// Client is a FlightAware AeroAPI client.
type Client struct {
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
}

// Config contains configuration for the FlightAware client.
type Config struct {
	APIKey          string
	BaseURL         string
	RequestsPerHour int
	Timeout         time.Duration
}

// NewClient creates a new FlightAware AeroAPI client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerHour <= 0 {
		cfg.RequestsPerHour = DefaultRequestsPerHour
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	// Convert requests per hour to rate limiter (allows burst of 1)
	requestsPerSecond := float64(cfg.RequestsPerHour) / 3600.0

	return &Client{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Route is where a flight is coming from and going to.
type Route struct {
	Ident       string
	Origin      string
	Destination string
	Status      string
}

type airportRef struct {
	CodeIATA string `json:"code_iata"`
	CodeICAO string `json:"code_icao"`
}

// code prefers the three-letter IATA code, which fits the display row.
func (a *airportRef) code() string {
	if a == nil {
		return ""
	}
	if a.CodeIATA != "" {
		return a.CodeIATA
	}
	return a.CodeICAO
}

type flightsResponse struct {
	Flights []struct {
		Ident       string      `json:"ident"`
		FAFlightID  string      `json:"fa_flight_id"`
		Origin      *airportRef `json:"origin"`
		Destination *airportRef `json:"destination"`
		Status      string      `json:"status"`
		ActualOn    *time.Time  `json:"actual_on"`
		Cancelled   bool        `json:"cancelled"`
	} `json:"flights"`
}

// GetRoute returns the route of the current flight for callsign
// (e.g. "AAL328").
//
// AeroAPI lists recent and scheduled flights for an ident, newest first; the
// first one that has not landed or been cancelled is the airborne leg.
// Returns nil, nil when no flight is found.
func (c *Client) GetRoute(ctx context.Context, callsign string) (*Route, error) {
	callsign = strings.ToUpper(strings.TrimSpace(callsign))
	if callsign == "" {
		return nil, nil
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/flights/%s", c.baseURL, url.PathEscape(callsign))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	case http.StatusTooManyRequests:
		return nil, retry.NewRateLimitError(resp)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response flightsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	for _, f := range response.Flights {
		if f.Cancelled || f.ActualOn != nil {
			continue
		}
		ident := f.Ident
		if ident == "" {
			ident = callsign
		}
		return &Route{
			Ident:       ident,
			Origin:      f.Origin.code(),
			Destination: f.Destination.code(),
			Status:      f.Status,
		}, nil
	}
	return nil, nil
}
