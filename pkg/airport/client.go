// Package airport fetches airport status: the active runways from the
// digital ATIS and the current surface observation (METAR).
package airport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/flightportal/pkg/retry"
	"github.com/unklstewy/flightportal/pkg/runway"
)

const (
	// DefaultATISBaseURL serves D-ATIS as JSON at /api/<ICAO>
	DefaultATISBaseURL = "https://datis.clowd.io"

	// DefaultMETARBaseURL is the aviationweather.gov data API
	DefaultMETARBaseURL = "https://aviationweather.gov"

	// DefaultTimeout for a single HTTP request
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrEmptyResponse is returned when the service answered but carried no data.
	ErrEmptyResponse = errors.New("empty response")

	// ErrNoRunway is returned when the ATIS text names neither an arrival
	// nor a departure runway.
	ErrNoRunway = errors.New("no runway found in ATIS")
)

// Config contains configuration shared by the airport clients.
type Config struct {
	// BaseURL overrides the service host
	BaseURL string

	// ICAO is the airport identifier (e.g. "KLGA")
	ICAO string

	// Timeout bounds each HTTP request
	Timeout time.Duration

	// MinInterval is the minimum time between requests (0 = unlimited)
	MinInterval time.Duration
}

// httpGetter is the transport shared by the ATIS and METAR clients.
type httpGetter struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func newHTTPGetter(cfg Config) httpGetter {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return httpGetter{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(limit, 1),
	}
}

// getJSON fetches url and decodes the JSON body into out.
func (g httpGetter) getJSON(ctx context.Context, url string, out any) error {
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return retry.NewRateLimitError(resp)
	}
	if resp.StatusCode == http.StatusNoContent {
		return ErrEmptyResponse
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyResponse
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// ATISClient reads active runways from the digital ATIS.
type ATISClient struct {
	baseURL string
	icao    string
	http    httpGetter
	now     func() time.Time
}

// NewATISClient creates a D-ATIS client for one airport.
func NewATISClient(cfg Config) *ATISClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultATISBaseURL
	}
	return &ATISClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		icao:    strings.ToUpper(cfg.ICAO),
		http:    newHTTPGetter(cfg),
		now:     time.Now,
	}
}

// atisEntry is one broadcast; busy airports publish separate arrival and
// departure broadcasts.
type atisEntry struct {
	Airport string `json:"airport"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	DATIS   string `json:"datis"`
}

// FetchRunwayStatus fetches the current ATIS and extracts the active runways.
// A status with only a departure runway is valid and has an empty arrival
// runway; text that names no runway at all yields ErrNoRunway.
func (c *ATISClient) FetchRunwayStatus(ctx context.Context) (runway.Status, error) {
	// The service answers errors as a JSON object; decode loosely first
	var raw json.RawMessage
	if err := c.http.getJSON(ctx, fmt.Sprintf("%s/api/%s", c.baseURL, url.PathEscape(c.icao)), &raw); err != nil {
		return runway.Status{}, fmt.Errorf("fetch ATIS %s: %w", c.icao, err)
	}

	var entries []atisEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return runway.Status{}, fmt.Errorf("fetch ATIS %s: %s: %w", c.icao, apiErr.Error, ErrEmptyResponse)
		}
		return runway.Status{}, fmt.Errorf("fetch ATIS %s: failed to parse response: %w", c.icao, err)
	}

	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if t := strings.TrimSpace(e.DATIS); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return runway.Status{}, fmt.Errorf("fetch ATIS %s: %w", c.icao, ErrEmptyResponse)
	}

	text := strings.ToUpper(strings.Join(texts, " "))
	status := runway.Status{
		ArrivalRunway:   ParseArrivalRunway(text),
		DepartureRunway: ParseDepartureRunway(text),
		ObservedAt:      c.now().UTC(),
		RawText:         text,
	}
	if status.ArrivalRunway == "" && status.DepartureRunway == "" {
		return runway.Status{}, fmt.Errorf("ATIS %s: %w", c.icao, ErrNoRunway)
	}
	return status, nil
}

// METARClient reads the latest raw METAR for one airport.
type METARClient struct {
	baseURL string
	icao    string
	http    httpGetter
}

// NewMETARClient creates an aviationweather.gov METAR client.
func NewMETARClient(cfg Config) *METARClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMETARBaseURL
	}
	return &METARClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		icao:    strings.ToUpper(cfg.ICAO),
		http:    newHTTPGetter(cfg),
	}
}

type metarEntry struct {
	ICAOID string `json:"icaoId"`
	RawOb  string `json:"rawOb"`
}

// FetchWeatherText returns the most recent raw observation, e.g.
// "KLGA 160151Z 18006KT 10SM FEW050 SCT250 27/22 A3004".
func (c *METARClient) FetchWeatherText(ctx context.Context) (string, error) {
	u := fmt.Sprintf("%s/api/data/metar?ids=%s&format=json", c.baseURL, url.QueryEscape(c.icao))

	var entries []metarEntry
	if err := c.http.getJSON(ctx, u, &entries); err != nil {
		return "", fmt.Errorf("fetch METAR %s: %w", c.icao, err)
	}
	if len(entries) == 0 || strings.TrimSpace(entries[0].RawOb) == "" {
		return "", fmt.Errorf("fetch METAR %s: %w", c.icao, ErrEmptyResponse)
	}
	return strings.TrimSpace(entries[0].RawOb), nil
}
