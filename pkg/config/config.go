package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/unklstewy/flightportal/pkg/geo"
	"github.com/unklstewy/flightportal/pkg/runway"
)

// Config represents the complete application configuration.
// Configuration is loaded from a JSON file, then overridden from the
// environment (including a .env file, see LoadEnvFile).
type Config struct {
	Airport      AirportConfig      `json:"airport"`
	Bounds       BoundsConfig       `json:"bounds"`
	BoundsBox    string             `json:"bounds_box,omitempty"`
	Polling      PollingConfig      `json:"polling"`
	Filter       FilterConfig       `json:"filter"`
	FlightSource FlightSourceConfig `json:"flight_source"`
	RouteLookup  RouteLookupConfig  `json:"route_lookup"`
	ATIS         ServiceConfig      `json:"atis"`
	METAR        ServiceConfig      `json:"metar"`
	Display      DisplayConfig      `json:"display"`
	Watchdog     WatchdogConfig     `json:"watchdog"`
	Server       ServerConfig       `json:"server"`
	Logging      LoggingConfig      `json:"logging"`
}

// AirportConfig identifies the airport and the runway whose approach is watched.
type AirportConfig struct {
	// ICAO is the airport identifier used for ATIS and METAR (e.g. "KLGA")
	ICAO string `json:"icao"`

	// TrackedRunway is the arrival runway that switches the display to
	// flight tracking (e.g. "04"). Without an L/C/R suffix, parallels match.
	TrackedRunway string `json:"tracked_runway"`
}

// BoundsConfig is the approach corridor box in decimal degrees.
type BoundsConfig struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// PollingConfig contains the scheduler intervals.
type PollingConfig struct {
	// ModeCheckIntervalSeconds is how often the ATIS is checked for runway changes
	ModeCheckIntervalSeconds int `json:"mode_check_interval_seconds"`

	// FlightPollIntervalSeconds is how often flights are fetched in flight tracking mode
	FlightPollIntervalSeconds int `json:"flight_poll_interval_seconds"`

	// WeatherPollIntervalSeconds is how often the METAR is fetched in weather mode
	WeatherPollIntervalSeconds int `json:"weather_poll_interval_seconds"`

	// FetchTimeoutSeconds bounds every call to an external source
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds"`

	// MinSleepSeconds is the shortest pause between ticks
	MinSleepSeconds int `json:"min_sleep_seconds"`

	// DefaultMode is the mode used before the first runway check succeeds
	// ("weather" or "flight_tracking")
	DefaultMode string `json:"default_mode"`
}

// FilterConfig contains flight filtering settings.
type FilterConfig struct {
	// MaxApproachAltitudeFt drops aircraft above this altitude (inclusive limit)
	MaxApproachAltitudeFt int `json:"max_approach_altitude_ft"`
}

// FlightSourceConfig selects and tunes the flight search backend.
type FlightSourceConfig struct {
	// Type is "flightradar24" or "airplanes.live"
	Type string `json:"type"`

	// BaseURL overrides the backend default
	BaseURL string `json:"base_url,omitempty"`

	// RateLimitSeconds is the minimum time between API calls in seconds
	// 0 = no rate limit; airplanes.live: recommend 1 second or more
	RateLimitSeconds float64 `json:"rate_limit_seconds"`

	// MaxRetries is the number of in-call retries within the fetch timeout
	MaxRetries int `json:"max_retries"`

	// Limit caps the number of aircraft requested (flightradar24 only)
	Limit int `json:"limit"`
}

// RouteLookupConfig fills in missing origin/destination codes from the
// FlightAware AeroAPI.
type RouteLookupConfig struct {
	// Enabled turns lookups on; requires an API key
	Enabled bool `json:"enabled"`

	// APIKey is read from FLIGHTAWARE_API_KEY only, never from the file
	APIKey string `json:"-"`

	// BaseURL overrides the AeroAPI default
	BaseURL string `json:"base_url,omitempty"`

	// RequestsPerHour paces lookups to stay within the account quota
	RequestsPerHour int `json:"requests_per_hour"`

	// CacheTTLMinutes is how long a callsign's route is reused
	CacheTTLMinutes int `json:"cache_ttl_minutes"`

	// MaxLookups is how many leading flights are enriched per poll
	MaxLookups int `json:"max_lookups"`
}

// CacheTTL returns how long a looked-up route is reused.
func (r RouteLookupConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLMinutes) * time.Minute
}

// ServiceConfig points a status client at its service.
type ServiceConfig struct {
	// BaseURL overrides the service default
	BaseURL string `json:"base_url,omitempty"`
}

// DisplayConfig selects the renderer.
type DisplayConfig struct {
	// Renderer is "console", "terminal", "pipe" or "none"
	Renderer string `json:"renderer"`

	// DevicePath is the matrix driver feed for the pipe renderer
	// (a FIFO or character device; "-" writes to stdout)
	DevicePath string `json:"device_path,omitempty"`

	// Width and Height of the LED matrix in pixels
	Width  int `json:"width"`
	Height int `json:"height"`

	// RowColors are the text colors of the three rows, as "#RRGGBB"
	RowColors []string `json:"row_colors"`
}

// WatchdogConfig configures the hardware watchdog.
type WatchdogConfig struct {
	// Enabled turns on /dev/watchdog feeding
	Enabled bool `json:"enabled"`

	// DevicePath is the watchdog character device
	DevicePath string `json:"device_path"`

	// TimeoutSeconds is the hardware reset timeout
	TimeoutSeconds int `json:"timeout_seconds"`

	// FeedIntervalSeconds caps the scheduler sleep so the watchdog is fed
	// well inside TimeoutSeconds
	FeedIntervalSeconds int `json:"feed_interval_seconds"`
}

// ServerConfig contains HTTP status server configuration.
type ServerConfig struct {
	// Enabled starts the status API
	Enabled bool `json:"enabled"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`

	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error"
	Level string `json:"level"`

	// Format is "text" or "json"
	Format string `json:"format"`

	// Debug forces debug level (DEBUG_MODE)
	Debug bool `json:"debug"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration. Fields the
// file omits keep their defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment. Variables already set are not overridden. The file is also
// looked up in the parent directory; a missing file is not an error.
func LoadEnvFile(path string) error {
	for _, candidate := range []string{path, filepath.Join("..", path)} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("failed to load %s: %w", candidate, err)
		}
		return nil
	}
	return nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns the LaGuardia runway 04 setup.
func DefaultConfig() *Config {
	return &Config{
		Airport: AirportConfig{
			ICAO:          "KLGA",
			TrackedRunway: "04",
		},
		// 1 mile buffer around the final approach course
		Bounds: BoundsConfig{
			North: 40.756132,
			South: 40.686813,
			West:  -73.961956,
			East:  -73.887739,
		},
		Polling: PollingConfig{
			ModeCheckIntervalSeconds:   900,
			FlightPollIntervalSeconds:  30,
			WeatherPollIntervalSeconds: 300,
			FetchTimeoutSeconds:        10,
			MinSleepSeconds:            1,
			DefaultMode:                "weather",
		},
		Filter: FilterConfig{
			MaxApproachAltitudeFt: 5000,
		},
		FlightSource: FlightSourceConfig{
			Type:             "flightradar24",
			RateLimitSeconds: 1.0,
			MaxRetries:       2,
			Limit:            10,
		},
		RouteLookup: RouteLookupConfig{
			Enabled:         false,
			RequestsPerHour: 1,
			CacheTTLMinutes: 360,
			MaxLookups:      1,
		},
		Display: DisplayConfig{
			Renderer:  "console",
			Width:     64,
			Height:    32,
			RowColors: []string{"#EE82EE", "#4B0082", "#FFA500"}, // violet, indigo, orange
		},
		Watchdog: WatchdogConfig{
			Enabled:             false,
			DevicePath:          "/dev/watchdog",
			TimeoutSeconds:      16,
			FeedIntervalSeconds: 5,
		},
		Server: ServerConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    "8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// GetBounds returns the approach corridor. BoundsBox ("N,S,W,E") takes
// precedence over the bounds section when set.
func (c *Config) GetBounds() (geo.Bounds, error) {
	if c.BoundsBox != "" {
		return geo.ParseBoundsBox(c.BoundsBox)
	}
	b := geo.Bounds{
		North: c.Bounds.North,
		South: c.Bounds.South,
		West:  c.Bounds.West,
		East:  c.Bounds.East,
	}
	if err := b.Validate(); err != nil {
		return geo.Bounds{}, err
	}
	return b, nil
}

// GetDefaultMode returns the parsed cold-start mode.
func (p PollingConfig) GetDefaultMode() runway.Mode {
	mode, _ := runway.ParseMode(p.DefaultMode)
	return mode
}

// ModeCheckInterval returns the runway check interval.
func (p PollingConfig) ModeCheckInterval() time.Duration {
	return seconds(p.ModeCheckIntervalSeconds)
}

// FlightPollInterval returns the flight poll interval.
func (p PollingConfig) FlightPollInterval() time.Duration {
	return seconds(p.FlightPollIntervalSeconds)
}

// WeatherPollInterval returns the weather poll interval.
func (p PollingConfig) WeatherPollInterval() time.Duration {
	return seconds(p.WeatherPollIntervalSeconds)
}

// FetchTimeout returns the per-call timeout.
func (p PollingConfig) FetchTimeout() time.Duration {
	return seconds(p.FetchTimeoutSeconds)
}

// MinSleep returns the shortest pause between ticks.
func (p PollingConfig) MinSleep() time.Duration {
	return seconds(p.MinSleepSeconds)
}

// RateLimit returns the minimum time between flight source requests.
func (f FlightSourceConfig) RateLimit() time.Duration {
	return time.Duration(f.RateLimitSeconds * float64(time.Second))
}

// FeedInterval returns the longest the scheduler may sleep between feeds.
func (w WatchdogConfig) FeedInterval() time.Duration {
	return seconds(w.FeedIntervalSeconds)
}

// Addr returns the listen address for the status server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// EffectiveLevel returns the log level after applying Debug.
func (l LoggingConfig) EffectiveLevel() string {
	if l.Debug {
		return "debug"
	}
	if l.Level == "" {
		return "info"
	}
	return l.Level
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Airport.ICAO == "" {
		errs = append(errs, errors.New("airport.icao is required"))
	}
	if runway.Normalize(c.Airport.TrackedRunway) == "" {
		errs = append(errs, fmt.Errorf("airport.tracked_runway %q is not a runway designator", c.Airport.TrackedRunway))
	}
	if _, err := c.GetBounds(); err != nil {
		errs = append(errs, fmt.Errorf("bounds: %w", err))
	}

	p := c.Polling
	for name, v := range map[string]int{
		"polling.mode_check_interval_seconds":   p.ModeCheckIntervalSeconds,
		"polling.flight_poll_interval_seconds":  p.FlightPollIntervalSeconds,
		"polling.weather_poll_interval_seconds": p.WeatherPollIntervalSeconds,
		"polling.fetch_timeout_seconds":         p.FetchTimeoutSeconds,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if p.MinSleepSeconds < 0 {
		errs = append(errs, fmt.Errorf("polling.min_sleep_seconds must not be negative, got %d", p.MinSleepSeconds))
	}
	if _, ok := runway.ParseMode(p.DefaultMode); !ok {
		errs = append(errs, fmt.Errorf("polling.default_mode %q is not a mode", p.DefaultMode))
	}

	if c.Filter.MaxApproachAltitudeFt <= 0 {
		errs = append(errs, fmt.Errorf("filter.max_approach_altitude_ft must be positive, got %d", c.Filter.MaxApproachAltitudeFt))
	}

	switch c.FlightSource.Type {
	case "flightradar24", "airplanes.live":
	default:
		errs = append(errs, fmt.Errorf("flight_source.type %q is not supported", c.FlightSource.Type))
	}
	if c.FlightSource.MaxRetries < 0 {
		errs = append(errs, errors.New("flight_source.max_retries must not be negative"))
	}

	if r := c.RouteLookup; r.Enabled {
		if r.APIKey == "" {
			errs = append(errs, errors.New("route_lookup requires FLIGHTAWARE_API_KEY"))
		}
		if r.RequestsPerHour <= 0 || r.CacheTTLMinutes <= 0 || r.MaxLookups <= 0 {
			errs = append(errs, errors.New("route_lookup.requests_per_hour, cache_ttl_minutes and max_lookups must be positive"))
		}
	}

	switch c.Display.Renderer {
	case "console", "terminal", "none":
	case "pipe":
		if c.Display.DevicePath == "" {
			errs = append(errs, errors.New("display.device_path is required for the pipe renderer"))
		}
	default:
		errs = append(errs, fmt.Errorf("display.renderer %q is not supported", c.Display.Renderer))
	}

	if c.Watchdog.Enabled {
		if c.Watchdog.DevicePath == "" {
			errs = append(errs, errors.New("watchdog.device_path is required when the watchdog is enabled"))
		}
		if c.Watchdog.FeedIntervalSeconds <= 0 || c.Watchdog.FeedIntervalSeconds >= c.Watchdog.TimeoutSeconds {
			errs = append(errs, fmt.Errorf("watchdog.feed_interval_seconds must be between 1 and %d", c.Watchdog.TimeoutSeconds-1))
		}
	}

	return errors.Join(errs...)
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This keeps site-specific values out of the checked-in config file.
func (c *Config) applyEnvironmentOverrides() error {
	if icao := os.Getenv("FLIGHTPORTAL_AIRPORT"); icao != "" {
		c.Airport.ICAO = strings.ToUpper(icao)
	}
	if rwy := os.Getenv("FLIGHTPORTAL_TRACKED_RUNWAY"); rwy != "" {
		c.Airport.TrackedRunway = rwy
	}
	if box := os.Getenv("FLIGHTPORTAL_BOUNDS_BOX"); box != "" {
		c.BoundsBox = box
	}
	if key := os.Getenv("FLIGHTAWARE_API_KEY"); key != "" {
		c.RouteLookup.APIKey = key
	}
	if renderer := os.Getenv("FLIGHTPORTAL_RENDERER"); renderer != "" {
		c.Display.Renderer = renderer
	}
	if port := os.Getenv("FLIGHTPORTAL_PORT"); port != "" {
		c.Server.Port = port
	}
	if level := os.Getenv("FLIGHTPORTAL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if debug := os.Getenv("DEBUG_MODE"); debug != "" {
		v, err := parseBool(debug)
		if err != nil {
			return fmt.Errorf("DEBUG_MODE: %w", err)
		}
		c.Logging.Debug = v
	}
	return nil
}

// parseBool accepts the usual strconv forms plus yes/no and on/off.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}
