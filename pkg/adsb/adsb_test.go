package adsb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/unklstewy/flightportal/pkg/flight"
	"github.com/unklstewy/flightportal/pkg/geo"
	"github.com/unklstewy/flightportal/pkg/retry"
)

// box around 35N 80W, roughly 39 NM to each corner
var testBounds = geo.Bounds{North: 35.5, South: 34.5, West: -80.5, East: -79.5}

// TestNewAirplanesLiveClient tests client construction.
func TestNewAirplanesLiveClient(t *testing.T) {
	client := NewAirplanesLiveClient("https://api.test.com", time.Second, 3*time.Second, retry.Config{})

	if client == nil {
		t.Fatal("Expected client, got nil")
	}
	if client.baseURL != "https://api.test.com" {
		t.Errorf("Expected baseURL https://api.test.com, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.httpClient.Timeout != 3*time.Second {
		t.Errorf("Expected timeout 3s, got %v", client.httpClient.Timeout)
	}

	defaults := NewAirplanesLiveClient("", 0, 0, retry.Config{})
	if defaults.baseURL != DefaultBaseURL {
		t.Error("Expected default base URL when none given")
	}
	if defaults.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Expected default timeout %v, got %v", DefaultTimeout, defaults.httpClient.Timeout)
	}
}

// TestSearchFlights tests fetching aircraft within a bounding box.
func TestSearchFlights(t *testing.T) {
	t.Run("Successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Center of the box, radius to the farthest corner
			if r.URL.Path != "/point/35.0000/-80.0000/39" {
				t.Errorf("Unexpected path %s", r.URL.Path)
			}

			response := airplanesLiveResponse{
				Aircraft: []airplanesLiveAircraft{
					{
						Hex:          "a12345",
						Flight:       strPtr("UAL123  "),
						Registration: "N12345",
						Type:         "B738",
						Lat:          floatPtr(35.1),
						Lon:          floatPtr(-80.1),
						AltBaro:      3000.0,
						AltGeom:      3150.0,
						Gs:           floatPtr(180.0),
						Track:        floatPtr(90.0),
						Seen:         floatPtr(2.5),
					},
				},
				Total: 1,
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL, 0, 0, retry.Config{})
		records, err := client.SearchFlights(context.Background(), testBounds)

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}

		rec := records[0]
		if rec.ID != "a12345" || rec.Hex != "A12345" {
			t.Errorf("Unexpected identity %s/%s", rec.ID, rec.Hex)
		}
		if rec.Callsign != "UAL123" {
			t.Errorf("Expected trimmed callsign UAL123, got %q", rec.Callsign)
		}
		if rec.AltitudeFt != 3000 || !rec.HasAltitude {
			t.Errorf("Expected barometric altitude 3000, got %d", rec.AltitudeFt)
		}
		if rec.AircraftType != "B738" || rec.Registration != "N12345" {
			t.Errorf("Unexpected details %+v", rec)
		}
	})

	t.Run("Caps radius at 250 NM", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/point/35.0000/-80.0000/250" {
				t.Errorf("Expected radius capped at 250, got path %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(airplanesLiveResponse{Aircraft: []airplanesLiveAircraft{}})
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL, 0, 0, retry.Config{})
		huge := geo.Bounds{North: 45, South: 25, West: -90, East: -70}
		records, err := client.SearchFlights(context.Background(), huge)

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if records == nil {
			t.Error("Expected empty non-nil slice")
		}
	})

	t.Run("Handles rate limit error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.Header().Set("X-Rate-Limit-Limit", "100")
			w.Header().Set("X-Rate-Limit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Rate limit exceeded"))
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL, 0, 0, retry.Config{})
		_, err := client.SearchFlights(context.Background(), testBounds)

		if err == nil {
			t.Fatal("Expected rate limit error, got nil")
		}

		rle, ok := retry.IsRateLimitError(err)
		if !ok {
			t.Fatal("Expected RateLimitError type")
		}
		if rle.StatusCode != 429 {
			t.Errorf("Expected status 429, got %d", rle.StatusCode)
		}
		if rle.RetryAfter != 30*time.Second {
			t.Errorf("Expected retry after 30s, got %v", rle.RetryAfter)
		}
		if rle.Headers.Limit != 100 {
			t.Errorf("Expected limit 100, got %d", rle.Headers.Limit)
		}
	})

	t.Run("Handles HTTP error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal error"))
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL, 0, 0, retry.Config{})
		_, err := client.SearchFlights(context.Background(), testBounds)

		if err == nil {
			t.Fatal("Expected error, got nil")
		}
		if !strings.Contains(err.Error(), "500") {
			t.Errorf("Expected status in error, got %v", err)
		}
	})

	t.Run("Skips aircraft with missing position", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			response := airplanesLiveResponse{
				Aircraft: []airplanesLiveAircraft{
					{Hex: "a11111", Lat: floatPtr(35.0), Lon: floatPtr(-80.0)}, // Valid
					{Hex: "a22222", Lat: nil, Lon: floatPtr(-80.0)},            // Missing lat
					{Hex: "a33333", Lat: floatPtr(35.0), Lon: nil},             // Missing lon
					{Hex: "a44444", Lat: floatPtr(35.2), Lon: floatPtr(-80.2)}, // Valid
				},
				Total: 4,
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL, 0, 0, retry.Config{})
		records, err := client.SearchFlights(context.Background(), testBounds)

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 valid records, got %d", len(records))
		}
		if records[0].ID != "a11111" || records[1].ID != "a44444" {
			t.Errorf("Expected API order preserved, got %s, %s", records[0].ID, records[1].ID)
		}
	})
}

// TestParseAltitude tests altitude parsing from interface{}.
func TestParseAltitude(t *testing.T) {
	tests := []struct {
		name   string
		input  interface{}
		want   int
		wantOK bool
	}{
		{"nil input", nil, 0, false},
		{"float64 altitude", 3500.0, 3500, true},
		{"ground string", "ground", 0, false},
		{"invalid string", "invalid", 0, false},
		{"invalid type", 123, 0, false},
		{"out of range", 1e300, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseAltitude(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Expected %d, %v; got %d, %v", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

// TestConvertAirplanesLiveAircraft tests data conversion.
func TestConvertAirplanesLiveAircraft(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	t.Run("Falls back to geometric altitude", func(t *testing.T) {
		result := convertAirplanesLiveAircraft(airplanesLiveAircraft{
			Hex:     "abc123",
			Lat:     floatPtr(35.1234),
			Lon:     floatPtr(-80.5678),
			AltGeom: 2400.0,
			Seen:    floatPtr(3.0),
		}, now)

		if result.AltitudeFt != 2400 || !result.HasAltitude {
			t.Errorf("Expected altitude 2400, got %d", result.AltitudeFt)
		}
		if !result.ObservedAt.Equal(now.Add(-3 * time.Second)) {
			t.Errorf("Expected observation 3s before now, got %v", result.ObservedAt)
		}
	})

	t.Run("Ground traffic has no altitude", func(t *testing.T) {
		result := convertAirplanesLiveAircraft(airplanesLiveAircraft{
			Hex:     "abc125",
			Lat:     floatPtr(35.0),
			Lon:     floatPtr(-80.0),
			AltBaro: "ground",
			AltGeom: 25.0,
		}, now)

		if result.HasAltitude {
			t.Errorf("Expected taxiing aircraft to have no altitude, got %d", result.AltitudeFt)
		}
		if flight.Displayable(result, 5000, testBounds) {
			t.Error("Expected taxiing aircraft to be filtered out")
		}
	})

	t.Run("Out of range altitude falls back to geometric", func(t *testing.T) {
		result := convertAirplanesLiveAircraft(airplanesLiveAircraft{
			Hex:     "abc126",
			Lat:     floatPtr(35.0),
			Lon:     floatPtr(-80.0),
			AltBaro: 1e300,
			AltGeom: 1900.0,
		}, now)

		if !result.HasAltitude || result.AltitudeFt != 1900 {
			t.Errorf("Expected geometric altitude 1900, got %d (has=%v)", result.AltitudeFt, result.HasAltitude)
		}
	})

	t.Run("Missing altitude", func(t *testing.T) {
		result := convertAirplanesLiveAircraft(airplanesLiveAircraft{
			Hex: "abc124",
			Lat: floatPtr(35.0),
			Lon: floatPtr(-80.0),
		}, now)

		if result.HasAltitude {
			t.Error("Expected no altitude")
		}
		if !result.ObservedAt.Equal(now) {
			t.Errorf("Expected observation at now, got %v", result.ObservedAt)
		}
	})
}

// TestCeilRadius tests radius rounding.
func TestCeilRadius(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.2, 1},
		{38.1, 39},
		{40, 40},
		{249.5, 250},
	}
	for _, tt := range tests {
		if got := ceilRadius(tt.in); got != tt.want {
			t.Errorf("ceilRadius(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// Helper functions
func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}
