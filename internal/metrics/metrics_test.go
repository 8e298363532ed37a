package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecordsFetches(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.ObserveFetch("flights", 120*time.Millisecond, nil)
	c.ObserveFetch("flights", 3*time.Second, errors.New("timeout"))
	c.ObserveFetch("flights", 80*time.Millisecond, nil)

	if got := testutil.ToFloat64(c.FetchTotal.WithLabelValues("flights", ResultSuccess)); got != 2 {
		t.Fatalf("flightportal_fetch_total{success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.FetchTotal.WithLabelValues("flights", ResultError)); got != 1 {
		t.Fatalf("flightportal_fetch_total{error} = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.FetchDuration, "flightportal_fetch_duration_seconds"); n != 1 {
		t.Fatalf("expected one duration series, got %d", n)
	}
}

func TestCollectorModeTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.SetMode(0, false)
	c.SetMode(1, true)
	c.SetMode(1, false)

	if got := testutil.ToFloat64(c.Mode); got != 1 {
		t.Fatalf("flightportal_mode = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ModeTransitionsTotal); got != 1 {
		t.Fatalf("flightportal_mode_transitions_total = %v, want 1", got)
	}
}

func TestCollectorGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.IncTicks()
	c.IncTicks()
	c.IncWatchdogFeeds()
	c.SetDisplayedFlights(3)
	c.SetDataAge("weather", 90*time.Second)
	c.SetDataAge("runway", -time.Second)

	if got := testutil.ToFloat64(c.TicksTotal); got != 2 {
		t.Fatalf("flightportal_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.WatchdogFeedsTotal); got != 1 {
		t.Fatalf("flightportal_watchdog_feeds_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.DisplayedFlights); got != 3 {
		t.Fatalf("flightportal_displayed_flights = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.DataAge.WithLabelValues("weather")); got != 90 {
		t.Fatalf("flightportal_data_age_seconds{weather} = %v, want 90", got)
	}
	if got := testutil.ToFloat64(c.DataAge.WithLabelValues("runway")); got != 0 {
		t.Fatalf("negative age should clamp to 0, got %v", got)
	}
}

func TestNewCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}

	first.IncTicks()
	if got := testutil.ToFloat64(second.TicksTotal); got != 1 {
		t.Fatalf("expected shared counter, got %v", got)
	}
	if second.Gatherer() != reg {
		t.Fatal("expected registry to double as gatherer")
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.IncTicks()
	c.ObserveFetch("runway", time.Second, nil)
	c.SetMode(1, true)
	c.SetDisplayedFlights(1)
	c.IncWatchdogFeeds()
	c.SetDataAge("flights", time.Second)
	if c.Gatherer() != nil {
		t.Fatal("nil collector should have no gatherer")
	}
}
