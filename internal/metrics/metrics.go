// Package metrics exposes the polling loop's Prometheus metrics.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Collector exposes polling-specific Prometheus metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	TicksTotal           prometheus.Counter
	FetchTotal           *prometheus.CounterVec
	FetchDuration        *prometheus.HistogramVec
	Mode                 prometheus.Gauge
	ModeTransitionsTotal prometheus.Counter
	DisplayedFlights     prometheus.Gauge
	WatchdogFeedsTotal   prometheus.Counter
	DataAge              *prometheus.GaugeVec
}

// NewCollector registers polling metrics against the provided registerer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flightportal_ticks_total",
		Help: "Number of scheduler ticks executed.",
	}), "flightportal_ticks_total")
	if err != nil {
		return nil, err
	}

	fetches, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightportal_fetch_total",
		Help: "External source calls by source and result.",
	}, []string{"source", "result"}), "flightportal_fetch_total")
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flightportal_fetch_duration_seconds",
		Help:    "Latency of external source calls.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"source"}), "flightportal_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	mode, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flightportal_mode",
		Help: "Current display mode (0 = weather, 1 = flight tracking).",
	}), "flightportal_mode")
	if err != nil {
		return nil, err
	}

	transitions, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flightportal_mode_transitions_total",
		Help: "Number of display mode changes.",
	}), "flightportal_mode_transitions_total")
	if err != nil {
		return nil, err
	}

	displayed, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flightportal_displayed_flights",
		Help: "Flights in the most recent flight tracking update.",
	}), "flightportal_displayed_flights")
	if err != nil {
		return nil, err
	}

	feeds, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flightportal_watchdog_feeds_total",
		Help: "Number of watchdog feeds.",
	}), "flightportal_watchdog_feeds_total")
	if err != nil {
		return nil, err
	}

	age, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flightportal_data_age_seconds",
		Help: "Age of the cached data behind the last update, by source.",
	}, []string{"source"}), "flightportal_data_age_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:             gatherer,
		TicksTotal:           ticks,
		FetchTotal:           fetches,
		FetchDuration:        durations,
		Mode:                 mode,
		ModeTransitionsTotal: transitions,
		DisplayedFlights:     displayed,
		WatchdogFeedsTotal:   feeds,
		DataAge:              age,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// IncTicks counts one scheduler tick.
func (c *Collector) IncTicks() {
	if c == nil {
		return
	}
	c.TicksTotal.Inc()
}

// ObserveFetch records one external call.
func (c *Collector) ObserveFetch(source string, d time.Duration, err error) {
	if c == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	c.FetchTotal.WithLabelValues(source, result).Inc()
	c.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// SetMode sets the mode gauge and counts a transition when changed is true.
func (c *Collector) SetMode(mode int, changed bool) {
	if c == nil {
		return
	}
	c.Mode.Set(float64(mode))
	if changed {
		c.ModeTransitionsTotal.Inc()
	}
}

// SetDisplayedFlights updates the displayed flights gauge.
func (c *Collector) SetDisplayedFlights(n int) {
	if c == nil {
		return
	}
	c.DisplayedFlights.Set(float64(n))
}

// IncWatchdogFeeds counts one watchdog feed.
func (c *Collector) IncWatchdogFeeds() {
	if c == nil {
		return
	}
	c.WatchdogFeedsTotal.Inc()
}

// SetDataAge records how old a source's cached data is.
func (c *Collector) SetDataAge(source string, age time.Duration) {
	if c == nil {
		return
	}
	if age < 0 {
		age = 0
	}
	c.DataAge.WithLabelValues(source).Set(age.Seconds())
}

// register registers col, reusing an identical collector that is already
// registered under the same name.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
