// Package poller is the polling orchestrator. A Scheduler decides on each
// tick whether to re-check the runway configuration and whether to refresh
// the active mode's data, caches every successful result, and hands the
// freshest data it has to the display.
//
// Failures of the external sources never stop the loop: they only make the
// displayed data older.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/unklstewy/flightportal/internal/display"
	"github.com/unklstewy/flightportal/internal/metrics"
	"github.com/unklstewy/flightportal/internal/watchdog"
	"github.com/unklstewy/flightportal/pkg/cache"
	"github.com/unklstewy/flightportal/pkg/flight"
	"github.com/unklstewy/flightportal/pkg/geo"
	"github.com/unklstewy/flightportal/pkg/runway"
)

// Source names used for cache keys, metrics and logs.
const (
	SourceRunway  = "runway"
	SourceFlights = "flights"
	SourceWeather = "weather"
)

// StatusSource reports the airport's active runways.
type StatusSource interface {
	FetchRunwayStatus(ctx context.Context) (runway.Status, error)
}

// WeatherSource reports the current weather as text (a raw METAR).
type WeatherSource interface {
	FetchWeatherText(ctx context.Context) (string, error)
}

// State is the scheduler's logical state.
type State int

const (
	// StateDeterminingMode holds until the first runway check succeeds.
	StateDeterminingMode State = iota
	StateRunningFlightTracking
	StateRunningWeather
)

func (s State) String() string {
	switch s {
	case StateDeterminingMode:
		return "determining_mode"
	case StateRunningFlightTracking:
		return "running_flight_tracking"
	case StateRunningWeather:
		return "running_weather"
	default:
		return "unknown"
	}
}

// Intervals are the refresh periods of the three schedules.
type Intervals struct {
	ModeCheck   time.Duration `json:"mode_check"`
	FlightPoll  time.Duration `json:"flight_poll"`
	WeatherPoll time.Duration `json:"weather_poll"`
}

// Schedule is the timing state. Last* are the times of the last successful
// call; a failed call leaves them unchanged.
type Schedule struct {
	LastModeCheck   time.Time `json:"last_mode_check"`
	LastFlightPoll  time.Time `json:"last_flight_poll"`
	LastWeatherPoll time.Time `json:"last_weather_poll"`
	Intervals       Intervals `json:"intervals"`
}

// Config is the scheduler's configuration, built once at startup.
type Config struct {
	// TrackedRunway switches the display to flight tracking when it is the arrival runway
	TrackedRunway string

	// Bounds is the approach corridor searched for flights
	Bounds geo.Bounds

	// MaxAltitudeFt drops flights above this altitude
	MaxAltitudeFt int

	Intervals Intervals

	// FetchTimeout bounds each external call (default 10s)
	FetchTimeout time.Duration

	// MinSleep is the shortest pause between ticks in Run (default 1s)
	MinSleep time.Duration

	// MaxSleep is the longest pause between ticks in Run; set it below the
	// watchdog timeout. Zero means no limit.
	MaxSleep time.Duration

	// DefaultMode is the mode before any runway status is known
	DefaultMode runway.Mode
}

// Deps are the scheduler's collaborators. Status, Flights and Weather are
// required; the rest default to no-ops.
type Deps struct {
	Status   StatusSource
	Flights  flight.Source
	Weather  WeatherSource
	Renderer display.Renderer
	Watchdog watchdog.Watchdog
	Metrics  *metrics.Collector
	Logger   *log.Logger

	// Clock drives Run and cache freshness (default time.Now)
	Clock func() time.Time
}

// Scheduler is the polling orchestrator. Tick is not reentrant; Snapshot
// may be called from any goroutine.
type Scheduler struct {
	cfg      Config
	status   StatusSource
	flights  flight.Source
	weather  WeatherSource
	renderer display.Renderer
	watchdog watchdog.Watchdog
	metrics  *metrics.Collector
	logger   *log.Logger
	clock    func() time.Time

	runwayCache  *cache.Cache[string, runway.Status]
	flightCache  *cache.Cache[string, []flight.Record]
	weatherCache *cache.Cache[string, string]

	tickMu sync.Mutex

	mu                 sync.Mutex
	schedule           Schedule
	nextFlightAttempt  time.Time
	nextWeatherAttempt time.Time
	mode               runway.Mode
	state              State
	lastUpdate         *display.Update
	lastRenderedKey    string
	lastErrors         map[string]string
	ticks              uint64
	lastTick           time.Time
}

// New creates a scheduler.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Status == nil || deps.Flights == nil || deps.Weather == nil {
		return nil, errors.New("poller: status, flight and weather sources are required")
	}
	if cfg.Intervals.ModeCheck <= 0 || cfg.Intervals.FlightPoll <= 0 || cfg.Intervals.WeatherPoll <= 0 {
		return nil, errors.New("poller: intervals must be positive")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MinSleep <= 0 {
		cfg.MinSleep = time.Second
	}
	if cfg.MaxSleep > 0 && cfg.MaxSleep < cfg.MinSleep {
		cfg.MinSleep = cfg.MaxSleep
	}

	if deps.Renderer == nil {
		deps.Renderer = &display.Noop{}
	}
	if deps.Watchdog == nil {
		deps.Watchdog = &watchdog.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	s := &Scheduler{
		cfg:          cfg,
		status:       deps.Status,
		flights:      deps.Flights,
		weather:      deps.Weather,
		renderer:     deps.Renderer,
		watchdog:     deps.Watchdog,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		clock:        deps.Clock,
		runwayCache:  cache.New[string, runway.Status](cache.WithClock(deps.Clock)),
		flightCache:  cache.New[string, []flight.Record](cache.WithClock(deps.Clock)),
		weatherCache: cache.New[string, string](cache.WithClock(deps.Clock)),
		schedule:     Schedule{Intervals: cfg.Intervals},
		mode:         cfg.DefaultMode,
		state:        StateDeterminingMode,
		lastErrors:   make(map[string]string),
	}
	s.metrics.SetMode(int(s.mode), false)
	return s, nil
}

// Tick runs one iteration: re-check the runway if due, resolve the mode,
// refresh the active mode's data if due, and render. It returns the update
// describing the freshest data available, or nil when the active mode has
// never had a successful fetch. The watchdog is fed on every call.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) *display.Update {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	defer s.feedWatchdog()

	s.metrics.IncTicks()
	s.mu.Lock()
	s.ticks++
	s.lastTick = now
	s.mu.Unlock()

	s.checkMode(ctx, now)

	status, _, present := s.runwayCache.Get(SourceRunway)
	mode := s.resolveMode(status, present, now)

	switch mode {
	case runway.ModeFlightTracking:
		s.pollFlights(ctx, now)
	default:
		s.pollWeather(ctx, now)
	}

	u := s.buildUpdate(mode, now)
	if u == nil {
		return nil
	}

	s.mu.Lock()
	s.lastUpdate = u
	key := u.Key()
	changed := key != s.lastRenderedKey
	s.lastRenderedKey = key
	s.mu.Unlock()

	if changed && ctx.Err() == nil {
		s.renderer.Render(*u)
	}
	return u
}

func (s *Scheduler) feedWatchdog() {
	s.watchdog.Feed()
	s.metrics.IncWatchdogFeeds()
}

// checkMode fetches the runway status when the mode check is due. On failure
// LastModeCheck is not advanced, so the check runs again on the next tick.
func (s *Scheduler) checkMode(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := isDue(now, s.schedule.LastModeCheck, s.cfg.Intervals.ModeCheck)
	s.mu.Unlock()
	if !due {
		return
	}

	status, err := fetch(ctx, s, SourceRunway, s.status.FetchRunwayStatus)
	if err != nil {
		return
	}
	if status.ObservedAt.IsZero() {
		status.ObservedAt = now
	}

	s.runwayCache.PutAt(SourceRunway, status, s.cfg.Intervals.ModeCheck, now)
	s.mu.Lock()
	s.schedule.LastModeCheck = now
	s.mu.Unlock()

	s.logger.Debug("runway status", "arrival", status.ArrivalRunway, "departure", status.DepartureRunway)
}

func (s *Scheduler) resolveMode(status runway.Status, present bool, now time.Time) runway.Mode {
	s.mu.Lock()
	prev := s.mode
	mode := runway.Resolve(status, present, s.cfg.TrackedRunway, prev)
	s.mode = mode
	if present {
		if mode == runway.ModeFlightTracking {
			s.state = StateRunningFlightTracking
		} else {
			s.state = StateRunningWeather
		}
	}
	s.mu.Unlock()

	if mode != prev {
		s.logger.Info("mode changed", "from", prev, "to", mode, "arrival", status.ArrivalRunway, "tracked", s.cfg.TrackedRunway)
	}
	s.metrics.SetMode(int(mode), mode != prev)
	return mode
}

// pollFlights refreshes the filtered flight list when due. A failure keeps
// the cached list and defers the next attempt by one interval.
func (s *Scheduler) pollFlights(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := isDue(now, s.schedule.LastFlightPoll, s.cfg.Intervals.FlightPoll) && !now.Before(s.nextFlightAttempt)
	s.mu.Unlock()
	if !due {
		return
	}

	records, err := fetch(ctx, s, SourceFlights, func(ctx context.Context) ([]flight.Record, error) {
		return s.flights.SearchFlights(ctx, s.cfg.Bounds)
	})
	if err != nil {
		if ctx.Err() == nil {
			s.mu.Lock()
			s.nextFlightAttempt = now.Add(s.cfg.Intervals.FlightPoll)
			s.mu.Unlock()
		}
		return
	}

	filtered := flight.Collect(flight.Filter(records, s.cfg.MaxAltitudeFt, s.cfg.Bounds))
	s.flightCache.PutAt(SourceFlights, filtered, s.cfg.Intervals.FlightPoll, now)
	s.mu.Lock()
	s.schedule.LastFlightPoll = now
	s.nextFlightAttempt = time.Time{}
	s.mu.Unlock()

	s.metrics.SetDisplayedFlights(len(filtered))
	s.logger.Debug("flights refreshed", "received", len(records), "displayable", len(filtered))
}

// pollWeather is pollFlights for the weather source.
func (s *Scheduler) pollWeather(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := isDue(now, s.schedule.LastWeatherPoll, s.cfg.Intervals.WeatherPoll) && !now.Before(s.nextWeatherAttempt)
	s.mu.Unlock()
	if !due {
		return
	}

	text, err := fetch(ctx, s, SourceWeather, s.weather.FetchWeatherText)
	if err != nil {
		if ctx.Err() == nil {
			s.mu.Lock()
			s.nextWeatherAttempt = now.Add(s.cfg.Intervals.WeatherPoll)
			s.mu.Unlock()
		}
		return
	}

	s.weatherCache.PutAt(SourceWeather, text, s.cfg.Intervals.WeatherPoll, now)
	s.mu.Lock()
	s.schedule.LastWeatherPoll = now
	s.nextWeatherAttempt = time.Time{}
	s.mu.Unlock()

	s.logger.Debug("weather refreshed", "metar", text)
}

// buildUpdate assembles the update for mode from the caches.
func (s *Scheduler) buildUpdate(mode runway.Mode, now time.Time) *display.Update {
	u := &display.Update{
		Mode:          mode,
		TrackedRunway: s.cfg.TrackedRunway,
		GeneratedAt:   now,
	}
	if e, ok := s.runwayCache.Entry(SourceRunway); ok {
		status := e.Value
		u.Runway = &status
		s.metrics.SetDataAge(SourceRunway, e.Age(now))
	}

	switch mode {
	case runway.ModeFlightTracking:
		e, ok := s.flightCache.Entry(SourceFlights)
		if !ok {
			return nil
		}
		u.Flights = e.Value
		u.FetchedAt = e.FetchedAt
		u.Stale = !e.FreshAt(now)
		s.metrics.SetDataAge(SourceFlights, e.Age(now))
	default:
		e, ok := s.weatherCache.Entry(SourceWeather)
		if !ok {
			return nil
		}
		u.Weather = e.Value
		u.FetchedAt = e.FetchedAt
		u.Stale = !e.FreshAt(now)
		s.metrics.SetDataAge(SourceWeather, e.Age(now))
	}
	return u
}

// NextWake returns how long Run should sleep after a tick at now: the time
// until the earliest of the mode check and the active mode's poll, clamped
// to [MinSleep, MaxSleep].
func (s *Scheduler) NextWake(now time.Time) time.Duration {
	s.mu.Lock()
	next := dueAt(s.schedule.LastModeCheck, s.cfg.Intervals.ModeCheck, time.Time{})
	// The inactive mode's poll cannot run before the mode flips, and the mode
	// only flips on a tick that runs a mode check. That check is already in
	// the minimum, so waking for the inactive schedule would be a no-op tick.
	var data time.Time
	if s.mode == runway.ModeFlightTracking {
		data = dueAt(s.schedule.LastFlightPoll, s.cfg.Intervals.FlightPoll, s.nextFlightAttempt)
	} else {
		data = dueAt(s.schedule.LastWeatherPoll, s.cfg.Intervals.WeatherPoll, s.nextWeatherAttempt)
	}
	s.mu.Unlock()

	if data.Before(next) {
		next = data
	}

	wait := next.Sub(now)
	if wait < s.cfg.MinSleep {
		wait = s.cfg.MinSleep
	}
	if s.cfg.MaxSleep > 0 && wait > s.cfg.MaxSleep {
		wait = s.cfg.MaxSleep
	}
	return wait
}

// Run ticks until ctx is done, sleeping NextWake between ticks.
// It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"tracked_runway", s.cfg.TrackedRunway,
		"bounds", s.cfg.Bounds.String(),
		"mode_check", s.cfg.Intervals.ModeCheck,
		"flight_poll", s.cfg.Intervals.FlightPoll,
		"weather_poll", s.cfg.Intervals.WeatherPoll)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}

		s.Tick(ctx, s.clock())
		timer.Reset(s.NextWake(s.clock()))
	}
}

// Snapshot is a point-in-time copy of the scheduler's state.
type Snapshot struct {
	State      string            `json:"state"`
	Mode       string            `json:"mode"`
	Schedule   Schedule          `json:"schedule"`
	Runway     *runway.Status    `json:"runway,omitempty"`
	LastUpdate *display.Update   `json:"last_update,omitempty"`
	LastErrors map[string]string `json:"last_errors,omitempty"`
	Ticks      uint64            `json:"ticks"`
	LastTick   time.Time         `json:"last_tick"`
}

// Snapshot returns the current state. Safe for concurrent use with Tick.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:      s.state.String(),
		Mode:       s.mode.String(),
		Schedule:   s.schedule,
		Ticks:      s.ticks,
		LastTick:   s.lastTick,
		LastErrors: make(map[string]string, len(s.lastErrors)),
	}
	for k, v := range s.lastErrors {
		snap.LastErrors[k] = v
	}
	if e, ok := s.runwayCache.Entry(SourceRunway); ok {
		status := e.Value
		snap.Runway = &status
	}
	if s.lastUpdate != nil {
		u := *s.lastUpdate
		snap.LastUpdate = &u
	}
	return snap
}

// isDue reports whether an interval has elapsed since last. A zero last
// time is always due.
func isDue(now, last time.Time, interval time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= interval
}

// dueAt returns when a schedule next comes due: last + interval, or
// notBefore when that is later. A zero last time is due immediately.
func dueAt(last time.Time, interval time.Duration, notBefore time.Time) time.Time {
	var at time.Time
	if !last.IsZero() {
		at = last.Add(interval)
	}
	if notBefore.After(at) {
		at = notBefore
	}
	return at
}
