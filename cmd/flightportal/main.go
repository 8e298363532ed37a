// FlightPortal drives an LED matrix next to an airport approach path. It
// watches which runway the airport lands on and, when it is the tracked one,
// shows the aircraft on final; otherwise it shows runways and wind.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/flightportal/internal/display"
	"github.com/unklstewy/flightportal/internal/logging"
	"github.com/unklstewy/flightportal/internal/metrics"
	"github.com/unklstewy/flightportal/internal/poller"
	"github.com/unklstewy/flightportal/internal/server"
	"github.com/unklstewy/flightportal/internal/watchdog"
	"github.com/unklstewy/flightportal/pkg/adsb"
	"github.com/unklstewy/flightportal/pkg/airport"
	"github.com/unklstewy/flightportal/pkg/config"
	"github.com/unklstewy/flightportal/pkg/flight"
	"github.com/unklstewy/flightportal/pkg/flightaware"
	"github.com/unklstewy/flightportal/pkg/flightradar"
	"github.com/unklstewy/flightportal/pkg/retry"
)

// maxSleepWithoutWatchdog keeps the health check meaningful when no
// hardware watchdog bounds the loop.
const maxSleepWithoutWatchdog = time.Minute

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to environment file")
	logPath := flag.String("log-file", "flightportal.log", "Log file used while the terminal renderer owns the screen")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	if *writeConfig {
		if _, err := os.Stat(*configPath); err == nil {
			log.Fatal("refusing to overwrite existing configuration", "path", *configPath)
		}
		if err := config.DefaultConfig().Save(*configPath); err != nil {
			log.Fatal("failed to write configuration", "path", *configPath, "err", err)
		}
		log.Info("wrote default configuration", "path", *configPath)
		return
	}

	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Fatal("failed to load environment file", "path", *envPath, "err", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load configuration", "path", *configPath, "err", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "path", *configPath, "err", err)
	}

	var logOut io.Writer = os.Stderr
	if cfg.Display.Renderer == "terminal" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatal("failed to open log file", "path", *logPath, "err", err)
		}
		defer f.Close()
		logOut = f
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.EffectiveLevel(),
		Format: cfg.Logging.Format,
		Output: logOut,
	})
	if err != nil {
		log.Fatal("failed to create logger", "err", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("flightportal stopped", "err", err)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bounds, err := cfg.GetBounds()
	if err != nil {
		return err
	}

	logger.Info("starting flightportal",
		"airport", cfg.Airport.ICAO,
		"tracked_runway", cfg.Airport.TrackedRunway,
		"bounds", bounds.String(),
		"flight_source", cfg.FlightSource.Type,
		"renderer", cfg.Display.Renderer)

	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	fetchTimeout := cfg.Polling.FetchTimeout()
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.FlightSource.MaxRetries
	retryCfg.MaxDelay = fetchTimeout
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Debug("retrying flight search", "attempt", attempt, "delay", delay, "err", err)
	}

	flights := newFlightSource(cfg, fetchTimeout, retryCfg)
	if rl := cfg.RouteLookup; rl.Enabled {
		flights = flightaware.NewEnricher(flights,
			flightaware.NewClient(flightaware.Config{
				APIKey:          rl.APIKey,
				BaseURL:         rl.BaseURL,
				RequestsPerHour: rl.RequestsPerHour,
				Timeout:         fetchTimeout,
			}),
			flightaware.WithRouteTTL(rl.CacheTTL()),
			flightaware.WithMaxLookups(rl.MaxLookups),
			flightaware.WithMaxAltitude(cfg.Filter.MaxApproachAltitudeFt),
			flightaware.WithLogger(logger.WithPrefix("routes")))
		logger.Info("route lookup enabled", "requests_per_hour", rl.RequestsPerHour)
	}
	atis := airport.NewATISClient(airport.Config{
		BaseURL: cfg.ATIS.BaseURL,
		ICAO:    cfg.Airport.ICAO,
		Timeout: fetchTimeout,
	})
	metar := airport.NewMETARClient(airport.Config{
		BaseURL: cfg.METAR.BaseURL,
		ICAO:    cfg.Airport.ICAO,
		Timeout: fetchTimeout,
	})

	colors := rowColors(cfg.Display.RowColors)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	renderer, closeRenderer, err := newRenderer(gctx, g, cancel, cfg, colors, logger)
	if err != nil {
		return err
	}
	defer closeRenderer()

	var dog watchdog.Watchdog = &watchdog.Noop{}
	maxSleep := maxSleepWithoutWatchdog
	if cfg.Watchdog.Enabled {
		dev, err := watchdog.Open(cfg.Watchdog.DevicePath, logger)
		if err != nil {
			return err
		}
		defer dev.Close()
		dog = dev
		maxSleep = cfg.Watchdog.FeedInterval()
	}

	sched, err := poller.New(poller.Config{
		TrackedRunway: cfg.Airport.TrackedRunway,
		Bounds:        bounds,
		MaxAltitudeFt: cfg.Filter.MaxApproachAltitudeFt,
		Intervals: poller.Intervals{
			ModeCheck:   cfg.Polling.ModeCheckInterval(),
			FlightPoll:  cfg.Polling.FlightPollInterval(),
			WeatherPoll: cfg.Polling.WeatherPollInterval(),
		},
		FetchTimeout: fetchTimeout,
		MinSleep:     cfg.Polling.MinSleep(),
		MaxSleep:     maxSleep,
		DefaultMode:  cfg.Polling.GetDefaultMode(),
	}, poller.Deps{
		Status:   atis,
		Flights:  flights,
		Weather:  metar,
		Renderer: renderer,
		Watchdog: dog,
		Metrics:  collector,
		Logger:   logger.WithPrefix("poller"),
	})
	if err != nil {
		return err
	}

	g.Go(func() error {
		return sched.Run(gctx)
	})

	if cfg.Server.Enabled {
		srv := server.New(sched, server.Options{
			Addr: cfg.Server.Addr(),
			// three fetches may run back to back in one tick
			StaleAfter: 2*maxSleep + 3*fetchTimeout,
			Colors:     colors,
			Gatherer:   reg,
			Logger:     logger,
		})
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

func newFlightSource(cfg *config.Config, timeout time.Duration, retryCfg retry.Config) flight.Source {
	fs := cfg.FlightSource
	switch fs.Type {
	case "airplanes.live":
		return adsb.NewAirplanesLiveClient(fs.BaseURL, fs.RateLimit(), timeout, retryCfg)
	default:
		return flightradar.NewClient(flightradar.Config{
			BaseURL:     fs.BaseURL,
			Timeout:     timeout,
			MinInterval: fs.RateLimit(),
			Limit:       fs.Limit,
			Retry:       retryCfg,
		})
	}
}

// newRenderer builds the configured renderer wrapped in Async. The returned
// func flushes the last update and releases the device. Quitting the
// terminal UI calls quit.
func newRenderer(ctx context.Context, g *errgroup.Group, quit context.CancelFunc, cfg *config.Config, colors [3]string, logger *log.Logger) (display.Renderer, func(), error) {
	var (
		inner   display.Renderer
		release = func() {}
	)

	switch cfg.Display.Renderer {
	case "none":
		return &display.Noop{}, release, nil
	case "pipe":
		p, err := display.OpenPipe(cfg.Display.DevicePath, cfg.Display.Width, cfg.Display.Height, colors, logger)
		if err != nil {
			return nil, nil, err
		}
		inner = p
		release = func() {
			if err := p.Close(); err != nil {
				logger.Warn("failed to close display", "err", err)
			}
		}
	case "terminal":
		term := display.NewTerminal(ctx, colors)
		g.Go(func() error {
			defer quit()
			return term.Run()
		})
		inner = term
	default:
		inner = display.NewConsole(os.Stdout, colors)
	}

	async := display.NewAsync(inner)
	return async, func() {
		_ = async.Close()
		release()
	}, nil
}

func rowColors(configured []string) [3]string {
	colors := display.DefaultRowColors
	for i := 0; i < len(colors) && i < len(configured); i++ {
		if configured[i] != "" {
			colors[i] = configured[i]
		}
	}
	return colors
}
