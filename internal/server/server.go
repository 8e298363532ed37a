// Package server exposes the scheduler's state over HTTP: a health check
// for the process supervisor, Prometheus metrics, and a JSON status API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unklstewy/flightportal/internal/display"
	"github.com/unklstewy/flightportal/internal/poller"
)

// StatusProvider reports the scheduler's state.
type StatusProvider interface {
	Snapshot() poller.Snapshot
}

// Options configure the server.
type Options struct {
	// Addr is the listen address (host:port)
	Addr string

	// StaleAfter fails the health check when the last tick is older than this
	StaleAfter time.Duration

	// Colors are the row colors used for /api/v1/frame
	Colors [3]string

	// Gatherer backs /metrics (default prometheus.DefaultGatherer)
	Gatherer prometheus.Gatherer

	Logger *log.Logger
}

// Server is the HTTP status server.
type Server struct {
	router *chi.Mux
	status StatusProvider
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

// New creates the server and its routes.
func New(status StatusProvider, opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	if opts.Colors == ([3]string{}) {
		opts.Colors = display.DefaultRowColors
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Server{
		router: chi.NewRouter(),
		status: status,
		opts:   opts,
		logger: opts.Logger.WithPrefix("http"),
		now:    time.Now,
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  s.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.DebugLevel}),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/frame", s.handleFrame)
		r.Get("/flights", s.handleFlights)
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.opts.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("stopped")
	return nil
}

type healthResponse struct {
	Status   string    `json:"status"`
	State    string    `json:"state"`
	Mode     string    `json:"mode"`
	LastTick time.Time `json:"last_tick"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.status.Snapshot()
	resp := healthResponse{
		Status:   "ok",
		State:    snap.State,
		Mode:     snap.Mode,
		LastTick: snap.LastTick,
	}

	code := http.StatusOK
	switch {
	case snap.LastTick.IsZero():
		resp.Status = "starting"
		code = http.StatusServiceUnavailable
	case s.now().Sub(snap.LastTick) > s.opts.StaleAfter:
		resp.Status = "stalled"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.status.Snapshot())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	snap := s.status.Snapshot()
	if snap.LastUpdate == nil {
		http.Error(w, "no data yet", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, display.Compose(*snap.LastUpdate, s.opts.Colors))
}

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	snap := s.status.Snapshot()
	resp := map[string]interface{}{
		"mode":    snap.Mode,
		"flights": []interface{}{},
	}
	if u := snap.LastUpdate; u != nil && len(u.Flights) > 0 {
		resp["flights"] = u.Flights
		resp["fetched_at"] = u.FetchedAt
		resp["stale"] = u.Stale
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
