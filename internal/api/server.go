// Package api exposes simulation runs and load sweeps over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/csma-simulator/internal/logging"
	"github.com/signalsfoundry/csma-simulator/internal/observability"
	"github.com/signalsfoundry/csma-simulator/internal/sweep"
	"github.com/signalsfoundry/csma-simulator/kb"
)

// HealthChecker reports serving status; *health.Server satisfies it.
type HealthChecker interface {
	Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error)
}

// Config wires the server to its collaborators. Only Runner is required.
type Config struct {
	Runner    *sweep.Runner
	Transport *observability.TransportCollector
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Health  HealthChecker
	Logger  logging.Logger
	// MaxDuration caps the simulated seconds a request may ask for; zero
	// disables the cap.
	MaxDuration float64
}

// Server routes API requests to the runner and result store.
type Server struct {
	router      *mux.Router
	runner      *sweep.Runner
	store       *kb.Store
	health      HealthChecker
	log         logging.Logger
	maxDuration float64
}

// NewServer builds the router. A nil Runner gets a default one with a
// private store.
func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logging.Noop()
	}
	runner := cfg.Runner
	if runner == nil {
		runner = sweep.NewRunner(nil, sweep.WithLogger(log))
	}

	s := &Server{
		router:      mux.NewRouter(),
		runner:      runner,
		store:       runner.Store(),
		health:      cfg.Health,
		log:         log,
		maxDuration: cfg.MaxDuration,
	}
	s.setupRoutes(cfg)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes(cfg Config) {
	s.router.Use(requestIDMiddleware(s.log))
	if cfg.Transport != nil {
		s.router.Use(cfg.Transport.HTTPMiddleware(routeName))
	}

	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		s.router.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/v1").Subrouter()

	runs := api.PathPrefix("/runs").Subrouter()
	runs.HandleFunc("", s.createRun).Methods(http.MethodPost)
	runs.HandleFunc("", s.listRuns).Methods(http.MethodGet)
	runs.HandleFunc("/{id}", s.getRun).Methods(http.MethodGet)
	runs.HandleFunc("/{id}", s.deleteRun).Methods(http.MethodDelete)

	sweeps := api.PathPrefix("/sweeps").Subrouter()
	sweeps.HandleFunc("", s.createSweep).Methods(http.MethodPost)
	sweeps.HandleFunc("/{id}", s.getSweep).Methods(http.MethodGet)
}
