package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Options configures the HTTP listener and its middleware.
type Options struct {
	Port           string
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

// Server represents the REST API server
type Server struct {
	server  *http.Server
	limiter *RateLimiter
	logger  logrus.FieldLogger
}

// NewServer creates a new REST API server
func NewServer(opts Options, deps Dependencies, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	handler := NewHandler(deps, logger)

	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))

	var limiter *RateLimiter
	if opts.RateLimitRPS > 0 {
		limiter = NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
		router.Use(limiter.Middleware)
	}

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Features
	api.HandleFunc("/teams/{team}/features", handler.GetTeamFeatures).Methods("GET")
	api.HandleFunc("/teams/{team}/form", handler.GetTeamForm).Methods("GET")
	api.HandleFunc("/games/{gameID}/features", handler.GetGameFeatures).Methods("GET")
	api.HandleFunc("/matchups", handler.GetMatchup).Methods("GET")
	api.HandleFunc("/teamstats/{team}/form", handler.GetTeamStatsForm).Methods("GET")

	// Builds
	buildHandler := NewBuildHandler(deps.Builds, deps.Cache)
	if deps.Builds != nil {
		api.HandleFunc("/builds", buildHandler.HandleBuildRequest).Methods("POST")
		api.HandleFunc("/builds/status", buildHandler.HandleBuildStatus).Methods("GET")
	}
	api.HandleFunc("/builds/latest", buildHandler.HandleLastBuild).Methods("GET")

	// preflight requests match no route, so CORS wraps the router
	var root http.Handler = router
	if len(opts.CORSOrigins) > 0 {
		root = CORSMiddleware(opts.CORSOrigins)(router)
	}

	return &Server{
		limiter: limiter,
		logger:  logger,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", opts.Port),
			Handler:           root,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("REST server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
