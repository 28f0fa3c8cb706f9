package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Sriharan2222/medlog/pkg/config"
	"github.com/Sriharan2222/medlog/pkg/interfaces"
	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/monitoring"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// Routes exposes the route groups handler packages register on. Each group
// carries its access policy.
type Routes struct {
	// Auth is /api/auth, no authentication
	Auth *mux.Router
	// Authenticated is /api, any valid token
	Authenticated *mux.Router
	// Doctor is /api/doctor, DOCTOR tokens only
	Doctor *mux.Router
	// Patient is /api/patient, PATIENT tokens only
	Patient *mux.Router
	// Public is /api/public, no authentication, rate limited per client IP
	Public *mux.Router
}

// Service owns the HTTP router, its middleware chain and the server
type Service struct {
	router         *mux.Router
	server         *http.Server
	routes         *Routes
	rateLimiter    *RateLimiter
	tokenValidator interfaces.TokenValidator
	logger         *logger.Logger
	metrics        *monitoring.MetricsCollector
	allowedOrigin  string
	shutdownAfter  time.Duration
	stopCleanup    chan struct{}
}

// Options carries the optional observability collaborators
type Options struct {
	Monitoring *monitoring.MonitoringMiddleware
	Metrics    *monitoring.MetricsCollector
	Health     *monitoring.HealthManager
}

// NewService builds the router and HTTP server
func NewService(cfg *config.Config, tokenValidator interfaces.TokenValidator, log *logger.Logger, opts Options) *Service {
	s := &Service{
		router:         mux.NewRouter(),
		rateLimiter:    NewRateLimiter(cfg.Public.RequestsPerMin, time.Minute),
		tokenValidator: tokenValidator,
		logger:         log,
		metrics:        opts.Metrics,
		allowedOrigin:  cfg.CORS.AllowedOrigin,
		shutdownAfter:  time.Duration(cfg.Server.ShutdownTimeout) * time.Second,
		stopCleanup:    make(chan struct{}),
	}

	if opts.Monitoring != nil {
		// router-level middleware runs after route matching, so the
		// monitoring layer sees the route template
		s.router.Use(opts.Monitoring.HTTPMiddleware)
	}

	s.setupRoutes(cfg, opts)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return s
}

// Routes returns the route groups
func (s *Service) Routes() *Routes {
	return s.routes
}

// Handler returns the full handler chain. CORS wraps the router so preflight
// requests are answered even for routes that only accept other methods.
func (s *Service) Handler() http.Handler {
	return s.corsMiddleware(s.securityHeadersMiddleware(s.router))
}

// setupRoutes sets up the route groups and the operational endpoints
func (s *Service) setupRoutes(cfg *config.Config, opts Options) {
	if opts.Health != nil {
		s.router.HandleFunc(cfg.Monitoring.HealthPath, opts.Health.HTTPHandler()).Methods("GET")
	}
	if opts.Metrics != nil && cfg.Monitoring.Enabled {
		s.router.Handle(cfg.Monitoring.MetricsPath, opts.Metrics.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()

	public := api.PathPrefix("/public").Subrouter()
	public.Use(s.rateLimitMiddleware)

	doctor := api.PathPrefix("/doctor").Subrouter()
	doctor.Use(s.authMiddleware, s.requireRole(types.RoleDoctor))

	patient := api.PathPrefix("/patient").Subrouter()
	patient.Use(s.authMiddleware, s.requireRole(types.RolePatient))

	authenticated := api.NewRoute().Subrouter()
	authenticated.Use(s.authMiddleware)

	s.routes = &Routes{
		Auth:          auth,
		Authenticated: authenticated,
		Doctor:        doctor,
		Patient:       patient,
		Public:        public,
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteErrorMessage(w, http.StatusNotFound, "Not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// Start starts the HTTP server and blocks until it stops
func (s *Service) Start() error {
	s.rateLimiter.StartCleanup(10*time.Minute, s.stopCleanup)

	s.logger.WithField("addr", s.server.Addr).Info("Starting MedLog API")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down
func (s *Service) Stop(ctx context.Context) error {
	if s.shutdownAfter > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownAfter)
		defer cancel()
	}

	close(s.stopCleanup)
	s.logger.Info("Stopping MedLog API")
	return s.server.Shutdown(ctx)
}
