package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cortexflow/scheduler-core/internal/api/handlers"
	apiMiddleware "github.com/cortexflow/scheduler-core/internal/api/middleware"
	"github.com/cortexflow/scheduler-core/internal/api/websocket"
	"github.com/cortexflow/scheduler-core/internal/config"
	"github.com/cortexflow/scheduler-core/internal/events"
	"github.com/cortexflow/scheduler-core/internal/manager"
	"github.com/cortexflow/scheduler-core/internal/processor"
	"github.com/cortexflow/scheduler-core/internal/provider"
	"github.com/cortexflow/scheduler-core/internal/worker"
)

// Server is the HTTP surface over the Queue Manager, Worker Pool,
// Provider Registry, and Request Processor.
type Server struct {
	router         *chi.Mux
	config         *config.Config
	requestHandler *handlers.RequestHandler
	adminHandler   *handlers.AdminHandler
	wsHub          *websocket.Hub
	wsHandler      *websocket.Handler
	publisher      *events.RedisPubSub
}

// NewServer creates a new HTTP server wired against an already-started
// Queue Manager, Worker Pool, Provider Registry, and Request Processor.
func NewServer(
	cfg *config.Config,
	mgr *manager.Manager,
	pool *worker.Pool,
	registry *provider.Registry,
	proc *processor.Processor,
	publisher *events.RedisPubSub,
) *Server {
	wsHub := websocket.NewHub(publisher)

	s := &Server{
		router:         chi.NewRouter(),
		config:         cfg,
		requestHandler: handlers.NewRequestHandler(proc),
		adminHandler:   handlers.NewAdminHandler(mgr, pool, registry),
		wsHub:          wsHub,
		wsHandler:      websocket.NewHandler(wsHub),
		publisher:      publisher,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(apiMiddleware.RequestLogger())

	// Recoverer
	s.router.Use(middleware.Recoverer)

	// Heartbeat endpoint for load balancers
	s.router.Use(middleware.Heartbeat("/healthz"))
}

func (s *Server) setupRoutes() {
	authCfg := &apiMiddleware.AuthConfig{
		Enabled:   s.config.Auth.Enabled,
		JWTSecret: s.config.Auth.JWTSecret,
		APIKeys:   toAPIKeySet(s.config.Auth.APIKeys),
	}

	// API v1 routes
	s.router.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		if s.config.Providers.AdmissionRPS > 0 {
			r.Use(apiMiddleware.ClientRateLimit(int(s.config.Providers.AdmissionRPS)))
		}
		r.Use(apiMiddleware.Auth(authCfg))

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", s.requestHandler.Create)
			r.Post("/sync", s.requestHandler.CreateSync)
			r.Get("/{requestID}", s.requestHandler.Get)
			r.Delete("/{requestID}", s.requestHandler.Cancel)
		})

		r.Get("/health", s.requestHandler.Health)

		// WebSocket health/observability stream
		r.Get("/stream", s.wsHandler.ServeWS)
	})

	// Admin routes
	s.router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Use(apiMiddleware.Auth(authCfg))

		r.Get("/health", s.adminHandler.HealthCheck)

		// Worker pool visibility
		r.Get("/workers", s.adminHandler.ListWorkers)
		r.Post("/workers/scale", s.adminHandler.ScaleWorkers)

		// Queue visibility
		r.Get("/queues", s.adminHandler.GetQueues)

		// Provider discovery and health
		r.Get("/providers", s.adminHandler.ListProviders)
		r.Get("/providers/health", s.adminHandler.ProviderHealth)
	})

	// Metrics endpoint
	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler())
	}
}

func toAPIKeySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// Start starts the WebSocket hub
func (s *Server) Start(ctx context.Context) {
	go s.wsHub.Run(ctx)
}

// Stop stops the WebSocket hub
func (s *Server) Stop() {
	s.wsHub.Stop()
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Publisher returns the event publisher
func (s *Server) Publisher() *events.RedisPubSub {
	return s.publisher
}
