package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/plantsage/internal/api"
	apimw "github.com/hugo-lorenzo-mato/plantsage/internal/api/middleware"
	"github.com/hugo-lorenzo-mato/plantsage/internal/events"
	"github.com/hugo-lorenzo-mato/plantsage/internal/logging"
	"github.com/hugo-lorenzo-mato/plantsage/internal/metrics"
	"github.com/hugo-lorenzo-mato/plantsage/internal/web/sse"
)

// Server represents the HTTP server for the PlantSage web interface.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	config     Config
	logger     *logging.Logger
	api        *api.Server
	eventBus   *events.EventBus
	sseHandler *sse.Handler
	metrics    *metrics.Metrics
}

// Config holds the server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// RequestTimeout bounds /api requests other than the event stream.
	RequestTimeout time.Duration
	CORSOrigins    []string
	EnableCORS     bool
	ServeStatic    bool
	MetricsPath    string
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    90 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RequestTimeout:  75 * time.Second,
		CORSOrigins:     []string{"*"},
		EnableCORS:      true,
		ServeStatic:     true,
		MetricsPath:     "/metrics",
	}
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithEventBus enables the SSE stream at /api/events.
func WithEventBus(bus *events.EventBus) ServerOption {
	return func(s *Server) {
		s.eventBus = bus
	}
}

// WithMetrics instruments requests and serves the registry at
// Config.MetricsPath.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new Server serving apiServer under /api.
func New(cfg Config, apiServer *api.Server, logger *logging.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		config: cfg,
		api:    apiServer,
		logger: logger.WithComponent("web"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return s
}

// setupRouter configures the Chi router with middleware and routes.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimw.RequestContext)
	r.Use(apimw.Logger(s.logger))
	r.Use(apimw.Metrics(s.metrics))
	r.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		})
		r.Use(corsMiddleware.Handler)
	}

	r.Get("/health", s.api.HandleHealth)

	if s.eventBus != nil {
		s.sseHandler = sse.NewHandler(s.eventBus)
		r.Get("/api/events", s.sseHandler.ServeHTTP)
	}

	apiHandler := s.api.Handler()
	if s.config.RequestTimeout > 0 {
		apiHandler = middleware.Timeout(s.config.RequestTimeout)(apiHandler)
	}
	r.Mount("/api", apiHandler)

	if s.metrics != nil && s.config.MetricsPath != "" {
		r.Get(s.config.MetricsPath, s.metrics.Handler().ServeHTTP)
	}

	if s.config.ServeStatic {
		staticHandler, err := StaticHandler()
		if err != nil {
			s.logger.Warn("frontend not available, static file serving disabled", "error", err)
		} else {
			r.NotFound(staticHandler.ServeHTTP)
		}
	}

	return r
}

// Notify broadcasts a message to every connected event stream client.
func (s *Server) Notify(eventType string, data interface{}) {
	if s.sseHandler != nil {
		s.sseHandler.Broadcast(eventType, data)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting http server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if s.sseHandler != nil {
		_ = s.sseHandler.Shutdown(shutdownCtx)
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
