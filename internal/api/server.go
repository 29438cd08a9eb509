// Package api provides the JSON HTTP handlers for plant identification,
// feedback and history.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apimw "github.com/hugo-lorenzo-mato/plantsage/internal/api/middleware"
	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/feedback"
	"github.com/hugo-lorenzo-mato/plantsage/internal/identify"
	"github.com/hugo-lorenzo-mato/plantsage/internal/logging"
)

// bodyOverhead is the JSON envelope allowance on top of the base64 image.
const bodyOverhead = 64 * 1024

// mimeLineLen is the line length of MIME-wrapped base64. Each line break
// costs up to four body bytes once JSON-escaped as \r\n.
const mimeLineLen = 76

// BreakerStater reports the model circuit breaker state.
type BreakerStater interface {
	BreakerState() string
}

// Throttle bounds concurrent identify requests. A zero Limit disables it.
type Throttle struct {
	Limit          int
	Backlog        int
	BacklogTimeout time.Duration
}

// Server provides the /api endpoints.
type Server struct {
	router   chi.Router
	identify *identify.Service
	feedback *feedback.Service
	history  core.HistoryStore
	breaker  BreakerStater
	throttle Throttle
	logger   *logging.Logger
	now      func() time.Time
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFeedback enables POST /api/feedback.
func WithFeedback(svc *feedback.Service) ServerOption {
	return func(s *Server) {
		s.feedback = svc
	}
}

// WithHistory enables the history endpoints. Without it they return 404.
func WithHistory(store core.HistoryStore) ServerOption {
	return func(s *Server) {
		s.history = store
	}
}

// WithBreaker exposes the breaker state on the health endpoint.
func WithBreaker(b BreakerStater) ServerOption {
	return func(s *Server) {
		s.breaker = b
	}
}

// WithThrottle bounds in-flight identify requests.
func WithThrottle(t Throttle) ServerOption {
	return func(s *Server) {
		s.throttle = t
	}
}

// NewServer creates a new API server.
func NewServer(identifySvc *identify.Service, opts ...ServerOption) *Server {
	s := &Server{
		identify: identifySvc,
		logger:   logging.NewNop(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.feedback == nil {
		s.feedback = feedback.NewService(nil, feedback.WithLogger(s.logger))
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the /api router, meant to be mounted at /api.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(s.handleMethodNotAllowed)
	r.NotFound(s.handleNotFound)
	r.Use(apimw.MaxBodyBytes(s.MaxBodyBytes()))

	r.Group(func(r chi.Router) {
		if s.throttle.Limit > 0 {
			r.Use(chimw.ThrottleBacklog(s.throttle.Limit, s.throttle.Backlog, s.throttle.BacklogTimeout))
		}
		r.Post("/identify", s.handleIdentify)
	})
	r.Post("/feedback", s.handleFeedback)

	r.Route("/history", func(r chi.Router) {
		r.Get("/", s.handleListHistory)
		r.Get("/{id}", s.handleGetHistory)
	})

	return r
}

// MaxBodyBytes is the request body limit derived from the image limit. It
// admits a maximum-size image as line-wrapped base64.
func (s *Server) MaxBodyBytes() int64 {
	encoded := (int64(s.identify.MaxImageBytes()) + 2) / 3 * 4
	lineBreaks := encoded/mimeLineLen + 1
	return encoded + lineBreaks*4 + bodyOverhead
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	Model           string `json:"model"`
	ModelConfigured bool   `json:"model_configured"`
	Breaker         string `json:"breaker,omitempty"`
	History         bool   `json:"history"`
	Feedback        string `json:"feedback"`
	Time            string `json:"time"`
}

// HandleHealth returns server health status.
func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:          "healthy",
		Model:           s.identify.ModelName(),
		ModelConfigured: s.identify.ModelName() != "",
		History:         s.history != nil,
		Feedback:        s.feedback.SenderName(),
		Time:            s.now().UTC().Format(time.RFC3339),
	}
	if s.breaker != nil {
		resp.Breaker = s.breaker.BreakerState()
		if resp.Breaker == "open" {
			resp.Status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	respondError(w, http.StatusNotFound, msgNotFound)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
