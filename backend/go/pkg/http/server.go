package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"Memora/backend/go/internal/config"
	"Memora/backend/go/pkg/httpmiddleware"
	"Memora/backend/go/pkg/logger"

	"github.com/sony/gobreaker"
)

// Middleware defines a function to wrap an http.Handler.
type Middleware func(http.Handler) http.Handler

// Server wraps http.Server and applies the configured rate limiting and
// circuit breaking in front of the routed handler.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	handler    http.Handler
	log        *logger.Logger
}

// ServerOption defines a function for configuring a Server.
type ServerOption func(*Server)

// WithAddress sets the address for the server to listen on.
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.httpServer.Addr = addr
	}
}

// WithHandler serves h (for example a gin engine) instead of the built-in mux.
func WithHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.handler = h
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(log *logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// NewServer creates a Server from the middleware section of cfg.
// The write timeout stays unset so event streams are never cut off.
func NewServer(cfg *config.AppConfig, opts ...ServerOption) (*Server, error) {
	mux := http.NewServeMux()
	srv := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Address,
			ReadHeaderTimeout: 10 * time.Second,
		},
		mux:     mux,
		handler: mux,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = ":8080"
	}

	var middlewares []Middleware
	if rl := cfg.Middleware.RateLimiter; rl.Enabled {
		srv.log.Info(fmt.Sprintf("Enabling rate limiter: %.2f req/s per client, burst %d", rl.Rate, rl.Burst))
		middlewares = append(middlewares, httpmiddleware.RateLimit(rl.Rate, rl.Burst))
	}
	if cfg.Middleware.CircuitBreaker.Enabled {
		breaker, err := createCircuitBreaker(cfg.App.Name, cfg.Middleware.CircuitBreaker)
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		srv.log.Info("Enabling circuit breaker middleware")
		middlewares = append(middlewares, httpmiddleware.CircuitBreak(breaker))
	}

	handler := srv.handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	srv.httpServer.Handler = handler
	return srv, nil
}

// Handle registers the handler for the given pattern on the built-in mux.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// HandleFunc registers the handler function for the given pattern on the built-in mux.
func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info(fmt.Sprintf("Starting server on %s", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func createCircuitBreaker(name string, cfg config.CircuitBreakerConfig) (*gobreaker.CircuitBreaker, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	failures := cfg.FailureThreshold
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name + "-http",
		MaxRequests: cfg.SuccessThreshold,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	}), nil
}
