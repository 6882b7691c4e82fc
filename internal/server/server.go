// Package server provides the HTTP REST API for the domain visibility engine.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/anish877/phrase-score-insight-sub002/internal/config"
	"github.com/anish877/phrase-score-insight-sub002/internal/pipeline"
	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
	"github.com/anish877/phrase-score-insight-sub002/internal/server/middleware"
	"github.com/anish877/phrase-score-insight-sub002/internal/server/ratelimit"
)

// Ownership resolves and records which principal owns a domain.
type Ownership interface {
	Owner(ctx context.Context, domainID int64) (int64, error)
	SetOwner(ctx context.Context, domainID, ownerID int64) error
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	store       progress.Store
	coordinator *progress.Coordinator
	autosaver   *progress.AutoSaver
	registry    *progress.Registry
	ownership   Ownership
	stages      Stages
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	validate    *validator.Validate
	closers     []func()
}

// Stages bundles the pipeline collaborators the analysis endpoint
// drives.
type Stages struct {
	Extractor pipeline.ContextExtractor
	Keywords  pipeline.KeywordRecommender
	Phrases   pipeline.PhraseGenerator
	Querier   pipeline.ModelQuerier
}

// Config holds server configuration. Store is the raw persistence
// layer; the server wraps it with the retry policy itself.
type Config struct {
	Port      int
	Engine    *config.Config
	JWT       *config.JWTConfig
	Store     progress.Store
	Ownership Ownership
	Stages    Stages
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Ownership == nil {
		return nil, fmt.Errorf("ownership resolver is required")
	}
	if cfg.JWT == nil {
		return nil, fmt.Errorf("JWT config is required")
	}
	engine := cfg.Engine
	if engine == nil {
		engine = config.Defaults()
	}

	policy := progress.RetryPolicy{
		MaxAttempts: engine.RetryMaxAttempts,
		Backoff: progress.Exponential{
			Initial: engine.RetryBaseDelay,
			Max:     time.Minute,
		},
	}
	store := progress.NewRetryingStore(cfg.Store, policy)

	s := &Server{
		store:       store,
		coordinator: progress.NewCoordinator(store),
		registry:    progress.NewRegistry(store, engine.StalenessWindow),
		ownership:   cfg.Ownership,
		stages:      cfg.Stages,
		validate:    validator.New(),
	}
	s.autosaver = progress.NewAutoSaver(store, engine.AutosaveQuiet, func(key progress.SubjectKey, err error) {
		log.Printf("[autosave] deferred save failed for %s: %v", key.String(), err)
	})

	// Initialize rate limiter
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig())

	s.jwtService = NewJWTService(cfg.JWT)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(s.routes()))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for streamed analysis runs
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// OnShutdown registers fn to run after the HTTP listener has drained.
func (s *Server) OnShutdown(fn func()) {
	s.closers = append(s.closers, fn)
}

// routes builds the API surface. Everything except the health check
// sits behind bearer auth.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /progress/{domainId}", s.handleSaveProgress)
	mux.HandleFunc("GET /progress/{domainId}", s.handleGetProgress)
	mux.HandleFunc("GET /progress/{domainId}/resume", s.handleResume)
	mux.HandleFunc("DELETE /progress/{domainId}", s.handleDeleteProgress)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("POST /analyses/{domainId}/run", s.handleRunAnalysis)

	protected := middleware.Auth(s.jwtService.AsTokenValidator())(mux)

	root := http.NewServeMux()
	root.HandleFunc("GET /health", s.handleHealth)
	root.Handle("/", protected)
	return root
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	for _, fn := range s.closers {
		fn()
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, decision := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		if !allowed {
			s.setRateLimitHeaders(w, decision)
			s.rateLimitResponse(w, decision)
			return
		}

		s.setRateLimitHeaders(w, decision)
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// extractClientID extracts the client identifier from the request.
// Uses the IP address from RemoteAddr; X-Forwarded-For would only be
// safe behind a trusted proxy.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, decision ratelimit.Decision) {
	if decision.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, decision ratelimit.Decision) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     decision.Limit,
		"remaining": decision.Remaining,
		"reset_at":  decision.ResetAt.Format(time.RFC3339),
	}

	if decision.RetryAfter > 0 {
		response["retry_after"] = int(decision.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		decision.Limit, decision.Remaining, decision.ResetAt.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
