// Package server provides the HTTP REST API for the roadmap agent.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/roadmap-agent/internal/db"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/pipeline"
	"github.com/jonathan/roadmap-agent/internal/postsearch"
	"github.com/jonathan/roadmap-agent/internal/server/ratelimit"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// RoadmapRunner produces a roadmap for a goal. *pipeline.Pipeline implements it.
type RoadmapRunner interface {
	Run(ctx context.Context, goal string) (*pipeline.Result, error)
}

// PostSearcher searches stored posts. *postsearch.Service implements it.
type PostSearcher interface {
	Search(ctx context.Context, req postsearch.Request) ([]types.Post, error)
}

// RunStore reads recorded runs. *db.DB implements it.
type RunStore interface {
	GetRun(ctx context.Context, runID uuid.UUID) (*db.Run, error)
	ListRuns(ctx context.Context, filters db.RunFilters) ([]db.Run, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	roadmaps    RoadmapRunner
	posts       PostSearcher
	runs        RunStore
	rateLimiter *ratelimit.Limiter
	log         *logger.Logger
}

// Config holds server configuration. Posts and Runs may be nil, which
// disables the endpoints that need them.
type Config struct {
	Addr      string
	Roadmaps  RoadmapRunner
	Posts     PostSearcher
	Runs      RunStore
	RateLimit *ratelimit.Config
	Logger    *logger.Logger
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Roadmaps == nil {
		return nil, errors.New("server: roadmap runner is required")
	}

	s := &Server{
		roadmaps:    cfg.Roadmaps,
		posts:       cfg.Posts,
		runs:        cfg.Runs,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		log:         logger.OrNop(cfg.Logger),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second, // Rate-limit backoff can hold a run for minutes
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /roadmap", s.handleRoadmap)
	mux.HandleFunc("POST /search_posts", s.handleSearchPosts)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.rateLimiter.Stop()
		if ok && err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.rateLimiter.Stop()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
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

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("error encoding JSON response", "error", err)
	}
}

// errorResponse writes the {success:false, error} envelope
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, envelope{Success: false, Error: message})
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; proxy headers are not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"success":   false,
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	s.log.Warn("rate limit exceeded", "limit", info.Limit, "reset", info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
