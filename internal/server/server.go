// Package server provides the HTTP API for the YECS scoring service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jonathan/yecs/internal/db"
	"github.com/jonathan/yecs/internal/scoring"
	"github.com/jonathan/yecs/internal/server/middleware"
	"github.com/jonathan/yecs/internal/server/ratelimit"
	"github.com/jonathan/yecs/internal/types"
	"github.com/jonathan/yecs/internal/workflow"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// ScoreModel is the model-backed scoring surface. gateway.Gateway satisfies it.
type ScoreModel interface {
	ComputeScore(ctx context.Context, profile types.ApplicantProfile) (*types.ScoreResult, error)
	ComputeInsights(ctx context.Context, profile types.ApplicantProfile, score *types.ScoreResult) (*types.InsightsBundle, error)
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Model     ScoreModel // nil when no model is configured
	Heuristic *scoring.Heuristic
	Store     db.Store
	Registry  *workflow.Registry
	Sessions  workflow.SessionStore
	Tokens    *TokenService
	Limiter   *ratelimit.Limiter
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	deps       Deps
	logger     *zap.Logger
}

// New creates a server listening on addr.
func New(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Heuristic == nil {
		deps.Heuristic = scoring.NewHeuristic(nil)
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewLimiter(nil)
	}

	s := &Server{
		deps:   deps,
		logger: deps.Logger.Named("server"),
	}

	auth := middleware.AuthMiddleware(deps.Tokens.AsTokenValidator())
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Stateless scoring endpoints
	mux.HandleFunc("POST /api/calculate-score-gemini", s.handleCalculateScoreModel)
	mux.HandleFunc("POST /api/ai-insights-gemini", s.handleInsightsModel)
	mux.HandleFunc("POST /api/calculate-score", s.handleCalculateScore)
	mux.HandleFunc("POST /api/user", s.handleSyncUser)

	// Session endpoints
	mux.HandleFunc("POST /api/auth/anonymous", s.handleAnonymousAuth)
	mux.Handle("GET /api/workflow", protected(s.handleGetWorkflow))
	mux.Handle("POST /api/workflow/continue", protected(s.handleContinue))
	mux.Handle("POST /api/workflow/{section}", protected(s.handleSubmitSection))
	mux.Handle("GET /api/workflow/insights/stream", protected(s.handleInsightsStream))
	mux.Handle("GET /api/chat", protected(s.handleGetChat))
	mux.Handle("POST /api/chat", protected(s.handleSendChat))
	mux.Handle("GET /api/scores", protected(s.handleScoreHistory))

	s.handler = middleware.Logging(s.logger)(middleware.CORS(s.withRateLimit(mux)))
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Scoring waits on the model; the insights stream is long-lived
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, drains workflows so pending profile
// writes land, and then closes the stores in parallel.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
	}
	s.deps.Limiter.Stop()

	if s.deps.Registry != nil {
		s.deps.Registry.Close()
	}

	var g errgroup.Group
	if s.deps.Store != nil {
		g.Go(func() error {
			if err := s.deps.Store.Close(); err != nil {
				return fmt.Errorf("failed to close store: %w", err)
			}
			return nil
		})
	}
	if s.deps.Sessions != nil {
		g.Go(func() error {
			if err := s.deps.Sessions.Close(); err != nil {
				return fmt.Errorf("failed to close session store: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info("server stopped")
	return errors.Join(errs...)
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.deps.Limiter.Allow(clientID(r), r.Method, r.URL.Path)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
		}
		if !allowed {
			retryAfter := int(info.RetryAfter.Seconds())
			if retryAfter > 0 {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			}
			s.logger.Warn("rate limit exceeded",
				zap.String("client", clientID(r)),
				zap.String("path", r.URL.Path),
				zap.Int("limit", info.Limit))
			s.jsonResponse(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate limit exceeded, please try again later",
				"retry_after": retryAfter,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID is the client IP from RemoteAddr.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// errorFrom maps err to a status and a client-safe message. Server-side
// failures are logged with the full error.
func (s *Server) errorFrom(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}

	var validation *types.ValidationError
	if errors.As(err, &validation) {
		s.jsonResponse(w, status, map[string]any{
			"error":  validation.Error(),
			"fields": validation.Fields,
		})
		return
	}
	s.errorResponse(w, status, PublicMessage(err))
}

// decodeBody decodes a JSON request body into v. An empty body is a BadRequestError.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	raw, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &BadRequestError{Message: "invalid JSON body", Cause: err}
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	if r.Body == nil {
		return nil, &BadRequestError{Message: "No data provided"}
	}
	var raw json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &BadRequestError{Message: "No data provided"}
		}
		return nil, &BadRequestError{Message: "invalid JSON body", Cause: err}
	}
	if string(raw) == "null" {
		return nil, &BadRequestError{Message: "No data provided"}
	}
	return raw, nil
}
