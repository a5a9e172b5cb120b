// Package server exposes the refinery over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-refinery/internal/metrics"
	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/pipeline"
	"github.com/sells-group/lead-refinery/internal/store"
)

// Enricher runs leads through the refinery.
type Enricher interface {
	EnrichLead(ctx context.Context, identity model.LeadIdentity, rawLeadID string) (*model.EnrichedRecord, error)
	EnrichBatch(ctx context.Context, leads []pipeline.Lead, concurrency int, onResult func(pipeline.Result)) pipeline.Summary
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts /metrics from m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithRateLimit caps enrichment requests per second across all clients.
// Zero or less disables limiting.
func WithRateLimit(rps float64) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithBatchConcurrency sets how many leads of an async batch run at once.
func WithBatchConcurrency(n int) Option {
	return func(s *Server) { s.concurrency = n }
}

// Server holds the HTTP handlers.
type Server struct {
	enricher    Enricher
	store       store.Store
	metrics     *metrics.Metrics
	limiter     *rate.Limiter
	corsOrigins []string
	timeout     time.Duration
	concurrency int

	// background bounds async batch work; cancelled on shutdown.
	background context.Context
}

// New returns a Server.
func New(enricher Enricher, st store.Store, opts ...Option) *Server {
	s := &Server{
		enricher:    enricher,
		store:       st,
		corsOrigins: []string{"*"},
		timeout:     2 * time.Minute,
		concurrency: pipeline.DefaultConcurrency,
		background:  context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/v1/leads", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))
		r.Get("/", s.handleListRecords)
		r.Get("/export", s.handleExport)
		r.Get("/states", s.handleListStates)
		r.Get("/{rawLeadID}", s.handleGetRecord)
		r.Get("/{rawLeadID}/state", s.handleGetState)
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/enrich", s.handleEnrich)
			r.Post("/batch", s.handleBatch)
		})
	})
	return r
}

// ListenAndServe serves on port until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	s.background = ctx
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	case <-ctx.Done():
	}

	zap.L().Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
