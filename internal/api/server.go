package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/metrics"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/readcache"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/refresh"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/store"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/taxonomy"
)

// Server wires the HTTP handlers to the store gateway, the refresh
// coordinator, and the read cache.
type Server struct {
	router   chi.Router
	store    store.Gateway
	coord    *refresh.Coordinator
	cache    readcache.Cache
	taxonomy *taxonomy.Table
	logger   *zap.Logger

	// baseCtx outlives requests; refresh work triggered over HTTP is
	// bound to it, not to the triggering request.
	baseCtx context.Context

	bilibiliConfigured bool
}

// Options carries the server dependencies.
type Options struct {
	Store              store.Gateway
	Coordinator        *refresh.Coordinator
	Cache              readcache.Cache
	Taxonomy           *taxonomy.Table
	Logger             *zap.Logger
	BaseContext        context.Context
	BilibiliConfigured bool
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Taxonomy == nil {
		opts.Taxonomy = taxonomy.Default
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	s := &Server{
		store:              opts.Store,
		coord:              opts.Coordinator,
		cache:              opts.Cache,
		taxonomy:           opts.Taxonomy,
		logger:             opts.Logger,
		baseCtx:            opts.BaseContext,
		bilibiliConfigured: opts.BilibiliConfigured,
	}

	metrics.Init()

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/papers", s.papers)
		r.Get("/news", s.news)
		r.Get("/jobs", s.jobs)
		r.Get("/datasets", s.datasets)
		r.Get("/bilibili", s.bilibili)
		r.Get("/bilibili/all", s.bilibili)
		r.Get("/stats", s.stats)
		r.Get("/search", s.search)
		r.Get("/categories", s.categories)
		r.Post("/refresh-all", s.refreshAll)
		r.Get("/refresh-status", s.refreshStatus)
		r.Get("/fetch-status", s.refreshStatus)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Stats(r.Context()); err != nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, "internal")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"success": true, "status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(s.logger, w, http.StatusInternalServerError, "internal")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, code string) {
	writeJSON(logger, w, status, map[string]any{"success": false, "error": code})
}
