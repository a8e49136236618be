package web

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lesterapp/lester/internal/config"
)

// shutdownTimeout bounds how long in-flight requests get after cancellation.
const shutdownTimeout = 5 * time.Second

// NewServer creates the HTTP server for the lester JSON API.
func NewServer(database *sql.DB, cfg *config.Config, log *slog.Logger, bind string, port int) *http.Server {
	h := &Handlers{
		db:     database,
		cfg:    cfg,
		policy: cfg.TaggingPolicy(),
		log:    log,
	}

	var limiter *KeyedRateLimiter
	if cfg.HTTP.RateLimitRPS > 0 {
		limiter = NewKeyedRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           h.routes(limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// routes builds the API mux. A nil limiter disables rate limiting.
func (h *Handlers) routes(limiter *KeyedRateLimiter) http.Handler {
	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /workspaces", h.HandleListWorkspaces)
	mux.HandleFunc("POST /workspaces", h.HandleCreateWorkspace)
	mux.HandleFunc("GET /bookmarks", h.HandleListBookmarks)
	mux.HandleFunc("POST /bookmarks", h.HandleCreateBookmark)
	mux.HandleFunc("GET /bookmarks/{id}", h.HandleGetBookmark)
	mux.HandleFunc("GET /tags", h.HandleListTags)
	mux.HandleFunc("GET /tag-cloud", h.HandleTagCloud)
	mux.HandleFunc("GET /jobs", h.HandleListJobs)
	mux.HandleFunc("GET /jobs/{id}", h.HandleGetJob)
	mux.HandleFunc("POST /suggest", h.HandleSuggest)
	mux.HandleFunc("POST /sync/merge", h.HandleSyncMerge)
	mux.HandleFunc("POST /sync/apply", h.HandleSyncApply)

	var handler http.Handler = mux
	if limiter != nil {
		handler = rateLimit(limiter, h.log)(handler)
	}
	handler = securityHeaders(handler)
	return requestLogger(h.log)(handler)
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger logs one line per request at debug, or warn for 5xx.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			level := slog.LevelDebug
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			log.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("lester API listening", "addr", "http://"+srv.Addr)
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
