package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/cache"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/orchestrate"
)

const shutdownTimeout = 15 * time.Second

// Server is the HTTP boundary. Sessions are addressed explicitly by id in
// the path or request body.
type Server struct {
	appCfg *config.AppConfig
	orch   *orchestrate.Orchestrator
	cache  *cache.Manager
	log    *logrus.Entry
	router *chi.Mux
}

// NewServer builds the router around orch and its cache
func NewServer(appCfg *config.AppConfig, orch *orchestrate.Orchestrator, log *logrus.Entry) *Server {
	s := &Server{
		appCfg: appCfg,
		orch:   orch,
		cache:  orch.Cache(),
		log:    log.WithField("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/crawl", s.handleCrawl)
		r.Get("/cache-info", s.handleCacheInfo)
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/media", s.handleListMedia)
			r.Get("/media/{mediaID}", s.handleGetMedia)
			r.Get("/status", s.handleStatus)
			r.Post("/clear", s.handleClear)
		})
	})

	r.Get("/media/{id}/{filename}", s.handleMediaFile)
	r.Get("/thumbnail/{id}/{filename}", s.handleThumbnailFile)

	s.router = r
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe removes expired sessions, serves on the configured address
// until ctx is cancelled, then shuts down gracefully and removes every
// remaining session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	expiry := s.appCfg.CacheExpiryDuration()
	s.log.Infof("Startup cleanup removed %d expired sessions", s.cache.CleanExpiredSessions(expiry))

	srv := &http.Server{
		Addr:              s.appCfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Listening on http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		s.log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serveErr = fmt.Errorf("server shutdown: %w", err)
		}
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}

	s.log.Infof("Shutdown cleanup removed %d sessions", s.cache.CleanExpiredSessions(0))
	return serveErr
}
