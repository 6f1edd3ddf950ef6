// Package server exposes the dashboard JSON API over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"tldwatch/internal/monitoring"
	"tldwatch/internal/notification"
	"tldwatch/internal/service"
)

// Options tune the HTTP server.
type Options struct {
	Addr           string
	AdminPassword  string
	AllowedOrigins []string
}

// Server serves the dashboard API.
type Server struct {
	opts     Options
	data     *service.DataService
	notifier *notification.Evaluator
	monitor  *monitoring.Aggregator
	logger   zerolog.Logger
}

// New constructs a Server.
func New(opts Options, data *service.DataService, notifier *notification.Evaluator, monitor *monitoring.Aggregator, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	return &Server{
		opts:     opts,
		data:     data,
		notifier: notifier,
		monitor:  monitor,
		logger:   logger.With().Str("component", "http_server").Logger(),
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/price-changes", s.handlePriceChanges)
		r.Get("/search", s.handleSearch)
		r.Get("/history/{tld}", s.handleHistory)
		r.Get("/analytics/{tld}", s.handleAnalytics)
		r.Get("/compare", s.handleCompare)
		r.Get("/tlds", s.handleTLDs)

		r.Post("/alerts", s.handleSetAlert)
		r.Post("/alerts/check/{userID}", s.handleCheckAlerts)

		r.Get("/notifications", s.handleNotifications)
		r.Delete("/notifications", s.handleClearNotifications)
		r.Get("/preferences/{userID}", s.handleGetPreferences)
		r.Put("/preferences/{userID}", s.handleSetPreferences)

		r.Get("/metrics", s.handleMetrics)
		r.Get("/errors", s.handleErrors)
		r.Get("/health", s.handleHealth)

		r.Post("/admin/login", s.handleAdminLogin)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}
