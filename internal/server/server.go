// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jgoulah/gridinsight/internal/config"
	"github.com/jgoulah/gridinsight/internal/engine"
)

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to the engine
type Server struct {
	engine    *engine.Engine
	cfg       config.ServerConfig
	analytics config.AnalyticsConfig
	logger    *slog.Logger
	metrics   *metrics
	registry  *prometheus.Registry
	router    chi.Router
}

// New builds the router. Each server owns its metrics registry.
func New(eng *engine.Engine, cfg *config.Config, logger *slog.Logger) *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		engine:    eng,
		cfg:       cfg.Server,
		analytics: cfg.Analytics,
		logger:    logger.With(slog.String("component", "server")),
		metrics:   newMetrics(reg),
		registry:  reg,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors)

	r.Post("/upload", s.handleUpload)
	r.Get("/total_usage", s.handleTotalUsage)
	r.Get("/cost_trends", s.handleCostTrends)
	r.Get("/peak_hours", s.handlePeakHours)
	r.Get("/anomalies", s.handleAnomalies)
	r.Get("/hourly_usage_trend", s.handleHourlyUsageTrend)
	r.Get("/weekday_vs_weekend", s.handleWeekdayVsWeekend)
	r.Get("/high_cost_days", s.handleHighCostDays)
	r.Get("/forecast_usage", s.handleForecastUsage)
	r.Get("/report", s.handleReport)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight requests
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// cors allows any origin, method and header
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if origin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.duration.WithLabelValues(route).Observe(elapsed.Seconds())
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", elapsed),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
