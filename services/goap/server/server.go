// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the planner over HTTP.
//
// Every endpoint reads the catalog bundle once per request from an atomic
// pointer, so a hot reload (SetBundle) never tears a request in half.
// Planning failures are part of the response body; only malformed input
// and storage failures produce error statuses.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/bjpl/meal-assistant-sub008/pkg/extensions"
	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/config"
	"github.com/bjpl/meal-assistant-sub008/services/goap/planner"
	"github.com/bjpl/meal-assistant-sub008/services/goap/policy"
	"github.com/bjpl/meal-assistant-sub008/services/goap/session"
	"github.com/bjpl/meal-assistant-sub008/services/goap/telemetry"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// Options configures a Server.
type Options struct {
	// Server holds the listen address, timeouts, batch limit and search
	// rate limit.
	Server config.ServerConfig

	// Planner is the base search configuration. Requests may override
	// reopen, heuristic weight and node cap.
	Planner planner.Config

	// Sessions enables the /sessions endpoints. Nil disables them.
	Sessions *session.Store

	// Policy audits plan commands. Nil loads the embedded command policy.
	Policy *policy.Engine

	// Audit records session mutations. Nil discards them.
	Audit extensions.AuditLogger

	// ServiceName names the otelgin spans. Defaults to "goap".
	ServiceName string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the GOAP HTTP API.
//
// Thread Safety: Safe for concurrent use.
type Server struct {
	bundle   atomic.Pointer[catalog.Bundle]
	opts     Options
	sessions *session.Store
	policy   *policy.Engine
	audit    extensions.AuditLogger
	logger   *slog.Logger
	router   *gin.Engine

	// limiter throttles search endpoints; nil when unlimited.
	limiter *rate.Limiter
}

// New builds the router for bundle.
//
// Outputs:
//
//	*Server - The server. Call Run to listen, or use Handler in tests.
//	error - Non-nil if bundle is nil.
func New(bundle *catalog.Bundle, opts Options) (*Server, error) {
	if bundle == nil || bundle.Catalog == nil {
		return nil, errors.New("catalog bundle must not be nil")
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "goap"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	audit := opts.Audit
	if audit == nil {
		audit = extensions.DefaultOptions().AuditLogger
	}
	pol := opts.Policy
	if pol == nil {
		var err error
		if pol, err = policy.Default(); err != nil {
			return nil, fmt.Errorf("load command policy: %w", err)
		}
	}

	s := &Server{
		opts:     opts,
		sessions: opts.Sessions,
		policy:   pol,
		audit:    audit,
		logger:   logger.With(slog.String("component", "http")),
	}
	s.bundle.Store(bundle)
	if r := opts.Server.SearchRate; r > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(r), max(opts.Server.SearchBurst, 1))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(opts.ServiceName))
	router.Use(requestID())
	router.Use(httpMetrics())

	v1 := router.Group("/v1")
	s.registerRoutes(v1)
	s.router = router

	return s, nil
}

// registerRoutes registers all /v1/goap/* endpoints.
//
// Endpoints:
//
//	GET    /v1/goap/health
//	GET    /v1/goap/metrics
//	GET    /v1/goap/catalog
//	POST   /v1/goap/plan
//	POST   /v1/goap/plan/batch
//	POST   /v1/goap/validate
//	POST   /v1/goap/execute
//	POST   /v1/goap/summary
//	POST   /v1/goap/graph
//	POST   /v1/goap/audit
//	GET    /v1/goap/sessions
//	POST   /v1/goap/sessions
//	GET    /v1/goap/sessions/:id
//	PUT    /v1/goap/sessions/:id/state
//	POST   /v1/goap/sessions/:id/replan
//	GET    /v1/goap/sessions/:id/history
//	DELETE /v1/goap/sessions/:id
func (s *Server) registerRoutes(rg *gin.RouterGroup) {
	goap := rg.Group("/goap")
	{
		goap.GET("/health", s.HandleHealth)
		goap.GET("/metrics", gin.WrapH(metricsHandler()))
		goap.GET("/catalog", s.HandleCatalog)

		throttle := searchLimit(s.limiter)
		goap.POST("/plan", throttle, s.HandlePlan)
		goap.POST("/plan/batch", throttle, s.HandlePlanBatch)
		goap.POST("/validate", s.HandleValidate)
		goap.POST("/execute", s.HandleExecute)
		goap.POST("/summary", s.HandleSummary)
		goap.POST("/graph", s.HandleGraph)
		goap.POST("/audit", s.HandleAudit)

		sessions := goap.Group("/sessions")
		{
			sessions.GET("", s.HandleListSessions)
			sessions.POST("", s.HandleCreateSession)
			sessions.GET("/:id", s.HandleGetSession)
			sessions.PUT("/:id/state", s.HandleUpdateSessionState)
			sessions.POST("/:id/replan", throttle, s.HandleReplanSession)
			sessions.GET("/:id/history", s.HandleSessionHistory)
			sessions.DELETE("/:id", s.HandleDeleteSession)
		}
	}
}

// metricsHandler prefers the telemetry exporter's handler, which also
// serves the otel planner instruments.
func metricsHandler() http.Handler {
	if h := telemetry.MetricsHandler(); h != nil {
		return h
	}
	return promhttp.Handler()
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Bundle returns the catalog bundle currently served.
func (s *Server) Bundle() *catalog.Bundle {
	return s.bundle.Load()
}

// SetBundle swaps the served catalog. It matches catalog.ReloadHandler so
// it can be passed straight to catalog.NewWatcher.
func (s *Server) SetBundle(b *catalog.Bundle) {
	if b == nil || b.Catalog == nil {
		return
	}
	s.bundle.Store(b)
	s.logger.Info("catalog swapped",
		slog.String("catalog", b.Name),
		slog.Int("actions", b.Catalog.Len()),
	)
}

// Run listens on the configured address until ctx is cancelled, then
// shuts down gracefully within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.Server.ReadTimeout,
		WriteTimeout: s.opts.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting GOAP server", slog.String("address", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down GOAP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
