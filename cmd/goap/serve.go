// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/bjpl/meal-assistant-sub008/pkg/extensions"
	"github.com/bjpl/meal-assistant-sub008/pkg/logging"
	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/server"
	"github.com/bjpl/meal-assistant-sub008/services/goap/session"
	bstore "github.com/bjpl/meal-assistant-sub008/services/goap/storage/badger"
	"github.com/bjpl/meal-assistant-sub008/services/goap/telemetry"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr      string
		ephemeral bool
		watch     bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if ephemeral {
				a.cfg.Storage.InMemory = true
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Catalog.Watch = watch
			}
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep sessions in memory only")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the catalog file when it changes")
	return cmd
}

// runServe wires telemetry, session storage, the catalog watcher and the
// HTTP server, then blocks until SIGINT or SIGTERM.
func (a *app) runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := a.logger.Slog()
	cfg := a.cfg

	if a.logger.Level() == logging.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: server.ServiceVersion,
		Environment:    cfg.Telemetry.Environment,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	storeCfg := cfg.Storage
	storeCfg.Logger = logger
	db, err := bstore.Open(storeCfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer db.Close()

	sessions, err := session.NewStore(db, logger)
	if err != nil {
		return err
	}

	audit := extensions.NewMemoryAuditLogger(extensions.DefaultAuditCapacity, logger)
	defer func() {
		if err := audit.Flush(context.Background()); err != nil {
			logger.Warn("Audit flush failed", slog.String("error", err.Error()))
		}
	}()

	srv, err := server.New(a.bundle, server.Options{
		Server:      cfg.Server,
		Planner:     cfg.Planner,
		Sessions:    sessions,
		Audit:       audit,
		ServiceName: cfg.Telemetry.ServiceName,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		reload := func(b *catalog.Bundle) {
			srv.SetBundle(b)
			_ = audit.Log(ctx, extensions.AuditEvent{
				EventType:    "catalog.reload",
				Action:       "reload",
				ResourceType: "catalog",
				ResourceID:   b.Name,
				Outcome:      extensions.OutcomeSuccess,
				Metadata:     map[string]any{"actions": b.Catalog.Len(), "path": cfg.Catalog.Path},
			})
		}
		w, err := catalog.NewWatcher(cfg.Catalog.Path, reload, &catalog.WatcherOptions{
			DebounceWindow: cfg.Catalog.Debounce,
			Logger:         logger,
		})
		if err != nil {
			return fmt.Errorf("watch catalog: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch catalog: %w", err)
		}
		defer w.Stop()
	}

	logger.Info("GOAP server configured",
		slog.String("catalog", a.bundle.Name),
		slog.Int("actions", a.bundle.Catalog.Len()),
		slog.Bool("persistent_sessions", !db.InMemory()),
		slog.String("trace_exporter", cfg.Telemetry.TraceExporter),
	)
	return srv.Run(ctx)
}
