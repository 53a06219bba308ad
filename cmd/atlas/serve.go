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
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianAtlas/pkg/logging"
	"github.com/AleutianAI/AleutianAtlas/services/topology"
	"github.com/AleutianAI/AleutianAtlas/services/topology/layout"
	storagebadger "github.com/AleutianAI/AleutianAtlas/services/topology/storage/badger"
	"github.com/AleutianAI/AleutianAtlas/services/topology/store"
	"github.com/AleutianAI/AleutianAtlas/services/topology/telemetry"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if clusterID != "" {
		cfg.ClusterID = clusterID
		cfg.Topology.ClusterID = clusterID
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if debugMode {
		cfg.Debug = true
		cfg.Topology.VerifyLayouts = true
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: "topology",
		JSON:    !cfg.Debug,
	})
	defer logger.Close()
	log := logger.Slog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:   "atlas-topology",
		OTLPEndpoint:  cfg.OTLPEndpoint,
		StdoutTraces:  cfg.StdoutTraces,
		StdoutMetrics: cfg.StdoutMetrics,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown", "error", err)
		}
	}()

	badgerCfg := storagebadger.DefaultConfig(expandHome(cfg.DataDir))
	badgerCfg.Logger = log
	if demoMode {
		badgerCfg = storagebadger.InMemoryConfig()
	}
	db, err := storagebadger.Open(badgerCfg)
	if err != nil {
		return fmt.Errorf("opening layout cache store: %w", err)
	}
	defer db.Close()

	st := store.NewMemoryStore()
	if demoMode {
		store.LoadDemoFixture(st)
		log.Info("demo mode: serving fixture cluster", "cluster_id", cfg.Topology.ClusterID)
	}
	defer st.Close()

	svc, err := topology.NewService(cfg.Topology, st,
		topology.WithLogger(log),
		topology.WithTelemetry(tel),
		topology.WithLayoutCache(layout.NewBadgerCache(db.DB, cfg.LayoutCacheTTL, log)),
	)
	if err != nil {
		return err
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("atlas-topology"))

	v1 := router.Group("/v1")
	topology.RegisterRoutes(v1, topology.NewHandlers(svc))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(tel.Registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("starting atlas topology server",
		"port", cfg.Port,
		"cluster_id", cfg.Topology.ClusterID,
		"demo", demoMode,
		"version", version)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := svc.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
