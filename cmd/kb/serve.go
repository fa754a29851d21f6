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
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/conceptbase/services/kb/api"
	"github.com/AleutianAI/conceptbase/services/kb/document"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
	"github.com/AleutianAI/conceptbase/services/kb/telemetry"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	var (
		address string
		doc     string
		watch   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a knowledge base over HTTP",
		Long: `Serves the /v1/kb API and Prometheus metrics at /metrics.

With --watch the document is reloaded whenever it changes on disk; a
document that fails to load leaves the previous knowledge base in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if address != "" {
				cfg.Server.Address = address
			}
			if doc != "" {
				cfg.Server.Document = doc
			}
			if cmd.Flags().Changed("watch") {
				cfg.Server.Watch = watch
			}
			opts.cfg = cfg
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Listen address (host:port)")
	cmd.Flags().StringVar(&doc, "document", "", "Document to load at startup")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the document when it changes")
	return cmd
}

// runServe runs the HTTP server until ctx is cancelled or SIGINT/SIGTERM
// arrives, then shuts down within the configured timeout.
func runServe(ctx context.Context, opts *cliOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.cfg
	logger := opts.logger

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("conceptbase.api"))
	if err != nil {
		return err
	}

	kbOpts := opts.kbOptions()
	svcOpts := []api.ServiceOption{
		api.WithKBOptions(kbOpts...),
		api.WithMetrics(metrics),
		api.WithServiceLogger(logger),
	}

	var kb *ontology.KnowledgeBase
	if path := cfg.Server.Document; path != "" {
		var sum document.Summary
		kb, sum, err = opts.load(ctx, path)
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, api.WithSource(path))
		logger.Info("document loaded",
			slog.String("path", path),
			slog.Int("concepts", sum.Concepts),
			slog.Int("classified", sum.Classified),
		)
	} else {
		kb = ontology.New(kbOpts...)
	}

	svc, err := api.NewService(kb, svcOpts...)
	if err != nil {
		return err
	}

	if cfg.Server.Watch && cfg.Server.Document != "" {
		watcher, err := newReloadWatcher(ctx, svc, cfg.Server.Document, logger)
		if err != nil {
			return err
		}
		defer watcher.Stop()
	}

	router := api.NewRouter(cfg.Telemetry.ServiceName, api.NewHandlers(svc), metrics)
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting knowledge base server", slog.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down knowledge base server")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newReloadWatcher reloads svc from path after every debounced write.
func newReloadWatcher(ctx context.Context, svc *api.Service, path string, logger *slog.Logger) (*document.Watcher, error) {
	wopts := document.DefaultWatcherOptions()
	wopts.Logger = logger
	watcher, err := document.NewWatcher(path, func(ch document.Change) {
		if ch.Op == document.OpRemove {
			logger.Warn("document removed, keeping current knowledge base", slog.String("path", ch.Path))
			return
		}
		// Errors are logged by Reload; the previous state stays live.
		_, _ = svc.Reload(ctx, path)
	}, &wopts)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if err := watcher.Start(ctx); err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	logger.Info("watching document", slog.String("path", path))
	return watcher, nil
}
