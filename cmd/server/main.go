// Package main runs the analysis engine HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdrlens/internal/analysis"
	"cdrlens/internal/config"
	"cdrlens/internal/enrich"
	"cdrlens/internal/logger"
	"cdrlens/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	addr := flag.String("addr", "", "Listen address (default from config)")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg := config.DefaultConfig()

	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		cfg = loaded
	}

	if addr != "" {
		cfg.Server.Addr = addr
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log.Info("🚀 Starting analysis server", "config", cfg.String())

	var lookup enrich.CountryLookup

	if cfg.Enrichment.GeoIPDB != "" {
		db, err := enrich.OpenGeoIP(cfg.Enrichment.GeoIPDB)
		if err != nil {
			log.Warn("geoip database unavailable, enrichment disabled", "path", cfg.Enrichment.GeoIPDB, "error", err)
		} else {
			defer db.Close()

			lookup = db
		}
	}

	orch, err := analysis.FromConfig(cfg, lookup, log)
	if err != nil {
		return fmt.Errorf("invalid analysis configuration: %w", err)
	}

	srv := server.New(server.Options{
		Orchestrator:   orch,
		Logger:         log,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		DefaultFormat:  cfg.Report.Format,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)

	go func() {
		log.Info("listening", "addr", cfg.Server.Addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}

		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info("✅ Server stopped")

	return nil
}
