// Package main is the entry point for the cyclus-sim simulation kernel.
// It loads configuration, wires the Context (clock, tables, recorder,
// RNG), starts the read-only status/introspection server, and runs the
// time driver for the configured horizon.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/config"
	cyclusctx "github.com/cyclus-sim/cyclus/internal/context"
	"github.com/cyclus-sim/cyclus/internal/recorder"
	"github.com/cyclus-sim/cyclus/internal/server"
	"github.com/cyclus-sim/cyclus/internal/timedriver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	logger.Info().Msg("starting cyclus-sim")

	simID := uuid.New()
	cc := cyclusctx.New(cfg.Seed, simID, cfg.DumpCount, logger)

	memBackend := recorder.NewMemoryBackend("memory")
	cc.Recorder.AddBackend(memBackend)

	var wsBackend *recorder.WebSocketBackend
	if cfg.WebSocketPush {
		wsBackend = recorder.NewWebSocketBackend(logger)
		cc.Recorder.AddBackend(wsBackend)
	}

	if cfg.SQLitePath != "" {
		sqliteBackend, err := recorder.NewSQLiteBackend(cfg.SQLitePath, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open sqlite backend")
		}
		cc.Recorder.AddBackend(sqliteBackend)
	}

	if cfg.CsvDir != "" {
		csvBackend, err := recorder.NewCsvBack(cfg.CsvDir, false, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open csv backend")
		}
		cc.Recorder.AddBackend(csvBackend)
	}

	// Seed a single top-level Region so the driver has a non-empty
	// containment tree to operate on; a production run would instead
	// populate the tree from the (out-of-scope) input-file loader.
	root := agent.NewRegion(cc.Agents, "root", "region", -1)
	if err := cc.Agents.BuildRoot(root); err != nil {
		logger.Fatal().Err(err).Msg("failed to build root region")
	}

	driver := timedriver.New(cc, timedriver.Options{})

	srv := server.New(server.Config{
		Log:  logger,
		Ctx:  cc,
		Port: cfg.HTTPPort,
		WS:   wsBackend,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	done := make(chan error, 1)
	go func() { done <- driver.Run(cfg.Steps) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-done:
		if err != nil {
			logger.Error().Err(err).Msg("simulation run ended with error")
		} else {
			logger.Info().Msg("simulation run complete")
		}
	case <-quit:
		logger.Info().Msg("received interrupt; stopping")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
}
