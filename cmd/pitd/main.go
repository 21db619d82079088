// Command pitd serves the source adapters and the gate over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Checker-Finance/pitdata/internal/api"
	"github.com/Checker-Finance/pitdata/internal/app"
	"github.com/Checker-Finance/pitdata/internal/jobs"
	"github.com/Checker-Finance/pitdata/pkg/config"
	"github.com/Checker-Finance/pitdata/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()
	cfg.ServiceName = "pitd"

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [pitd]...")

	// --- Adapters, fiscal resolver, gate and audit sinks ---
	rt, err := app.Build(ctx, cfg, logger.L(), app.Options{Service: cfg.ServiceName, Audit: true})
	if err != nil {
		logg.Fatalw("failed to build runtime", "error", err)
	}

	// --- Fiscal cache warmer ---
	var warmer *jobs.FiscalWarmer
	if len(cfg.FiscalWarmTickers) > 0 {
		var pub jobs.EventPublisher
		if rt.Publisher != nil {
			pub = rt.Publisher
		}
		warmer = jobs.NewFiscalWarmer(logger.L(), rt.Resolver, pub, cfg.FiscalWarmTickers, cfg.FiscalWarmInterval)
		go warmer.Start(ctx)
	}

	// --- Fiber HTTP Server ---
	server := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	var sink api.VerdictPublisher
	if len(rt.Sinks) > 0 {
		sink = rt.Sinks
	}
	handler := api.NewHandler(logger.L(), rt.Registry, rt.Validator, sink, cfg.HTTPWriteTimeout)
	api.RegisterRoutes(server, handler, rt.HealthChecks())

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := server.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[pitd] running",
		"env", cfg.Env,
		"nats", cfg.NATSURL != "",
		"audit_sinks", len(rt.Sinks),
		"warm_tickers", len(cfg.FiscalWarmTickers))

	<-ctx.Done()
	logg.Info("shutting down [pitd]...")

	if warmer != nil {
		warmer.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := rt.Close(); err != nil {
		logg.Warnw("runtime.close_failed", "error", err)
	}
}
