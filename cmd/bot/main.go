package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cogbot/internal/cogs"
	"cogbot/internal/config"
	"cogbot/internal/core/app"
	"cogbot/internal/infrastructure/health"
	"cogbot/internal/infrastructure/logging"
	"cogbot/internal/infrastructure/metrics"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	catalog, err := cogs.Catalog()
	if err != nil {
		logger.Error("invalid cog catalog", zap.Error(err))
		return 1
	}

	m := metrics.New()
	bot := app.New(app.Options{
		Registrars:   registrars(cfg, logger, m),
		Catalog:      catalog,
		DisabledCogs: cfg.DisabledCogs,
		Logger:       logger,
		Observer:     m,
	})

	var probe *health.Server
	if cfg.HealthAddr != "" {
		probe = health.NewServer(cfg.HealthAddr, bot, m.Handler(), logger)
		if err := probe.Start(); err != nil {
			logger.Error("health server not started", zap.Error(err))
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Start(ctx); err != nil {
		logger.Error("bot failed to start", zap.Error(err))
		shutdownProbe(probe, cfg, logger)
		return 1
	}
	logger.Info("bot running", zap.Strings("cogs", bot.Loader().Loaded()))

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case <-bot.Wait():
	}

	code := 0
	if err := bot.Err(); err != nil {
		logger.Error("bot failed", zap.Error(err))
		code = 1
	}

	if !bot.State().Terminal() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := bot.Stop(shutdownCtx); err != nil {
			logger.Error("shutdown incomplete", zap.Error(err))
			code = 1
		}
	}
	shutdownProbe(probe, cfg, logger)
	return code
}

func shutdownProbe(probe *health.Server, cfg *config.Config, logger *zap.Logger) {
	if probe == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := probe.Shutdown(ctx); err != nil {
		logger.Warn("health server shutdown", zap.Error(err))
	}
}
