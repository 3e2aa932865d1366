package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cogbot/internal/adapters/discord"
	"cogbot/internal/application"
	"cogbot/internal/config"
	"cogbot/internal/core/app"
	"cogbot/internal/core/container"
	"cogbot/internal/domain/entities"
	"cogbot/internal/infrastructure/database"
	"cogbot/internal/infrastructure/i18n"
	"cogbot/internal/infrastructure/logging"
	"cogbot/internal/infrastructure/memory"
	"cogbot/internal/infrastructure/metrics"
	"cogbot/internal/ports/output"
)

const (
	idDatabase     = "storage.database"
	eventBuffer    = 256
	connectTimeout = 15 * time.Second
)

// registrars returns the bindings of the whole bot, in registration order.
func registrars(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) []app.Registrar {
	return []app.Registrar{
		coreBindings(cfg, logger, m),
		storageBindings(cfg, logger),
		serviceBindings(cfg, logger),
		platformBindings(cfg, logger),
	}
}

func coreBindings(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) app.Registrar {
	return func(c *container.Container) error {
		if err := c.RegisterInstance(app.IDConfig, output.ConfigSource(cfg.Source())); err != nil {
			return err
		}
		if err := c.RegisterInstance(app.IDLogger, logger); err != nil {
			return err
		}
		if err := c.RegisterInstance(app.IDMetrics, m); err != nil {
			return err
		}
		if err := c.Register(app.IDTranslator, container.Singleton, func([]any) (any, error) {
			return output.Translator(i18n.NewTranslator(cfg.Locale, logger)), nil
		}); err != nil {
			return err
		}
		return c.Register(app.IDErrorSink, container.Singleton, func([]any) (any, error) {
			return logging.NewPipeline(logger, cfg.ErrorBuffer, m), nil
		})
	}
}

func storageBindings(cfg *config.Config, logger *zap.Logger) app.Registrar {
	return func(c *container.Container) error {
		if cfg.StorageDriver == "memory" {
			logger.Warn("using in-memory storage, settings are lost on restart")
			return c.Register(application.IDSettingsRepository, container.Singleton, func([]any) (any, error) {
				return output.Repository[entities.GuildSetting](
					memory.NewRepository[entities.GuildSetting](application.SettingsCollection)), nil
			})
		}

		err := c.Register(idDatabase, container.Singleton, func([]any) (any, error) {
			if cfg.MigrationsEnabled {
				if err := database.RunMigrations(cfg.DatabaseURL, logger); err != nil {
					return nil, err
				}
			}
			ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()
			return database.Open(ctx, cfg.DatabaseURL, logger)
		})
		if err != nil {
			return err
		}
		return c.Register(application.IDSettingsRepository, container.Singleton, func(args []any) (any, error) {
			db, err := container.Arg[*database.DB](args, 0)
			if err != nil {
				return nil, err
			}
			return output.Repository[entities.GuildSetting](
				database.NewDocumentRepository[entities.GuildSetting](db.DB, application.SettingsCollection, cfg.DBTimeout)), nil
		}, idDatabase)
	}
}

func serviceBindings(cfg *config.Config, logger *zap.Logger) app.Registrar {
	return func(c *container.Container) error {
		bindings := []struct {
			id      string
			factory container.Factory
			deps    []string
		}{
			{application.IDCache, func(args []any) (any, error) {
				m, err := container.Arg[*metrics.Metrics](args, 0)
				if err != nil {
					return nil, err
				}
				cache := application.NewCacheService[string, entities.GuildSetting](cfg.CacheSize, cfg.CacheTTL)
				err = m.ObserveCache(application.SettingsCollection, func() (uint64, uint64, int) {
					st := cache.Stats()
					return st.Hits, st.Misses, st.Size
				})
				return cache, err
			}, []string{app.IDMetrics}},
			{application.IDSecurity, func([]any) (any, error) {
				return application.NewSecurityService(cfg.EncryptionSecret)
			}, nil},
			{application.IDValidator, func([]any) (any, error) {
				return application.NewInputValidator(), nil
			}, nil},
			{application.IDGuildSettings, newGuildSettings, []string{
				application.IDSettingsRepository, application.IDCache, application.IDSecurity, application.IDValidator,
			}},
			{application.IDWelcome, newWelcome, []string{app.IDConfig, app.IDConnection, app.IDTranslator}},
			{application.IDGuard, func(args []any) (any, error) {
				src, err := container.Arg[output.ConfigSource](args, 0)
				if err != nil {
					return nil, err
				}
				conn, err := container.Arg[output.Connection](args, 1)
				if err != nil {
					return nil, err
				}
				return application.NewGuardService(src, conn, logger), nil
			}, []string{app.IDConfig, app.IDConnection}},
		}
		for _, b := range bindings {
			if err := c.Register(b.id, container.Singleton, b.factory, b.deps...); err != nil {
				return err
			}
		}
		return nil
	}
}

func newGuildSettings(args []any) (any, error) {
	repo, err := container.Arg[output.Repository[entities.GuildSetting]](args, 0)
	if err != nil {
		return nil, err
	}
	cache, err := container.Arg[*application.CacheService[string, entities.GuildSetting]](args, 1)
	if err != nil {
		return nil, err
	}
	security, err := container.Arg[*application.SecurityService](args, 2)
	if err != nil {
		return nil, err
	}
	validator, err := container.Arg[*application.InputValidator](args, 3)
	if err != nil {
		return nil, err
	}
	return application.NewGuildSettingsService(repo, cache, security, validator), nil
}

func newWelcome(args []any) (any, error) {
	src, err := container.Arg[output.ConfigSource](args, 0)
	if err != nil {
		return nil, err
	}
	conn, err := container.Arg[output.Connection](args, 1)
	if err != nil {
		return nil, err
	}
	translator, err := container.Arg[output.Translator](args, 2)
	if err != nil {
		return nil, err
	}
	return application.NewWelcomeService(src, conn, translator), nil
}

func platformBindings(cfg *config.Config, logger *zap.Logger) app.Registrar {
	return func(c *container.Container) error {
		return c.Register(app.IDConnection, container.Singleton, func(args []any) (any, error) {
			sink, err := container.Arg[output.ErrorSink](args, 0)
			if err != nil {
				return nil, err
			}
			conn, err := discord.NewConnection(cfg.Token, cfg.Presence, sink, logger, eventBuffer)
			if err != nil {
				return nil, err
			}
			return output.Connection(conn), nil
		}, app.IDErrorSink)
	}
}
