package main

import (
	"fmt"

	"github.com/huangang/secwatch/internal/config"
	"github.com/huangang/secwatch/internal/metrics"
	"github.com/huangang/secwatch/internal/middleware"
	"github.com/huangang/secwatch/internal/models"
	"github.com/huangang/secwatch/internal/services"
	"github.com/huangang/secwatch/internal/utils"
	"github.com/huangang/secwatch/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// appServices holds the long-lived dependencies shared by the routes.
type appServices struct {
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	dashboard   *services.DashboardService
	retention   *services.LogRetention
	rateLimiter *middleware.RateLimiter
}

// bootstrap connects the database, runs migrations and starts the retention job.
func bootstrap(cfg *config.Config) (*appServices, error) {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	services.InitSystemLogger(models.GetDB())

	app := &appServices{}
	if cfg.Metrics.Enabled {
		app.registry = prometheus.NewRegistry()
		app.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if sqlDB, err := models.GetDB().DB(); err == nil {
			app.registry.MustRegister(collectors.NewDBStatsCollector(sqlDB, cfg.Database.Driver))
		}
		app.metrics = metrics.New(app.registry)
	}

	app.dashboard = services.NewDashboardService(services.NewGormDashboardStore(models.GetDB()), app.metrics)

	retention, err := services.NewLogRetention(models.GetDB(), cfg.SystemLog.RetentionDays, cfg.SystemLog.CleanupSchedule, app.metrics)
	if err != nil {
		return nil, err
	}
	retention.Start()
	app.retention = retention

	logger.Info().
		Str("driver", cfg.Database.Driver).
		Bool("auth", cfg.Auth.Enabled).
		Bool("metrics", cfg.Metrics.Enabled).
		Msg("Application bootstrapped")
	return app, nil
}

// shutdown stops background jobs and releases the database.
func (a *appServices) shutdown() {
	if a.retention != nil {
		a.retention.Stop()
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
	if err := models.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close database")
	}
	logger.Info().Msg("All schedulers stopped")
}
