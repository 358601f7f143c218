package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/secwatch/internal/config"
	"github.com/huangang/secwatch/internal/handlers"
	"github.com/huangang/secwatch/internal/middleware"
	"github.com/huangang/secwatch/internal/models"
	"github.com/huangang/secwatch/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, app *appServices) {
	r.Use(middleware.RequestID(), logger.GinLogger(), logger.GinRecovery())
	if app.metrics != nil {
		r.Use(app.metrics.GinMiddleware())
	}
	r.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(models.GetDB())
	r.GET("/health", healthHandler.CheckHealth)

	if app.registry != nil {
		r.GET("/metrics", handlers.Metrics(app.registry))
	}

	api := r.Group("/api")
	api.Use(middleware.AuditRejected())
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		app.rateLimiter = limiter
		api.Use(limiter.Middleware())
	}
	if cfg.Auth.Enabled {
		api.Use(middleware.AuthRequired())
	}
	{
		// Dashboard
		dashboardHandler := handlers.NewDashboardHandler(app.dashboard)
		api.GET("/dashboard/stats", dashboardHandler.GetStats)

		// System Logs carry client IPs and user agents
		systemLogHandler := handlers.NewSystemLogHandler(models.GetDB())
		logs := api.Group("/system-logs")
		if cfg.Auth.Enabled {
			logs.Use(middleware.AdminRequired())
		}
		logs.GET("", systemLogHandler.List)
		logs.GET("/modules", systemLogHandler.GetModules)
	}
}
