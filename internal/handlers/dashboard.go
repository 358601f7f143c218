package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/secwatch/internal/middleware"
	"github.com/huangang/secwatch/internal/services"
	"github.com/huangang/secwatch/pkg/logger"
	"github.com/huangang/secwatch/pkg/response"
)

// ErrFetchDashboardStats is the only failure text the stats endpoint exposes.
const ErrFetchDashboardStats = "Failed to fetch dashboard stats"

// statsErrorPrefix starts both the console and the persisted failure line.
const statsErrorPrefix = "Dashboard stats error: "

// StatsProvider is satisfied by *services.DashboardService.
type StatsProvider interface {
	GetStats(ctx context.Context) (*services.DashboardResponse, error)
}

type DashboardHandler struct {
	stats StatsProvider
}

func NewDashboardHandler(stats StatsProvider) *DashboardHandler {
	return &DashboardHandler{stats: stats}
}

// GetStats returns dashboard statistics
// GET /api/dashboard/stats
func (h *DashboardHandler) GetStats(c *gin.Context) {
	resp, err := h.stats.GetStats(c.Request.Context())
	if err != nil {
		op := "unknown"
		var rerr *services.RetrievalError
		if errors.As(err, &rerr) {
			op = rerr.Op
		}

		msg := statsErrorPrefix + err.Error()
		logger.Error().Err(err).
			Str("operation", op).
			Str("request_id", middleware.GetRequestID(c)).
			Msg(msg)
		services.LogError("dashboard", "fetch_stats", msg, services.LogMeta{
			RequestID: middleware.GetRequestID(c),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra:     map[string]string{"operation": op},
		})

		response.Error(c, response.NewServerError(ErrFetchDashboardStats, err))
		return
	}

	c.JSON(http.StatusOK, resp)
}
