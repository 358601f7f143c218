package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/secwatch/internal/services"
	"github.com/huangang/secwatch/pkg/logger"
	"github.com/huangang/secwatch/pkg/response"
	"gorm.io/gorm"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemLogHandler(db *gorm.DB) *SystemLogHandler {
	return &SystemLogHandler{
		systemLogService: services.NewSystemLogService(db),
	}
}

// List returns a page of system logs, newest first
// GET /api/system-logs
func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.systemLogService.List(&req)
	if err != nil {
		logger.Error().Err(err).Msg("List system logs failed")
		response.ServerError(c, "Failed to list system logs")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GET /api/system-logs/modules
func (h *SystemLogHandler) GetModules(c *gin.Context) {
	modules, err := h.systemLogService.GetModules()
	if err != nil {
		logger.Error().Err(err).Msg("List system log modules failed")
		response.ServerError(c, "Failed to list system log modules")
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": modules})
}
