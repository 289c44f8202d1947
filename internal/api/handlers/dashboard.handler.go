package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-alerting/internal/services"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

type DashboardHandler struct {
	alerting *services.AlertingService
	logger   logger.Logger
}

func NewDashboardHandler(alerting *services.AlertingService, log logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		alerting: alerting,
		logger:   log,
	}
}

// GET /api/v1/dashboard - Aggregated snapshot for UIs, cached briefly
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	data, err := h.alerting.GetDashboardData(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to build dashboard snapshot", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "failed to build dashboard snapshot",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   data,
	})
}
