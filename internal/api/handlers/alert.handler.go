package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/internal/services"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

type AlertHandler struct {
	alerting *services.AlertingService
	logger   logger.Logger
}

func NewAlertHandler(alerting *services.AlertingService, log logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerting: alerting,
		logger:   log,
	}
}

type metricSampleRequest struct {
	MetricName string            `json:"metric_name" binding:"required"`
	Value      float64           `json:"value"`
	Timestamp  time.Time         `json:"timestamp"`
	Tags       map[string]string `json:"tags"`
}

// POST /api/v1/metrics - Evaluate a metric sample against all rules
func (h *AlertHandler) IngestMetric(c *gin.Context) {
	var req metricSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	created := h.alerting.EvaluateMetric(c.Request.Context(), req.MetricName, req.Value, req.Timestamp, req.Tags)

	alerts := make([]models.AlertData, 0, len(created))
	for _, alert := range created {
		alerts = append(alerts, alert.Snapshot())
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"alerts_created": len(alerts),
			"alerts":         alerts,
		},
	})
}

// GET /api/v1/alerts - Active alerts, optionally filtered by severity and tags
func (h *AlertHandler) GetActiveAlerts(c *gin.Context) {
	severity := models.AlertSeverity(c.Query("severity"))
	if severity != "" && !severity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "unknown severity: " + string(severity),
		})
		return
	}

	alerts := h.alerting.GetActiveAlerts(severity, c.QueryMap("tags"))
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"count":  len(alerts),
			"alerts": alerts,
		},
	})
}

type alertActionRequest struct {
	User string `json:"user"`
}

// POST /api/v1/alerts/:id/acknowledge
func (h *AlertHandler) AcknowledgeAlert(c *gin.Context) {
	var req alertActionRequest
	_ = c.ShouldBindJSON(&req)

	id := c.Param("id")
	if !h.alerting.AcknowledgeAlert(id, req.User) {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "alert not found: " + id,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// POST /api/v1/alerts/:id/resolve
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	var req alertActionRequest
	_ = c.ShouldBindJSON(&req)

	id := c.Param("id")
	if !h.alerting.ResolveAlert(id, req.User) {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "alert not found: " + id,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type suppressRequest struct {
	DurationMinutes int    `json:"duration_minutes" binding:"required,gt=0"`
	User            string `json:"user"`
}

// POST /api/v1/alerts/:id/suppress
func (h *AlertHandler) SuppressAlert(c *gin.Context) {
	var req suppressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	id := c.Param("id")
	if !h.alerting.SuppressAlert(id, req.DurationMinutes, req.User) {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "alert not found: " + id,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// POST /api/v1/alerts/search
func (h *AlertHandler) SearchAlerts(c *gin.Context) {
	var query models.AlertQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	alerts := h.alerting.SearchAlerts(query)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"count":  len(alerts),
			"alerts": alerts,
		},
	})
}

// GET /api/v1/alerts/history?limit=N
func (h *AlertHandler) GetAlertHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		limit = 0
	}

	history := h.alerting.GetAlertHistory(limit)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"count":  len(history),
			"alerts": history,
		},
	})
}
