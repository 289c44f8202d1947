package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-alerting/pkg/cache"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

const serviceVersion = "v1.2.0"

type HealthHandler struct {
	cache  cache.Valkey
	logger logger.Logger
}

func NewHealthHandler(c cache.Valkey, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		cache:  c,
		logger: log,
	}
}

// GET /health - Quick health check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "mirador-alerting",
		"version":   serviceVersion,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready - Readiness check, probes the cache backend when configured
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	resp := gin.H{
		"service":   "mirador-alerting",
		"version":   serviceVersion,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if h.cache != nil {
		probeKey := fmt.Sprintf("ready:%d", time.Now().UnixNano())
		if err := h.cache.Set(ctx, probeKey, "1", time.Second); err != nil {
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			resp["error"] = err.Error()
		}
	}

	resp["status"] = status
	c.JSON(httpStatus, resp)
}
