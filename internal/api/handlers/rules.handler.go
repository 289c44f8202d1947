package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/internal/services"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

type RulesHandler struct {
	alerting   *services.AlertingService
	escalation *services.EscalationManager
	logger     logger.Logger
}

func NewRulesHandler(alerting *services.AlertingService, escalation *services.EscalationManager, log logger.Logger) *RulesHandler {
	return &RulesHandler{
		alerting:   alerting,
		escalation: escalation,
		logger:     log,
	}
}

// GET /api/v1/rules
func (h *RulesHandler) GetRules(c *gin.Context) {
	rules := h.alerting.GetAlertRules()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"count": len(rules),
			"rules": rules,
		},
	})
}

// GET /api/v1/rules/:id
func (h *RulesHandler) GetRule(c *gin.Context) {
	id := c.Param("id")
	rule, ok := h.alerting.GetAlertRule(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "rule not found: " + id,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   rule,
	})
}

// PUT /api/v1/rules - Register or replace a rule
func (h *RulesHandler) UpsertRule(c *gin.Context) {
	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	if err := h.alerting.AddAlertRule(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("alert rule upserted via API", "rule", rule.ID)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   rule,
	})
}

// DELETE /api/v1/rules/:id
func (h *RulesHandler) DeleteRule(c *gin.Context) {
	id := c.Param("id")
	if !h.alerting.RemoveAlertRule(id) {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "rule not found: " + id,
		})
		return
	}

	h.logger.Info("alert rule removed via API", "rule", id)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GET /api/v1/escalation-policies
func (h *RulesHandler) GetEscalationPolicies(c *gin.Context) {
	policies := h.escalation.GetEscalationPolicies()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"count":    len(policies),
			"policies": policies,
		},
	})
}

// GET /api/v1/groups - Active correlation groups
func (h *RulesHandler) GetActiveGroups(c *gin.Context) {
	groups := h.alerting.GetActiveGroups()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"count":  len(groups),
			"groups": groups,
		},
	})
}
