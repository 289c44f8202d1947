package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platformbuilds/mirador-alerting/internal/api/handlers"
	"github.com/platformbuilds/mirador-alerting/internal/api/middleware"
	"github.com/platformbuilds/mirador-alerting/internal/api/websocket"
	"github.com/platformbuilds/mirador-alerting/internal/config"
	"github.com/platformbuilds/mirador-alerting/internal/services"
	"github.com/platformbuilds/mirador-alerting/pkg/cache"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	cache      cache.Valkey
	alerting   *services.AlertingService
	escalation *services.EscalationManager
	hub        *websocket.Hub
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	valkey cache.Valkey,
	alerting *services.AlertingService,
	escalation *services.EscalationManager,
	hub *websocket.Hub,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:     cfg,
		logger:     log,
		cache:      valkey,
		alerting:   alerting,
		escalation: escalation,
		hub:        hub,
		router:     gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.MetricsMiddleware())

	// Prometheus metrics endpoint
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.cache, s.logger)
	alertHandler := handlers.NewAlertHandler(s.alerting, s.logger)
	rulesHandler := handlers.NewRulesHandler(s.alerting, s.escalation, s.logger)
	dashboardHandler := handlers.NewDashboardHandler(s.alerting, s.logger)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1")

	v1.POST("/metrics", alertHandler.IngestMetric)

	v1.GET("/alerts", alertHandler.GetActiveAlerts)
	v1.GET("/alerts/history", alertHandler.GetAlertHistory)
	v1.POST("/alerts/search", alertHandler.SearchAlerts)
	v1.POST("/alerts/:id/acknowledge", alertHandler.AcknowledgeAlert)
	v1.POST("/alerts/:id/resolve", alertHandler.ResolveAlert)
	v1.POST("/alerts/:id/suppress", alertHandler.SuppressAlert)

	v1.GET("/rules", rulesHandler.GetRules)
	v1.PUT("/rules", rulesHandler.UpsertRule)
	v1.GET("/rules/:id", rulesHandler.GetRule)
	v1.DELETE("/rules/:id", rulesHandler.DeleteRule)

	v1.GET("/escalation-policies", rulesHandler.GetEscalationPolicies)
	v1.GET("/groups", rulesHandler.GetActiveGroups)

	v1.GET("/dashboard", dashboardHandler.GetDashboard)

	// Live alert stream for dashboards
	if s.hub != nil {
		s.router.GET("/ws/alerts", func(c *gin.Context) {
			s.hub.ServeWS(c.Writer, c.Request)
		})
	}
}

// Start runs the HTTP server until the context is cancelled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("alerting REST API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down REST API server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
