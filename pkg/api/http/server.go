package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/nodecomp/internal/application/drivers"
	"github.com/aescanero/nodecomp/internal/application/orchestrator"
	"github.com/aescanero/nodecomp/internal/application/workers"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP API server
type Server struct {
	router       *gin.Engine
	server       *http.Server
	orchestrator *orchestrator.Manager
	registry     *drivers.Registry
	health       *workers.HealthMonitor
	logger       *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port         int
	Orchestrator *orchestrator.Manager
	Registry     *drivers.Registry
	// Health is optional; without it the worker pool is not reported
	Health *workers.HealthMonitor
	Logger *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	s := &Server{
		router:       router,
		orchestrator: cfg.Orchestrator,
		registry:     cfg.Registry,
		health:       cfg.Health,
		logger:       cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.Use(AuthMiddleware())
	{
		v1.POST("/profiles", handleCreate(s, s.orchestrator.CreateProfile))
		v1.GET("/profiles", handleList(s, s.orchestrator.ListProfiles))
		v1.GET("/profiles/:id", handleGet(s, s.orchestrator.GetProfile))
		v1.PUT("/profiles/:id", handleUpdate(s, s.orchestrator.UpdateProfile))
		v1.DELETE("/profiles/:id", handleDelete(s, s.orchestrator.DeleteProfile))

		v1.POST("/nodes", handleCreate(s, s.orchestrator.CreateNode))
		v1.GET("/nodes", handleList(s, s.orchestrator.ListNodes))
		v1.GET("/nodes/:id", handleGet(s, s.orchestrator.GetNode))
		v1.PUT("/nodes/:id", handleUpdate(s, s.orchestrator.UpdateNode))
		v1.DELETE("/nodes/:id", handleDelete(s, s.orchestrator.DeleteNode))

		v1.POST("/specs", handleCreate(s, s.orchestrator.CreateSpec))
		v1.GET("/specs", handleList(s, s.orchestrator.ListSpecs))
		v1.GET("/specs/:id", handleGet(s, s.orchestrator.GetSpec))
		v1.PUT("/specs/:id", handleUpdate(s, s.orchestrator.UpdateSpec))
		v1.DELETE("/specs/:id", handleDelete(s, s.orchestrator.DeleteSpec))

		v1.POST("/instances", handleCreate(s, s.orchestrator.CreateInstance))
		v1.GET("/instances", handleList(s, s.orchestrator.ListInstances))
		v1.GET("/instances/:id", handleGet(s, s.orchestrator.GetInstance))
		v1.PUT("/instances/:id", handleUpdate(s, s.orchestrator.UpdateInstance))
		v1.DELETE("/instances/:id", handleDelete(s, s.orchestrator.DeleteInstance))

		v1.GET("/drivers", s.handleListDrivers)
	}
}

// SetupWebSocket adds the instance event stream to the server
func (s *Server) SetupWebSocket(handler interface{}) {
	if wsHandler, ok := handler.(interface {
		HandleInstanceStream(*gin.Context)
	}); ok {
		s.router.GET("/api/v1/instances/:id/ws", AuthMiddleware(), wsHandler.HandleInstanceStream)
	}
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
