// Package http exposes the portal's services over a gin router.
// Handlers translate requests to service calls and map errors to statuses.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/esunday5/staff-portal/internal/application/service"
	"github.com/esunday5/staff-portal/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthFunc reports component health for GET /health
type HealthFunc func(ctx context.Context) (healthy bool, details interface{})

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Mode            string
	MaxUploadSize   int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Mode:            gin.ReleaseMode,
		MaxUploadSize:   10 << 20,
	}
}

// Services are the application services the handlers call
type Services struct {
	Directory     service.DirectoryService
	Requests      service.RequestService
	Notifications service.NotificationService
	Audit         service.AuditService
	Workflow      workflow.Engine
	Health        HealthFunc
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadSize

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		fields := []interface{}{
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if user := currentUser(c); user != nil {
			fields = append(fields, "user_id", user.ID)
		}
		s.logger.Info("HTTP request", fields...)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.config.MaxUploadSize, s.logger)

	s.router.GET("/health", h.HealthCheck)
	s.router.POST("/login", h.Login)

	api := s.router.Group("/", basicAuth(s.services.Directory, s.logger))
	{
		// Request forms
		api.POST("/cash_advance", h.CreateCashAdvance)
		api.POST("/opex_capex_retirement", h.CreateOpexCapexRetirement)
		api.POST("/petty_cash_advance", h.CreatePettyCashAdvance)
		api.POST("/petty_cash_retirement", h.CreatePettyCashRetirement)
		api.POST("/stationery_request", h.CreateStationeryRequest)

		// Review
		api.GET("/review_requests", h.ListReviewRequests)
		api.PUT("/review_requests/:id", h.ReviewRequest)

		// Requests
		api.GET("/requests", h.ListRequests)
		api.GET("/requests/:id", h.GetRequest)
		api.GET("/requests/:id/history", h.GetRequestHistory)
		api.POST("/requests/:id/resubmit", h.ResubmitRequest)

		// Notifications
		api.GET("/notifications", h.ListNotifications)
		api.PUT("/notifications/:id/read", h.MarkNotificationRead)
		api.GET("/notification_settings", h.GetNotificationSettings)
		api.PUT("/notification_settings", h.UpdateNotificationSettings)

		// Audit
		api.GET("/audit_logs", h.ListAuditLogs)
		api.GET("/audit_logs/export", h.ExportAuditLogs)

		// Directory
		api.GET("/branches", h.ListBranches)
		api.GET("/branches/:id/departments", h.ListDepartments)
		api.POST("/users", h.CreateUser)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
