package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/waypointcpa/taskpool-backend/internal/handlers"
	"github.com/waypointcpa/taskpool-backend/internal/middleware"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	UserHandler    *handlers.UserHandler
	TaskHandler    *handlers.TaskHandler
	ClientHandler  *handlers.ClientHandler
	RuleHandler    *handlers.RuleHandler
	InboundHandler *handlers.InboundHandler
	EventsHandler  *handlers.EventsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("taskpool-backend"))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// User
	protected.GET("/user", cfg.UserHandler.GetMe)
	// Inbound ingestion
	protected.POST("/inbound", cfg.InboundHandler.Ingest)
	protected.POST("/inbound/batch", cfg.InboundHandler.IngestBatch)
	// Tasks
	protected.GET("/tasks", cfg.TaskHandler.List)
	protected.POST("/tasks", cfg.TaskHandler.Create)
	protected.GET("/tasks/:id", cfg.TaskHandler.Get)
	protected.PATCH("/tasks/:id/status", cfg.TaskHandler.UpdateStatus)
	protected.POST("/tasks/:id/claim", cfg.TaskHandler.Claim)
	protected.POST("/tasks/:id/release", cfg.TaskHandler.Release)
	protected.GET("/tasks/:id/activity", cfg.TaskHandler.Activity)
	// Clients
	protected.GET("/clients", cfg.ClientHandler.List)
	protected.POST("/clients", cfg.ClientHandler.Create)
	protected.POST("/matches/:id/verify", cfg.ClientHandler.VerifyMatch)
	// Rules
	protected.GET("/events", cfg.EventsHandler.Stream)

	protected.GET("/rules", cfg.RuleHandler.List)
	protected.POST("/rules/:id/override", cfg.RuleHandler.RecordOverride)

	// ===============
	// || Admin     ||
	// ===============
	admin := protected.Group("/")
	admin.Use(cfg.AuthMiddleware.RequireRole(types.RoleAdmin))
	admin.POST("/tasks/:id/assign", cfg.TaskHandler.Assign)
	admin.DELETE("/tasks/:id", cfg.TaskHandler.Delete)
	admin.POST("/rules", cfg.RuleHandler.Create)
	admin.PUT("/rules/:id", cfg.RuleHandler.Update)
	admin.DELETE("/rules/:id", cfg.RuleHandler.Delete)

	return router
}
