package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/delivery/http/middleware"
	"github.com/Harsh-BH/qsweep/internal/usecase"
)

const maxBodyBytes = 1 << 20 // 1 MB

// RouterDeps holds everything the router needs to build its handlers.
type RouterDeps struct {
	SubmitUC        *usecase.SubmitSweepUsecase
	GetUC           *usecase.GetSweepUsecase
	HealthChecks    map[string]HealthCheck
	DefaultTarget   string
	RateLimitPerMin int
	Logger          *zap.Logger
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(deps.HealthChecks, logger)
		v1.GET("/health", healthHandler.Health)

		targetHandler := NewTargetHandler(deps.DefaultTarget)
		v1.GET("/targets", targetHandler.List)

		sweepHandler := NewSweepHandler(deps.SubmitUC, deps.GetUC, logger)
		wsHandler := NewWebSocketHandler(deps.GetUC, logger)

		sweeps := v1.Group("/sweeps")
		sweeps.Use(middleware.RateLimiter(deps.RateLimitPerMin))
		sweeps.POST("", middleware.BodySizeLimit(maxBodyBytes), sweepHandler.Submit)
		sweeps.GET("/:id", sweepHandler.GetByID)
		sweeps.GET("/:id/stream", wsHandler.Stream)
	}

	return router
}
