package http

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arbiter-oj/arbiter/internal/delivery/http/middleware"
	"github.com/arbiter-oj/arbiter/internal/usecase"
)

const maxBodyBytes = 2 << 20 // 2 MB: source code plus testcases

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	RunUC           *usecase.RunRequestUsecase
	SubmitUC        *usecase.SubmitCodeUsecase
	GetUC           *usecase.GetSubmissionUsecase
	Logger          *zap.Logger
	RateLimitPerMin int
	DBPool          *pgxpool.Pool
	Redis           *goredis.Client
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps *RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.BodySizeLimit(maxBodyBytes))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		healthHandler := NewHealthHandler(deps.DBPool, deps.Redis, deps.Logger)
		v1.GET("/health", healthHandler.Health)

		langHandler := NewLanguageHandler()
		v1.GET("/languages", langHandler.List)

		limited := v1.Group("")
		limited.Use(middleware.RateLimiter(deps.RateLimitPerMin))

		runHandler := NewRunHandler(deps.RunUC, deps.Logger)
		limited.POST("/run", runHandler.Run)

		subHandler := NewSubmissionHandler(deps.SubmitUC, deps.GetUC, deps.Logger)
		limited.POST("/submissions", subHandler.Submit)
		limited.GET("/submissions/:id", subHandler.GetByID)

		// WebSocket for real-time updates
		wsHandler := NewWebSocketHandler(deps.GetUC, deps.Logger)
		v1.GET("/submissions/:id/stream", wsHandler.Stream)
	}

	return router
}
