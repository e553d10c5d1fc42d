package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mocktest/engine/internal/config"
	"github.com/mocktest/engine/internal/handler"
	"github.com/mocktest/engine/internal/middleware"
	"github.com/mocktest/engine/internal/response"
)

// catalogMaxAge is how long clients and proxies may cache GET /tests.
const catalogMaxAge = 60

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Tests    *handler.TestHandler
	Attempts *handler.AttemptHandler
	Results  *handler.ResultsHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background goroutines owned by middleware.
func SetupRouter(
	ctx context.Context,
	auth middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID, "X-Idempotent-Replay", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli(middleware.BrotliOptions{
		Quality:  cfg.BrotliQuality,
		MinBytes: cfg.BrotliMinBytes,
		ExemptRoutes: []string{
			"/health",
			"/api/v1/tests/:test_id/draft",
			"/api/v1/tests/:test_id/state",
		},
	}))

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)

	// ─── 1. Public catalog ─────────────────────────────────────────────
	api := router.Group("/api/v1")
	api.GET("/tests", middleware.CacheControl(catalogMaxAge), handlers.Tests.List)

	// ─── 2. Test taking (user JWT) ─────────────────────────────────────
	tests := api.Group("/tests/:test_id")
	tests.Use(
		middleware.RequireUserJWT(auth),
		limiter.Middleware(),
		middleware.NoStore(),
	)
	{
		tests.GET("/start", handlers.Attempts.Start)
		tests.POST("/submit", handlers.Attempts.Submit)
		tests.GET("/state", handlers.Attempts.State)
		tests.PUT("/draft", handlers.Attempts.SaveDraft)
		tests.GET("/attempt", handlers.Attempts.Attempt)

		// Owner check happens in the results service.
		tests.GET("/results", handlers.Results.Results)
		tests.GET("/results/stream", handlers.Results.ResultsSSE)
	}

	// ─── 3. Countdown stream (token in query) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(auth))
	{
		ws.GET("/tests/:test_id/stream", handlers.WS.AttemptStream)
	}

	return router
}
