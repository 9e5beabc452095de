package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Test      *handler.TestHandler
	Question  *handler.QuestionHandler
	Result    *handler.ResultHandler
	Dashboard *handler.DashboardHandler
	WS        *handler.WSHandler
	System    *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work started by middlewares.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log.With().Str("component", "http").Logger()))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	authLimiter := middleware.NewRateLimiter(ctx, cfg.AuthRateLimit, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)

		auth.POST("/logout", middleware.RequireAnyJWT(authService), handlers.Auth.Logout)
		auth.GET("/me",
			middleware.RequireAnyJWT(authService),
			middleware.CheckSingleDeviceSession(authService),
			handlers.Auth.Me,
		)
	}

	// ─── 2. Test Group (JWT + Single Device) ───────────────────────────
	testAPI := router.Group("/api/v1/test")
	testAPI.Use(
		middleware.RequireUserJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
		middleware.NoStore(),
	)
	{
		testAPI.POST("/start", handlers.Test.Start)
		testAPI.GET("/state", handlers.Test.State)
		testAPI.PUT("/answer", handlers.Test.SelectAnswer)
		testAPI.PUT("/mark", handlers.Test.ToggleMark)
		testAPI.PUT("/goto", handlers.Test.GoTo)
		testAPI.POST("/next", handlers.Test.Next)
		testAPI.POST("/previous", handlers.Test.Previous)
		testAPI.POST("/submit", handlers.Test.Submit)
		testAPI.GET("/result", handlers.Test.Result)
	}

	// ─── 3. WebSocket Group (User WS Auth) ─────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireUserWSAuth(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		ws.GET("/test/stream", handlers.WS.TestStream)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService), middleware.NoStore())
	{
		adminAPI.GET("/dashboard", handlers.Dashboard.GetDashboardData)
		adminAPI.GET("/system", handlers.System.Runtime)

		adminAPI.GET("/questions", handlers.Question.ListQuestions)
		adminAPI.GET("/questions/subjects", handlers.Question.ListSubjects)
		adminAPI.GET("/questions/:id", handlers.Question.GetQuestion)
		adminAPI.POST("/questions", handlers.Question.CreateQuestion)
		adminAPI.PUT("/questions/:id", handlers.Question.UpdateQuestion)
		adminAPI.DELETE("/questions/:id", handlers.Question.DeleteQuestion)

		adminAPI.GET("/results", handlers.Result.ListResults)
		adminAPI.GET("/results/:id", handlers.Result.GetResult)
	}

	return router
}
