package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/router"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
	"github.com/stemsi/exstem-assessment/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("instance", cfg.InstanceID).
		Int("duration_seconds", cfg.Test.DurationSeconds).
		Msg("Starting assessment server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	auditRepo := repository.NewAnswerAuditRepository(pool)
	sessionCache := repository.NewSessionCache(rdb, cfg.InstanceID)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, sessionCache)
	userService := service.NewUserService(userRepo, resultRepo, authService)
	questionService := service.NewQuestionService(questionRepo)
	assessmentService := service.NewAssessmentService(questionRepo, resultRepo, sessionCache, cfg.Test, log)
	resultService := service.NewResultService(resultRepo, sessionCache, assessmentService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, userService),
		Test:      handler.NewTestHandler(assessmentService, resultService),
		Question:  handler.NewQuestionHandler(questionService),
		Result:    handler.NewResultHandler(resultService),
		Dashboard: handler.NewDashboardHandler(resultService),
		WS:        handler.NewWSHandler(assessmentService, sessionCache, log, cfg.AllowedOrigins),
		System:    handler.NewSystemHandler(pool, rdb, assessmentService, cfg.InstanceID),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	timerCtx, timerCancel := context.WithCancel(context.Background())
	auditCtx, auditCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	timerWorker := worker.NewTimerWorker(assessmentService, cfg.Test.TickInterval, log)
	auditWorker := worker.NewAnswerAuditWorker(sessionCache, auditRepo, log)

	workers.Add(2)
	go func() {
		defer workers.Done()
		timerWorker.Start(timerCtx)
	}()
	go func() {
		defer workers.Done()
		auditWorker.Start(auditCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown does not touch hijacked connections; close test streams
	// so their clients reconnect to another instance.
	srv.RegisterOnShutdown(handlers.WS.Shutdown)

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the clock, then hand running tests to the other instances.
	timerCancel()
	assessmentService.Shutdown(shutdownCtx)

	// 3. Stop the audit worker and wait for its queue to drain.
	auditCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
