package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	v1 "devrelay/cmd/api/router/v1"
	"devrelay/internal/ai"
	"devrelay/internal/config"
	cacheAdapter "devrelay/internal/infrastructure/cache/adapter"
	"devrelay/internal/infrastructure/database"
	queueAdapter "devrelay/internal/infrastructure/queue/adapter"
	"devrelay/internal/infrastructure/realtime"
	"devrelay/internal/middleware"
	"devrelay/internal/pkg/chat/application/pipeline"
	"devrelay/internal/pkg/chat/application/task"
	"devrelay/internal/pkg/chat/application/usecase"
	httpHandler "devrelay/internal/pkg/chat/presentation/http"
	repoAdapter "devrelay/internal/pkg/chat/persistence/repository/adapter"
)

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Message log
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := database.NewPoolFromEnv(connectCtx)
	connectCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()
	logger.Info().Msg("connected to PostgreSQL")

	// History cache; also the broker backing asynq
	cache, err := cacheAdapter.NewRedisAdapter()
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer cache.Close()
	logger.Info().Msg("connected to Redis")

	queueClient, err := queueAdapter.NewAsynqClientFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("queue client init failed")
	}
	defer queueClient.Close()

	queueServer, err := queueAdapter.NewAsynqServer(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("queue server init failed")
	}

	// Generation provider, selected through configuration
	registry := ai.NewRegistry()
	registry.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewGeminiProvider(cfg.GeminiAPIKey, model), nil
	})
	registry.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model), nil
	})

	model := cfg.GeminiModel
	if cfg.AIProvider == "openrouter" {
		model = cfg.OpenRouterModel
	}
	provider, err := registry.Get(ctx, cfg.AIProvider, model)
	if err != nil {
		logger.Fatal().Err(err).Msg("ai provider init failed")
	}

	// Room registry and AI pipeline; the queue server runs in-process so
	// invocation handlers broadcast through the same registry the gateway
	// uses.
	rooms := realtime.NewRegistry()
	defer rooms.Close()

	post := usecase.NewPostMessageUseCase(repoAdapter.NewPgMessageRepository(pool), cache)
	pipe := pipeline.New(post, provider, rooms, queueClient, cfg.AITimeout, logger)
	task.RegisterAIGenerateTask(queueServer, pipe.Process, logger)

	go func() {
		if err := queueServer.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("queue server stopped")
		}
	}()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(logger))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1.RegisterRoutes(r, httpHandler.Deps{
		Pool:         pool,
		Cache:        cache,
		Registry:     rooms,
		Pipeline:     pipe,
		JWTSecret:    []byte(cfg.JWTSecret),
		HistoryLimit: cfg.HistoryLimit,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	cancel() // stops the queue server

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}
