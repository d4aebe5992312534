package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"medbot/internal/api"
	"medbot/internal/config"
	"medbot/internal/logger"
	"medbot/internal/metrics"
	"medbot/internal/ratelimit"
	"medbot/internal/redis"
	"medbot/internal/service/ai"
	"medbot/internal/service/assistant"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chatModel, err := ai.NewChatModel(ctx, cfg.Provider)
	if err != nil {
		zl.Fatal("init chat model", zap.String("provider", cfg.Provider.Name), zap.Error(err))
	}
	modelName := cfg.Provider.Model
	if modelName == "" {
		modelName = ai.DefaultModel(cfg.Provider.Name)
	}
	zl.Info("chat model ready", zap.String("provider", cfg.Provider.Name), zap.String("model", modelName))

	var (
		limiter ratelimit.Limiter
		rdb     *redis.Client
	)
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			zl.Fatal("create redis client", zap.Error(err))
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedis(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	} else {
		limiter = ratelimit.NewMemory(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	handler := api.NewHandler(
		assistant.New(chatModel),
		limiter,
		metrics.New(),
		zl,
		cfg.BasicConfig.MaxDuration,
	)
	if rdb != nil {
		handler.AddReadinessCheck("redis", rdb.Ping)
	}
	router, err := api.NewRouter(handler, cfg.BasicConfig.TrustedProxies)
	if err != nil {
		zl.Fatal("build router", zap.Error(err))
	}
	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("graceful shutdown failed", zap.Error(err))
	}
}
