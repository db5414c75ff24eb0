// Файл: app/main.go

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"user-management/internal/routes"
	"user-management/pkg/config"
	"user-management/pkg/database/migrations"
	"user-management/pkg/database/postgresql"
	"user-management/pkg/eventbus"
	applogger "user-management/pkg/logger"
	"user-management/pkg/service"
)

func main() {
	cfg := config.New()

	logger := applogger.NewLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()
	loggers := applogger.NewLoggers(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. База данных и миграции
	dbPool, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}
	defer dbPool.Close()

	if err := migrations.Up(ctx, dbPool, logger); err != nil {
		logger.Fatal("Migrations failed", zap.Error(err))
	}

	// 2. Redis: без него работаем, просто каждый запрос идёт в БД
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, user lookup cache disabled",
			zap.String("address", cfg.Redis.Address), zap.Error(err))
		_ = redisClient.Close()
		redisClient = nil
	} else {
		defer func() { _ = redisClient.Close() }()
	}

	// 3. Сервисы
	if cfg.JWT.UsesDefaultSecret() {
		logger.Warn("JWT_SECRET_KEY is not set, tokens are signed with the public default secret")
	}
	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, loggers.Auth)
	bus := eventbus.New(logger.Named("eventbus"))

	// 4. HTTP
	e := routes.NewServer(cfg.Server, logger)
	routes.InitRouter(e, dbPool, redisClient, jwtSvc, bus, loggers, cfg)

	go func() {
		logger.Info("Server started", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	if err := bus.Wait(shutdownCtx); err != nil {
		logger.Warn("Event listeners did not finish in time", zap.Error(err))
	}
	logger.Info("Server stopped")
}
