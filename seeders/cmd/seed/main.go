package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"user-management/internal/repositories"
	"user-management/pkg/config"
	"user-management/pkg/database/migrations"
	"user-management/pkg/database/postgresql"
	applogger "user-management/pkg/logger"
	"user-management/seeders"
)

func main() {
	runMigrate := flag.Bool("migrate", true, "Apply database migrations before seeding")
	runAdmin := flag.Bool("admin", true, "Create or promote the admin user from SEED_ADMIN_EMAIL / SEED_ADMIN_PASSWORD")
	flag.Parse()

	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log).Named("seeder")
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	dbPool, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Error("Database connection failed", zap.Error(err))
		os.Exit(1)
	}
	defer dbPool.Close()

	if *runMigrate {
		if err := migrations.Up(ctx, dbPool, logger); err != nil {
			logger.Error("Migrations failed", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("Migrations applied")
	}

	if *runAdmin {
		userRepo := repositories.NewUserRepository(dbPool, logger)
		txManager := repositories.NewTxManager(dbPool)
		if err := seeders.SeedAdmin(ctx, txManager, userRepo, cfg.Seeder, logger); err != nil {
			logger.Error("Admin seeding failed", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("Seeding finished")
}
