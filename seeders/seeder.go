package seeders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"user-management/internal/authz"
	"user-management/internal/entities"
	"user-management/internal/repositories"
	"user-management/pkg/config"
	apperrors "user-management/pkg/errors"
	"user-management/pkg/utils"
)

const adminNickname = "admin"

var ErrSeederNotConfigured = errors.New("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD must be set")

// SeedAdmin создаёт администратора или повышает существующего пользователя до ADMIN.
// Повторный запуск ничего не меняет.
func SeedAdmin(
	ctx context.Context,
	txManager repositories.TxManagerInterface,
	userRepo repositories.UserRepositoryInterface,
	cfg config.SeederConfig,
	logger *zap.Logger,
) error {
	email := strings.TrimSpace(cfg.AdminEmail)
	if email == "" || cfg.AdminPassword == "" {
		return ErrSeederNotConfigured
	}
	logger = logger.With(zap.String("email", email))

	return txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		existing, err := userRepo.FindByEmailTx(ctx, tx, email)
		switch {
		case err == nil:
			if existing.Role == authz.RoleAdmin {
				logger.Info("Admin already exists, skipping")
				return nil
			}
			existing.Role = authz.RoleAdmin
			if _, err := userRepo.UpdateUser(ctx, tx, existing); err != nil {
				return fmt.Errorf("failed to promote user to admin: %w", err)
			}
			logger.Info("Existing user promoted to admin")
			return nil
		case !errors.Is(err, apperrors.ErrNotFound):
			return fmt.Errorf("failed to look up admin: %w", err)
		}

		hashed, err := utils.HashPassword(cfg.AdminPassword)
		if err != nil {
			return err
		}

		created, err := userRepo.CreateUser(ctx, tx, &entities.User{
			Nickname:       adminNickname,
			Email:          email,
			Role:           authz.RoleAdmin,
			HashedPassword: hashed,
			EmailVerified:  true,
		})
		if err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}

		logger.Info("Admin created", zap.String("user_id", created.ID.String()))
		return nil
	})
}
