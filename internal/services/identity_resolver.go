package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"user-management/internal/authz"
	apperrors "user-management/pkg/errors"
	"user-management/pkg/service"
)

type IdentityResolverInterface interface {
	Resolve(ctx context.Context, token string) (*authz.Identity, error)
}

// IdentityResolver: токен -> claims -> пользователь в БД -> Identity.
// Любой отказ наружу выглядит одинаково (ErrInvalidCredentials), причина остаётся в логах.
type IdentityResolver struct {
	jwtService service.JWTService
	lookup     UserLookupInterface
	logger     *zap.Logger
}

func NewIdentityResolver(jwtService service.JWTService, lookup UserLookupInterface, logger *zap.Logger) IdentityResolverInterface {
	return &IdentityResolver{
		jwtService: jwtService,
		lookup:     lookup,
		logger:     logger,
	}
}

func (r *IdentityResolver) Resolve(ctx context.Context, token string) (*authz.Identity, error) {
	r.logger.Info("Decoding token")
	claims, err := r.jwtService.ValidateToken(token)
	if err != nil {
		r.logger.Error("Failed to decode token", zap.Error(err))
		return nil, apperrors.ErrInvalidCredentials
	}
	if claims == nil {
		r.logger.Error("Failed to decode token")
		return nil, apperrors.ErrInvalidCredentials
	}

	email := claims.Subject
	if email == "" {
		r.logger.Error("Email extracted from token is empty")
		return nil, apperrors.ErrInvalidCredentials
	}
	r.logger.Info("Token decoded, fetching user", zap.String("email", email))

	identity, err := r.lookup.FindIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			r.logger.Error("No user found for token subject", zap.String("email", email))
		} else {
			r.logger.Error("User lookup failed", zap.String("email", email), zap.Error(err))
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	r.logger.Info("User resolved", zap.String("email", identity.Email), zap.String("role", identity.Role.String()))
	return &authz.Identity{Email: identity.Email, Role: identity.Role}, nil
}
