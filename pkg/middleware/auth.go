package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"user-management/internal/authz"
	"user-management/pkg/api"
	apperrors "user-management/pkg/errors"
	"user-management/pkg/utils"
)

// IdentityResolver превращает bearer-токен в identity вызывающего.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*authz.Identity, error)
}

type AuthMiddleware struct {
	resolver IdentityResolver
	logger   *zap.Logger
}

func NewAuthMiddleware(resolver IdentityResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		logger:   logger,
	}
}

// Auth пропускает запрос дальше только с валидным bearer-токеном,
// identity кладётся в контекст запроса.
func (m *AuthMiddleware) Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			m.logger.Warn("AuthMiddleware: empty Authorization header")
			return api.ErrorResponse(c, apperrors.ErrEmptyAuthHeader)
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.logger.Warn("AuthMiddleware: malformed Authorization header")
			return api.ErrorResponse(c, apperrors.ErrInvalidAuthHeader)
		}

		identity, err := m.resolver.Resolve(c.Request().Context(), parts[1])
		if err != nil {
			return api.ErrorResponse(c, err)
		}

		ctx := utils.WithIdentity(c.Request().Context(), identity)
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

// RequireRoles должен стоять после Auth.
func (m *AuthMiddleware) RequireRoles(roles ...authz.Role) echo.MiddlewareFunc {
	allowed := authz.NewRoleSet(roles...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, err := utils.GetIdentityFromContext(c.Request().Context())
			if err != nil {
				m.logger.Error("RequireRoles: no identity in context, Auth middleware missing?")
				return api.ErrorResponse(c, err)
			}

			if _, err := authz.Check(identity, allowed); err != nil {
				m.logger.Warn("RequireRoles: access denied",
					zap.String("email", identity.Email),
					zap.String("role", identity.Role.String()),
					zap.Strings("allowed", allowed.Strings()),
				)
				return api.ErrorResponse(c, err)
			}

			return next(c)
		}
	}
}
