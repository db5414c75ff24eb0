// Файл: pkg/utils/context_utils.go

package utils

import (
	"context"

	"user-management/internal/authz"
	"user-management/pkg/contextkeys"
	apperrors "user-management/pkg/errors"
)

func WithIdentity(ctx context.Context, identity *authz.Identity) context.Context {
	return context.WithValue(ctx, contextkeys.IdentityKey, identity)
}

func GetIdentityFromContext(ctx context.Context) (*authz.Identity, error) {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(*authz.Identity)
	if !ok || identity == nil {
		return nil, apperrors.ErrIdentityNotFoundInContext
	}
	return identity, nil
}
