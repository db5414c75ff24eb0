package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"user-management/internal/authz"
	"user-management/internal/repositories"
	apperrors "user-management/pkg/errors"
)

const (
	userLookupKeyPrefix     = "auth:user:email:"
	userLookupVersionPrefix = "auth:user:ver:"
)

// UserLookupInterface отдаёт проекцию {email, role}, нужную для авторизации запроса.
type UserLookupInterface interface {
	FindIdentityByEmail(ctx context.Context, email string) (*authz.Identity, error)
	Invalidate(ctx context.Context, email string)
}

type UserLookup struct {
	userRepo  repositories.UserRepositoryInterface
	cacheRepo repositories.CacheRepositoryInterface
	ttl       time.Duration
	logger    *zap.Logger
}

// NewUserLookup: cacheRepo может быть nil, тогда каждый запрос идёт в БД.
func NewUserLookup(
	userRepo repositories.UserRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	ttl time.Duration,
	logger *zap.Logger,
) UserLookupInterface {
	return &UserLookup{
		userRepo:  userRepo,
		cacheRepo: cacheRepo,
		ttl:       ttl,
		logger:    logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userLookupKey(email string) string {
	return userLookupKeyPrefix + normalizeEmail(email)
}

func userLookupVersionKey(email string) string {
	return userLookupVersionPrefix + normalizeEmail(email)
}

// FindIdentityByEmail возвращает apperrors.ErrNotFound, если пользователя нет.
// Ошибки кеша только логируются.
//
// Версия читается до похода в БД, а запись в кеш проходит только при неизменной
// версии: Invalidate, случившийся между чтением из БД и записью, её отменяет.
func (l *UserLookup) FindIdentityByEmail(ctx context.Context, email string) (*authz.Identity, error) {
	key := userLookupKey(email)
	versionKey := userLookupVersionKey(email)
	cacheEnabled := l.cacheRepo != nil && l.ttl > 0

	var (
		version string
		canFill bool
	)
	if cacheEnabled {
		if identity, ok := l.fromCache(ctx, key, email); ok {
			return identity, nil
		}
		version, canFill = l.readVersion(ctx, versionKey)
	}

	user, err := l.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user lookup by email: %w", err)
	}

	identity := user.Identity()

	if canFill {
		l.fill(ctx, versionKey, version, key, identity)
	}

	return identity, nil
}

func (l *UserLookup) fromCache(ctx context.Context, key, email string) (*authz.Identity, bool) {
	cached, err := l.cacheRepo.Get(ctx, key)
	switch {
	case err == nil:
		var identity authz.Identity
		if jsonErr := json.Unmarshal([]byte(cached), &identity); jsonErr == nil &&
			identity.Role.Valid() &&
			identity.Email != "" &&
			normalizeEmail(identity.Email) == normalizeEmail(email) {
			return &identity, true
		}
		l.logger.Warn("UserLookup: corrupted cache entry, dropping", zap.String("key", key))
		l.drop(ctx, key)
	case !errors.Is(err, repositories.ErrCacheMiss):
		l.logger.Warn("UserLookup: cache read failed", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

// readVersion: если версию прочитать не удалось, кеш не заполняем.
func (l *UserLookup) readVersion(ctx context.Context, versionKey string) (string, bool) {
	version, err := l.cacheRepo.Get(ctx, versionKey)
	switch {
	case err == nil:
		return version, true
	case errors.Is(err, repositories.ErrCacheMiss):
		return "", true
	default:
		l.logger.Warn("UserLookup: version read failed", zap.String("key", versionKey), zap.Error(err))
		return "", false
	}
}

func (l *UserLookup) fill(ctx context.Context, versionKey, version, key string, identity *authz.Identity) {
	payload, err := json.Marshal(identity)
	if err != nil {
		return
	}
	stored, err := l.cacheRepo.SetIfVersion(ctx, versionKey, version, key, payload, l.ttl)
	if err != nil {
		l.logger.Warn("UserLookup: cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if !stored {
		l.logger.Debug("UserLookup: entry invalidated during lookup, not caching", zap.String("key", key))
	}
}

// Invalidate сначала поднимает версию, потом удаляет запись,
// чтобы параллельный FindIdentityByEmail не вернул в кеш устаревшие данные.
func (l *UserLookup) Invalidate(ctx context.Context, email string) {
	if l.cacheRepo == nil || email == "" {
		return
	}
	versionKey := userLookupVersionKey(email)
	if _, err := l.cacheRepo.Incr(ctx, versionKey); err != nil {
		l.logger.Warn("UserLookup: version bump failed", zap.String("key", versionKey), zap.Error(err))
	}
	l.drop(ctx, userLookupKey(email))
}

func (l *UserLookup) drop(ctx context.Context, key string) {
	if err := l.cacheRepo.Del(ctx, key); err != nil {
		l.logger.Warn("UserLookup: cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
