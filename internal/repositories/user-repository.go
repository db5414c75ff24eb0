package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"user-management/internal/authz"
	"user-management/internal/entities"
	apperrors "user-management/pkg/errors"
	"user-management/pkg/types"
)

const (
	userTable  = "users"
	userFields = "id, nickname, email, first_name, last_name, bio, profile_picture_url, github_profile_url, linkedin_profile_url, " +
		"role, hashed_password, email_verified, is_locked, last_login_at, created_at, updated_at"

	pgUniqueViolation       = "23505"
	userEmailConstraint     = "users_email_key"
	userNicknameConstraint  = "users_nickname_key"
	userSearchPatternFormat = "%%%s%%"
)

type UserRepositoryInterface interface {
	GetUsers(ctx context.Context, filter types.Filter) ([]entities.User, uint64, error)
	FindUserByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*entities.User, error)
	FindByEmail(ctx context.Context, email string) (*entities.User, error)
	FindByEmailTx(ctx context.Context, tx pgx.Tx, email string) (*entities.User, error)
	CreateUser(ctx context.Context, tx pgx.Tx, user *entities.User) (*entities.User, error)
	UpdateUser(ctx context.Context, tx pgx.Tx, user *entities.User) (*entities.User, error)
	DeleteUser(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type UserRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewUserRepository(storage *pgxpool.Pool, logger *zap.Logger) UserRepositoryInterface {
	return &UserRepository{storage: storage, logger: logger}
}

// getQuerier - возвращает транзакцию или пул соединений
func (r *UserRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var (
		user entities.User
		role string
	)
	err := row.Scan(
		&user.ID, &user.Nickname, &user.Email,
		&user.FirstName, &user.LastName, &user.Bio,
		&user.ProfilePictureURL, &user.GithubProfileURL, &user.LinkedinProfileURL,
		&role, &user.HashedPassword, &user.EmailVerified, &user.IsLocked,
		&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.Role = authz.Role(role)
	return &user, nil
}

// mapUniqueViolation различает дубликаты email и nickname по имени ограничения.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case userEmailConstraint:
		return apperrors.ErrEmailExists
	case userNicknameConstraint:
		return apperrors.ErrNicknameExists
	default:
		return fmt.Errorf("%w: %s", apperrors.ErrBadRequest, pgErr.ConstraintName)
	}
}

func (r *UserRepository) findOne(ctx context.Context, querier Querier, where sq.Sqlizer) (*entities.User, error) {
	query, args, err := psql().Select(userFields).From(userTable).Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user select: %w", err)
	}
	return scanUser(querier.QueryRow(ctx, query, args...))
}

func applyUserFilter(b sq.SelectBuilder, filter types.Filter) sq.SelectBuilder {
	if filter.Search != "" {
		pattern := fmt.Sprintf(userSearchPatternFormat, filter.Search)
		b = b.Where(sq.Or{
			sq.ILike{"email": pattern},
			sq.ILike{"nickname": pattern},
			sq.ILike{"first_name": pattern},
			sq.ILike{"last_name": pattern},
		})
	}
	if filter.Role != "" {
		b = b.Where(sq.Eq{"role": filter.Role})
	}
	return b
}

// GetUsers - список пользователей, новые первыми. Limit == 0 означает без пагинации.
func (r *UserRepository) GetUsers(ctx context.Context, filter types.Filter) ([]entities.User, uint64, error) {
	countQuery, countArgs, err := applyUserFilter(psql().Select("COUNT(id)").From(userTable), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build user count: %w", err)
	}

	var totalCount uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	if totalCount == 0 {
		return []entities.User{}, 0, nil
	}

	selectBuilder := applyUserFilter(psql().Select(userFields).From(userTable), filter).
		OrderBy("created_at DESC", "id")
	if filter.Limit > 0 {
		selectBuilder = selectBuilder.Limit(filter.Limit).Offset(filter.Offset)
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build user list: %w", err)
	}
	r.logger.Debug("GetUsers", zap.String("query", query), zap.Any("args", args))

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]entities.User, 0, filter.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, totalCount, rows.Err()
}

func (r *UserRepository) FindUserByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*entities.User, error) {
	return r.findOne(ctx, r.getQuerier(tx), sq.Eq{"id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.FindByEmailTx(ctx, nil, email)
}

// FindByEmailTx сравнивает email без учёта регистра, как и уникальный индекс.
func (r *UserRepository) FindByEmailTx(ctx context.Context, tx pgx.Tx, email string) (*entities.User, error) {
	return r.findOne(ctx, r.getQuerier(tx), sq.Expr("LOWER(email) = LOWER(?)", email))
}

func (r *UserRepository) CreateUser(ctx context.Context, tx pgx.Tx, user *entities.User) (*entities.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query, args, err := psql().Insert(userTable).
		Columns("id", "nickname", "email", "first_name", "last_name", "bio",
			"profile_picture_url", "github_profile_url", "linkedin_profile_url",
			"role", "hashed_password", "email_verified", "is_locked", "created_at", "updated_at").
		Values(user.ID, user.Nickname, user.Email, user.FirstName, user.LastName, user.Bio,
			user.ProfilePictureURL, user.GithubProfileURL, user.LinkedinProfileURL,
			string(user.Role), user.HashedPassword, user.EmailVerified, user.IsLocked, sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix("RETURNING " + userFields).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user insert: %w", err)
	}

	created, err := scanUser(r.getQuerier(tx).QueryRow(ctx, query, args...))
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// UpdateUser перезаписывает изменяемые поля профиля; hashed_password и created_at не трогает.
func (r *UserRepository) UpdateUser(ctx context.Context, tx pgx.Tx, user *entities.User) (*entities.User, error) {
	query, args, err := psql().Update(userTable).
		Set("nickname", user.Nickname).
		Set("email", user.Email).
		Set("first_name", user.FirstName).
		Set("last_name", user.LastName).
		Set("bio", user.Bio).
		Set("profile_picture_url", user.ProfilePictureURL).
		Set("github_profile_url", user.GithubProfileURL).
		Set("linkedin_profile_url", user.LinkedinProfileURL).
		Set("role", string(user.Role)).
		Set("email_verified", user.EmailVerified).
		Set("is_locked", user.IsLocked).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": user.ID}).
		Suffix("RETURNING " + userFields).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user update: %w", err)
	}

	updated, err := scanUser(r.getQuerier(tx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		if mapped := mapUniqueViolation(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return updated, nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query, args, err := psql().Delete(userTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user delete: %w", err)
	}

	result, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
