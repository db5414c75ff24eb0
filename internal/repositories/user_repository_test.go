package repositories

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"user-management/internal/authz"
	"user-management/internal/entities"
	"user-management/pkg/database/migrations"
	apperrors "user-management/pkg/errors"
	"user-management/pkg/types"
	"user-management/pkg/utils"
)

var testPool *pgxpool.Pool

// TestMain подключается к тестовой БД из TEST_DATABASE_URL, либо при TEST_USE_CONTAINERS=1
// поднимает postgres в контейнере, и накатывает миграции.
// Без обеих переменных интеграционные тесты пропускаются.
func TestMain(m *testing.M) {
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	var container *postgres.PostgresContainer
	if dsn == "" && os.Getenv("TEST_USE_CONTAINERS") == "1" {
		var err error
		container, dsn, err = startPostgres(ctx)
		if err != nil {
			log.Fatalf("failed to start postgres container: %v", err)
		}
	}
	if dsn == "" {
		os.Exit(m.Run())
	}

	var err error
	testPool, err = pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect to test database: %v", err)
	}

	if err := migrations.Up(ctx, testPool, zap.NewNop()); err != nil {
		log.Fatalf("failed to migrate test database: %v", err)
	}

	code := m.Run()
	testPool.Close()
	if container != nil {
		if err := container.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %v", err)
		}
	}
	os.Exit(code)
}

func startPostgres(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("users_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	return container, dsn, nil
}

func setupRepo(t *testing.T) UserRepositoryInterface {
	t.Helper()
	if testPool == nil {
		t.Skip("TEST_DATABASE_URL or TEST_USE_CONTAINERS is not set")
	}
	_, err := testPool.Exec(context.Background(), `TRUNCATE TABLE users`)
	require.NoError(t, err)
	return NewUserRepository(testPool, zap.NewNop())
}

func newUser(n int, role authz.Role) *entities.User {
	return &entities.User{
		Nickname:       fmt.Sprintf("user_%d", n),
		Email:          fmt.Sprintf("user%d@example.com", n),
		FirstName:      utils.ToPtr("Test"),
		Role:           role,
		HashedPassword: "$2a$10$hash",
	}
}

func TestUserRepository_Integration_CreateAndFind(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, nil, newUser(1, authz.RoleManager))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, authz.RoleManager, created.Role)
	assert.NotNil(t, created.CreatedAt)
	assert.Equal(t, "Test", utils.SafeDeref(created.FirstName))
	assert.Nil(t, created.Bio)

	byID, err := repo.FindUserByID(ctx, nil, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)

	byEmail, err := repo.FindByEmail(ctx, "USER1@example.com")
	require.NoError(t, err, "email lookup is case-insensitive")
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = repo.FindUserByID(ctx, nil, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepository_Integration_UniqueViolations(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, nil, newUser(1, authz.RoleAnonymous))
	require.NoError(t, err)

	dupEmail := newUser(2, authz.RoleAnonymous)
	dupEmail.Email = "User1@Example.com"
	_, err = repo.CreateUser(ctx, nil, dupEmail)
	assert.ErrorIs(t, err, apperrors.ErrEmailExists)

	dupNick := newUser(3, authz.RoleAnonymous)
	dupNick.Nickname = "user_1"
	_, err = repo.CreateUser(ctx, nil, dupNick)
	assert.ErrorIs(t, err, apperrors.ErrNicknameExists)
}

func TestUserRepository_Integration_UpdateAndDelete(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, nil, newUser(1, authz.RoleAnonymous))
	require.NoError(t, err)

	created.Role = authz.RoleAdmin
	created.Bio = utils.ToPtr("hello")
	updated, err := repo.UpdateUser(ctx, nil, created)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, updated.Role)
	assert.Equal(t, "hello", utils.SafeDeref(updated.Bio))

	ghost := newUser(9, authz.RoleAnonymous)
	ghost.ID = uuid.New()
	_, err = repo.UpdateUser(ctx, nil, ghost)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, repo.DeleteUser(ctx, nil, created.ID))
	assert.ErrorIs(t, repo.DeleteUser(ctx, nil, created.ID), apperrors.ErrNotFound)
}

func TestUserRepository_Integration_GetUsers(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		role := authz.RoleAuthenticated
		if i%2 == 0 {
			role = authz.RoleManager
		}
		_, err := repo.CreateUser(ctx, nil, newUser(i, role))
		require.NoError(t, err)
	}

	users, total, err := repo.GetUsers(ctx, types.Filter{Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, users, 2)

	managers, total, err := repo.GetUsers(ctx, types.Filter{Role: string(authz.RoleManager)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, managers, 2)

	found, total, err := repo.GetUsers(ctx, types.Filter{Search: "user3"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "user3@example.com", found[0].Email)
}

func TestTxManager_Integration_RollsBackOnError(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	txManager := NewTxManager(testPool)

	err := txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := repo.CreateUser(ctx, tx, newUser(1, authz.RoleAdmin)); err != nil {
			return err
		}
		return apperrors.ErrBadRequest
	})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = repo.FindByEmail(ctx, "user1@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
