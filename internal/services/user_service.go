package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"user-management/internal/authz"
	"user-management/internal/dto"
	"user-management/internal/entities"
	"user-management/internal/events"
	"user-management/internal/repositories"
	"user-management/pkg/eventbus"
	apperrors "user-management/pkg/errors"
	"user-management/pkg/types"
	"user-management/pkg/utils"
)

const exportSheetName = "Users"

var (
	exportHeaders       = []interface{}{"ID", "Nickname", "Email", "First name", "Last name", "Role", "Email verified", "Locked", "Last login", "Created at"}
	nicknameUnsafeChars = regexp.MustCompile(`[^\w-]+`)
)

// EventPublisher - то, что сервису нужно от шины событий.
type EventPublisher interface {
	Publish(ctx context.Context, event eventbus.Event)
}

type UserServiceInterface interface {
	GetUsers(ctx context.Context, filter types.Filter) ([]entities.User, uint64, error)
	FindUser(ctx context.Context, id uuid.UUID) (*entities.User, error)
	CreateUser(ctx context.Context, payload dto.CreateUserDTO) (*entities.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, payload dto.UpdateUserDTO) (*entities.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ExportUsers(ctx context.Context) (*bytes.Buffer, error)
}

type UserService struct {
	userRepo repositories.UserRepositoryInterface
	lookup   UserLookupInterface
	bus      EventPublisher
	logger   *zap.Logger
}

func NewUserService(
	userRepo repositories.UserRepositoryInterface,
	lookup UserLookupInterface,
	bus EventPublisher,
	logger *zap.Logger,
) UserServiceInterface {
	return &UserService{
		userRepo: userRepo,
		lookup:   lookup,
		bus:      bus,
		logger:   logger,
	}
}

func actorEmail(ctx context.Context) string {
	identity, err := utils.GetIdentityFromContext(ctx)
	if err != nil {
		return ""
	}
	return identity.Email
}

// ensureCanAssign: роль ADMIN выдаёт только ADMIN.
func ensureCanAssign(ctx context.Context, role authz.Role) error {
	if role != authz.RoleAdmin {
		return nil
	}
	identity, err := utils.GetIdentityFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = authz.Check(identity, authz.NewRoleSet(authz.RoleAdmin))
	return err
}

func (s *UserService) GetUsers(ctx context.Context, filter types.Filter) ([]entities.User, uint64, error) {
	if filter.Role != "" {
		role, err := authz.ParseRole(filter.Role)
		if err != nil {
			return nil, 0, apperrors.NewInvalidInputError("Unknown role '%s'", filter.Role)
		}
		filter.Role = role.String()
	}
	return s.userRepo.GetUsers(ctx, filter)
}

func (s *UserService) FindUser(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	user, err := s.userRepo.FindUserByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewUserNotFoundError(err)
		}
		return nil, err
	}
	return user, nil
}

// CreateUser: дубликат email - 400, любой другой сбой создания - 500 "Failed to create user".
func (s *UserService) CreateUser(ctx context.Context, payload dto.CreateUserDTO) (*entities.User, error) {
	logger := s.logger.With(zap.String("email", payload.Email), zap.String("actor", actorEmail(ctx)))

	role := authz.RoleAnonymous
	if payload.Role != "" {
		parsed, err := authz.ParseRole(payload.Role)
		if err != nil {
			return nil, apperrors.NewInvalidInputError("Unknown role '%s'", payload.Role)
		}
		role = parsed
	}
	if err := ensureCanAssign(ctx, role); err != nil {
		logger.Warn("CreateUser: actor may not assign role", zap.String("role", role.String()))
		return nil, err
	}

	_, err := s.userRepo.FindByEmail(ctx, payload.Email)
	switch {
	case err == nil:
		logger.Info("CreateUser: email already registered")
		return nil, apperrors.ErrEmailExists
	case !errors.Is(err, apperrors.ErrNotFound):
		logger.Error("CreateUser: email pre-check failed", zap.Error(err))
		return nil, apperrors.NewCreateUserFailedError(err)
	}

	hashed, err := utils.HashPassword(payload.Password)
	if err != nil {
		logger.Error("CreateUser: password hashing failed", zap.Error(err))
		return nil, apperrors.NewCreateUserFailedError(err)
	}

	nickname := payload.Nickname
	if nickname == "" {
		nickname = generateNickname(payload.Email)
	}

	created, err := s.userRepo.CreateUser(ctx, nil, &entities.User{
		ID:                 uuid.New(),
		Nickname:           nickname,
		Email:              strings.TrimSpace(payload.Email),
		FirstName:          payload.FirstName,
		LastName:           payload.LastName,
		Bio:                payload.Bio,
		ProfilePictureURL:  payload.ProfilePictureURL,
		GithubProfileURL:   payload.GithubProfileURL,
		LinkedinProfileURL: payload.LinkedinProfileURL,
		Role:               role,
		HashedPassword:     hashed,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrEmailExists) || errors.Is(err, apperrors.ErrNicknameExists) {
			logger.Info("CreateUser: unique constraint hit", zap.Error(err))
			return nil, err
		}
		logger.Error("CreateUser: insert failed", zap.Error(err))
		return nil, apperrors.NewCreateUserFailedError(err)
	}

	logger.Info("User created", zap.String("user_id", created.ID.String()), zap.String("role", created.Role.String()))
	s.bus.Publish(ctx, events.UserCreatedEvent{
		UserID:   created.ID,
		Email:    created.Email,
		Nickname: created.Nickname,
		ActorID:  actorEmail(ctx),
	})
	return created, nil
}

// applyNullString: поле без значения не трогаем, пустая строка очищает.
func applyNullString(dst **string, src null.String) {
	if !src.Valid {
		return
	}
	if src.String == "" {
		*dst = nil
		return
	}
	*dst = utils.ToPtr(src.String)
}

func (s *UserService) UpdateUser(ctx context.Context, id uuid.UUID, payload dto.UpdateUserDTO) (*entities.User, error) {
	if payload.IsEmpty() {
		return nil, apperrors.NewInvalidInputError("No fields to update")
	}

	user, err := s.FindUser(ctx, id)
	if err != nil {
		return nil, err
	}
	previousEmail := user.Email

	if user.Role == authz.RoleAdmin {
		if err := ensureCanAssign(ctx, authz.RoleAdmin); err != nil {
			return nil, err
		}
	}

	if payload.Email.Valid {
		user.Email = strings.TrimSpace(payload.Email.String)
	}
	if payload.Nickname.Valid {
		user.Nickname = payload.Nickname.String
	}
	if payload.Role.Valid {
		role, err := authz.ParseRole(payload.Role.String)
		if err != nil {
			return nil, apperrors.NewInvalidInputError("Unknown role '%s'", payload.Role.String)
		}
		if err := ensureCanAssign(ctx, role); err != nil {
			return nil, err
		}
		user.Role = role
	}
	applyNullString(&user.FirstName, payload.FirstName)
	applyNullString(&user.LastName, payload.LastName)
	applyNullString(&user.Bio, payload.Bio)
	applyNullString(&user.ProfilePictureURL, payload.ProfilePictureURL)
	applyNullString(&user.GithubProfileURL, payload.GithubProfileURL)
	applyNullString(&user.LinkedinProfileURL, payload.LinkedinProfileURL)

	updated, err := s.userRepo.UpdateUser(ctx, nil, user)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewUserNotFoundError(err)
		}
		return nil, err
	}

	s.lookup.Invalidate(ctx, previousEmail)
	if !strings.EqualFold(previousEmail, updated.Email) {
		s.lookup.Invalidate(ctx, updated.Email)
	}

	s.logger.Info("User updated", zap.String("user_id", updated.ID.String()), zap.String("actor", actorEmail(ctx)))
	return updated, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	user, err := s.FindUser(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == authz.RoleAdmin {
		if err := ensureCanAssign(ctx, authz.RoleAdmin); err != nil {
			return err
		}
	}

	if err := s.userRepo.DeleteUser(ctx, nil, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewUserNotFoundError(err)
		}
		return err
	}

	// кеш сбрасываем сразу, чтобы токен удалённого пользователя перестал работать
	s.lookup.Invalidate(ctx, user.Email)

	s.logger.Info("User deleted", zap.String("user_id", id.String()), zap.String("actor", actorEmail(ctx)))
	s.bus.Publish(ctx, events.UserDeletedEvent{UserID: id, Email: user.Email, ActorID: actorEmail(ctx)})
	return nil
}

func (s *UserService) ExportUsers(ctx context.Context) (*bytes.Buffer, error) {
	users, _, err := s.userRepo.GetUsers(ctx, types.Filter{})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("ExportUsers: failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if err := f.SetSheetRow(exportSheetName, "A1", &exportHeaders); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	// оформление необязательно: ошибки только логируем
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		s.logger.Warn("ExportUsers: failed to create header style", zap.Error(err))
	} else if err := f.SetCellStyle(exportSheetName, "A1", "J1", style); err != nil {
		s.logger.Warn("ExportUsers: failed to style header", zap.Error(err))
	}

	for i, u := range users {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		row := userToRow(u)
		if err := f.SetSheetRow(exportSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
	}
	for _, w := range exportColumnWidths {
		if err := f.SetColWidth(exportSheetName, w.from, w.to, w.width); err != nil {
			s.logger.Warn("ExportUsers: failed to set column width",
				zap.String("columns", w.from+":"+w.to), zap.Error(err))
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return buf, nil
}

var exportColumnWidths = []struct {
	from, to string
	width    float64
}{
	{"A", "A", 38},
	{"B", "E", 25},
	{"I", "J", 20},
}

func userToRow(u entities.User) []interface{} {
	return []interface{}{
		u.ID.String(),
		u.Nickname,
		u.Email,
		utils.SafeDeref(u.FirstName),
		utils.SafeDeref(u.LastName),
		u.Role.String(),
		u.EmailVerified,
		u.IsLocked,
		utils.SafeDeref(utils.FormatTimePtr(u.LastLoginAt)),
		utils.SafeDeref(utils.FormatTimePtr(u.CreatedAt)),
	}
}

// generateNickname строит nickname из локальной части email и случайного суффикса.
func generateNickname(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	local = nicknameUnsafeChars.ReplaceAllString(local, "_")
	if len(local) > 40 {
		local = local[:40]
	}
	if len(local) < 3 {
		local = "user"
	}
	return local + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
