// Файл: internal/routes/main_router_test.go
package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"user-management/internal/authz"
	"user-management/internal/controllers"
	"user-management/internal/dto"
	"user-management/internal/entities"
	"user-management/internal/services"
	"user-management/pkg/config"
	apperrors "user-management/pkg/errors"
	"user-management/pkg/middleware"
	"user-management/pkg/service"
	"user-management/pkg/types"
)

// stubLookup - пользователи, которые "есть в БД" для резолвера.
type stubLookup map[string]authz.Role

func (s stubLookup) FindIdentityByEmail(_ context.Context, email string) (*authz.Identity, error) {
	role, ok := s[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &authz.Identity{Email: email, Role: role}, nil
}

func (s stubLookup) Invalidate(context.Context, string) {}

type stubUserService struct {
	users     map[uuid.UUID]*entities.User
	createErr error
	panicOn   string
}

func (s *stubUserService) GetUsers(context.Context, types.Filter) ([]entities.User, uint64, error) {
	out := make([]entities.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, uint64(len(out)), nil
}

func (s *stubUserService) FindUser(_ context.Context, id uuid.UUID) (*entities.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NewUserNotFoundError(apperrors.ErrNotFound)
	}
	return u, nil
}

func (s *stubUserService) CreateUser(_ context.Context, payload dto.CreateUserDTO) (*entities.User, error) {
	if payload.Email == s.panicOn {
		panic("unexpected nil pointer")
	}
	if s.createErr != nil {
		return nil, s.createErr
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, payload.Email) {
			return nil, apperrors.ErrEmailExists
		}
	}
	u := &entities.User{ID: uuid.New(), Email: payload.Email, Nickname: payload.Nickname, Role: authz.RoleAnonymous}
	s.users[u.ID] = u
	return u, nil
}

func (s *stubUserService) UpdateUser(_ context.Context, id uuid.UUID, payload dto.UpdateUserDTO) (*entities.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NewUserNotFoundError(apperrors.ErrNotFound)
	}
	if payload.Nickname.Valid {
		u.Nickname = payload.Nickname.String
	}
	return u, nil
}

func (s *stubUserService) DeleteUser(_ context.Context, id uuid.UUID) error {
	if _, ok := s.users[id]; !ok {
		return apperrors.NewUserNotFoundError(apperrors.ErrNotFound)
	}
	delete(s.users, id)
	return nil
}

func (s *stubUserService) ExportUsers(context.Context) (*bytes.Buffer, error) {
	return bytes.NewBufferString("xlsx"), nil
}

var _ services.UserServiceInterface = (*stubUserService)(nil)

type RouterTestSuite struct {
	suite.Suite
	Echo     *echo.Echo
	JWT      service.JWTService
	Users    *stubUserService
	Existing *entities.User
}

func (s *RouterTestSuite) SetupTest() {
	logger := zap.NewNop()
	s.JWT = service.NewJWTService("router-secret", time.Hour, logger)

	lookup := stubLookup{
		"admin@example.com":   authz.RoleAdmin,
		"manager@example.com": authz.RoleManager,
		"user@example.com":    authz.RoleAuthenticated,
		"anon@example.com":    authz.RoleAnonymous,
	}
	resolver := services.NewIdentityResolver(s.JWT, lookup, logger)

	s.Existing = &entities.User{ID: uuid.New(), Email: "existing@example.com", Nickname: "existing", Role: authz.RoleAuthenticated}
	s.Users = &stubUserService{users: map[uuid.UUID]*entities.User{s.Existing.ID: s.Existing}, panicOn: "panic@example.com"}

	s.Echo = NewServer(config.ServerConfig{AllowedOrigins: []string{"*"}}, logger)
	RegisterRoutes(s.Echo, middleware.NewAuthMiddleware(resolver, logger), controllers.NewUserController(s.Users, logger))
}

func (s *RouterTestSuite) token(email string) string {
	tok, err := s.JWT.GenerateToken(email, "")
	s.Require().NoError(err)
	return tok
}

func (s *RouterTestSuite) do(method, path, email string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if email != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token(email))
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func (s *RouterTestSuite) message(rec *httptest.ResponseRecorder) string {
	var body struct {
		Message string `json:"message"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func (s *RouterTestSuite) TestUnauthenticatedRequestsGet401() {
	for _, path := range []string{"/api/me", "/api/users", "/api/users/" + s.Existing.ID.String()} {
		rec := s.do(http.MethodGet, path, "", nil)
		s.Equal(http.StatusUnauthorized, rec.Code, path)
		s.Equal("Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
		s.Equal(apperrors.MsgInvalidCredentials, s.message(rec))
	}

	// валидный токен, но пользователя нет в БД
	rec := s.do(http.MethodGet, "/api/me", "ghost@example.com", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal(apperrors.MsgInvalidCredentials, s.message(rec))
}

func (s *RouterTestSuite) TestMeReturnsStoredRole() {
	rec := s.do(http.MethodGet, "/api/me", "manager@example.com", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":true,"message":"Current identity","body":{"email":"manager@example.com","role":"MANAGER"}}`, rec.Body.String())
}

func (s *RouterTestSuite) TestGetUser() {
	rec := s.do(http.MethodGet, "/api/users/"+s.Existing.ID.String(), "anon@example.com", nil)
	s.Equal(http.StatusOK, rec.Code, "any valid identity may read")

	var body struct {
		Body dto.UserDTO `json:"body"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal(s.Existing.ID, body.Body.ID)
	s.Require().Len(body.Body.Links, 4)
	s.Equal("http://example.com/api/users/"+s.Existing.ID.String(), body.Body.Links[0].Href)

	rec = s.do(http.MethodGet, "/api/users/"+uuid.NewString(), "anon@example.com", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal(apperrors.MsgUserNotFound, s.message(rec))

	rec = s.do(http.MethodGet, "/api/users/not-a-uuid", "anon@example.com", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(apperrors.MsgInvalidUserID, s.message(rec))
}

func (s *RouterTestSuite) TestCreateUser() {
	payload := map[string]string{"email": "fresh@example.com", "password": "Secret123", "nickname": "fresh"}

	for _, email := range []string{"user@example.com", "anon@example.com"} {
		rec := s.do(http.MethodPost, "/api/users", email, payload)
		s.Equal(http.StatusForbidden, rec.Code, email)
		s.Equal(apperrors.MsgForbidden, s.message(rec))
	}

	rec := s.do(http.MethodPost, "/api/users", "manager@example.com", payload)
	s.Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/api/users", "admin@example.com", payload)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(apperrors.MsgEmailExists, s.message(rec))

	rec = s.do(http.MethodPost, "/api/users", "admin@example.com", map[string]string{"email": "bad", "password": "Secret123"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(s.message(rec), "'email'")
}

func (s *RouterTestSuite) TestCreateUserFailureIsGeneric() {
	s.Users.createErr = apperrors.NewCreateUserFailedError(context.DeadlineExceeded)

	rec := s.do(http.MethodPost, "/api/users", "admin@example.com",
		map[string]string{"email": "other@example.com", "password": "Secret123"})
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal(apperrors.MsgCreateUserFailed, s.message(rec))
	s.NotContains(rec.Body.String(), "deadline")
}

func (s *RouterTestSuite) TestPanicBecomesGeneric500() {
	rec := s.do(http.MethodPost, "/api/users", "admin@example.com",
		map[string]string{"email": "panic@example.com", "password": "Secret123"})
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal(apperrors.MsgUnexpected, s.message(rec))
}

func (s *RouterTestSuite) TestDeleteUser() {
	path := "/api/users/" + s.Existing.ID.String()

	rec := s.do(http.MethodDelete, path, "user@example.com", nil)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, path, "admin@example.com", nil)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Empty(rec.Body.Bytes())

	rec = s.do(http.MethodDelete, path, "admin@example.com", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal(apperrors.MsgUserNotFound, s.message(rec))
}

func (s *RouterTestSuite) TestUpdateUser() {
	rec := s.do(http.MethodPut, "/api/users/"+s.Existing.ID.String(), "manager@example.com", map[string]string{"nickname": "renamed"})
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("renamed", s.Existing.Nickname)

	rec = s.do(http.MethodPut, "/api/users/"+s.Existing.ID.String(), "manager@example.com", map[string]string{"nickname": "a b"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterTestSuite) TestListAndExportAreRoleGated() {
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/api/users", "user@example.com", nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/users", "manager@example.com", nil).Code)

	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/api/users/export", "manager@example.com", nil).Code)

	rec := s.do(http.MethodGet, "/api/users/export", "admin@example.com", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get(echo.HeaderContentDisposition), "attachment; filename=users_")
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
