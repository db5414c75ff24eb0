package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"user-management/internal/dto"
	"user-management/internal/entities"
	"user-management/internal/services"
	"user-management/pkg/api"
	apperrors "user-management/pkg/errors"
	"user-management/pkg/types"
	"user-management/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type UserController struct {
	userService services.UserServiceInterface
	logger      *zap.Logger
}

func NewUserController(userService services.UserServiceInterface, logger *zap.Logger) *UserController {
	return &UserController{
		userService: userService,
		logger:      logger,
	}
}

func baseURL(ctx echo.Context) string {
	return ctx.Scheme() + "://" + ctx.Request().Host
}

func parseUserID(ctx echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.NewHttpError(http.StatusBadRequest, apperrors.MsgInvalidUserID, err)
	}
	return id, nil
}

func (c *UserController) toDTO(ctx echo.Context, u *entities.User) dto.UserDTO {
	return dto.UserToDTO(u, baseURL(ctx))
}

// respondError пишет 5xx в лог с исходной ошибкой, клиенту уходит только безопасное сообщение.
func (c *UserController) respondError(ctx echo.Context, op string, err error) error {
	if code, _ := api.ResolveError(err); code >= http.StatusInternalServerError {
		c.logger.Error(op+" failed", zap.String("path", ctx.Path()), zap.Error(err))
	}
	return api.ErrorResponse(ctx, err)
}

func (c *UserController) GetUsers(ctx echo.Context) error {
	query := ctx.QueryParams()
	limit, offset, page := utils.ParsePaginationParams(query)

	filter := types.Filter{
		Search: query.Get("search"),
		Role:   query.Get("role"),
		Limit:  limit,
		Offset: offset,
		Page:   page,
	}

	users, total, err := c.userService.GetUsers(ctx.Request().Context(), filter)
	if err != nil {
		return c.respondError(ctx, "GetUsers", err)
	}

	list := make([]dto.UserDTO, 0, len(users))
	for i := range users {
		list = append(list, c.toDTO(ctx, &users[i]))
	}
	return api.SuccessList(ctx, "Users fetched", list, total, page, limit)
}

func (c *UserController) FindUser(ctx echo.Context) error {
	id, err := parseUserID(ctx)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	user, err := c.userService.FindUser(ctx.Request().Context(), id)
	if err != nil {
		return c.respondError(ctx, "FindUser", err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "User fetched", c.toDTO(ctx, user))
}

func (c *UserController) CreateUser(ctx echo.Context) error {
	var payload dto.CreateUserDTO
	if err := ctx.Bind(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, apperrors.MsgInvalidRequestBody, err))
	}
	if err := ctx.Validate(&payload); err != nil {
		return api.ErrorResponse(ctx, err)
	}

	user, err := c.userService.CreateUser(ctx.Request().Context(), payload)
	if err != nil {
		return c.respondError(ctx, "CreateUser", err)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "User created", c.toDTO(ctx, user))
}

func (c *UserController) UpdateUser(ctx echo.Context) error {
	id, err := parseUserID(ctx)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	var payload dto.UpdateUserDTO
	if err := ctx.Bind(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, apperrors.MsgInvalidRequestBody, err))
	}
	if err := ctx.Validate(&payload); err != nil {
		return api.ErrorResponse(ctx, err)
	}

	user, err := c.userService.UpdateUser(ctx.Request().Context(), id, payload)
	if err != nil {
		return c.respondError(ctx, "UpdateUser", err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "User updated", c.toDTO(ctx, user))
}

// DeleteUser отвечает 204 без тела.
func (c *UserController) DeleteUser(ctx echo.Context) error {
	id, err := parseUserID(ctx)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	if err := c.userService.DeleteUser(ctx.Request().Context(), id); err != nil {
		return c.respondError(ctx, "DeleteUser", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *UserController) ExportUsers(ctx echo.Context) error {
	buf, err := c.userService.ExportUsers(ctx.Request().Context())
	if err != nil {
		return c.respondError(ctx, "ExportUsers", err)
	}

	fileName := fmt.Sprintf("users_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+fileName)
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Me возвращает identity, которую middleware восстановил из токена.
func (c *UserController) Me(ctx echo.Context) error {
	identity, err := utils.GetIdentityFromContext(ctx.Request().Context())
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "Current identity", identity)
}
