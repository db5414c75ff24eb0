package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "user-management/pkg/errors"
)

type Response[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Body    T      `json:"body,omitempty"`
}

type ListBody[T any] struct {
	List       []T             `json:"list"`
	Pagination *PaginationMeta `json:"pagination"`
}

type PaginationMeta struct {
	TotalCount uint64 `json:"total_count"`
	TotalPages uint64 `json:"total_pages"`
	Page       uint64 `json:"page"`
	Limit      uint64 `json:"limit"`
}

// SuccessOne для возврата одного объекта
func SuccessOne[T any](c echo.Context, code int, message string, data T) error {
	return c.JSON(code, Response[T]{
		Status:  true,
		Message: message,
		Body:    data,
	})
}

func SuccessList[T any](c echo.Context, message string, list []T, total, page, limit uint64) error {
	var totalPages uint64
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	if list == nil {
		list = make([]T, 0)
	}

	return c.JSON(http.StatusOK, Response[ListBody[T]]{
		Status:  true,
		Message: message,
		Body: ListBody[T]{
			List: list,
			Pagination: &PaginationMeta{
				TotalCount: total,
				TotalPages: totalPages,
				Page:       page,
				Limit:      limit,
			},
		},
	})
}

type errorMapping struct {
	err     error
	code    int
	message string
}

// Порядок важен: первая совпавшая запись побеждает.
// Все причины отказа в аутентификации схлопываются в одно сообщение.
var errorMappings = []errorMapping{
	{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, apperrors.MsgInvalidCredentials},
	{apperrors.ErrEmptyAuthHeader, http.StatusUnauthorized, apperrors.MsgInvalidCredentials},
	{apperrors.ErrInvalidAuthHeader, http.StatusUnauthorized, apperrors.MsgInvalidCredentials},
	{apperrors.ErrInvalidToken, http.StatusUnauthorized, apperrors.MsgInvalidCredentials},
	{apperrors.ErrTokenExpired, http.StatusUnauthorized, apperrors.MsgInvalidCredentials},
	{apperrors.ErrTokenNotYetValid, http.StatusUnauthorized, apperrors.MsgInvalidCredentials},
	{apperrors.ErrInvalidSigningMethod, http.StatusUnauthorized, apperrors.MsgInvalidCredentials},
	{apperrors.ErrIdentityNotFoundInContext, http.StatusUnauthorized, apperrors.MsgInvalidCredentials},
	{apperrors.ErrForbidden, http.StatusForbidden, apperrors.MsgForbidden},
	{apperrors.ErrEmailExists, http.StatusBadRequest, apperrors.MsgEmailExists},
	{apperrors.ErrNicknameExists, http.StatusBadRequest, apperrors.MsgNicknameExists},
	{apperrors.ErrNotFound, http.StatusNotFound, "Not found"},
	{apperrors.ErrBadRequest, http.StatusBadRequest, "Bad request"},
}

// ResolveError возвращает HTTP-код и сообщение, которое безопасно отдать клиенту.
func ResolveError(err error) (int, string) {
	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		return httpErr.Code, httpErr.Message
	}

	var inputErr *apperrors.InvalidInputError
	if errors.As(err, &inputErr) {
		return http.StatusBadRequest, inputErr.Message
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.code, m.message
		}
	}

	return http.StatusInternalServerError, apperrors.MsgUnexpected
}

func ErrorResponse(c echo.Context, err error) error {
	code, msg := ResolveError(err)

	if code == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	}

	return c.JSON(code, Response[any]{
		Status:  false,
		Message: msg,
	})
}

// HTTPErrorHandler ловит всё, что дошло до echo необработанным: ошибки роутинга
// (404/405), ошибки middleware и то, что вернули хендлеры.
func HTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
			msg := http.StatusText(he.Code)
			if m, ok := he.Message.(string); ok && m != "" {
				msg = m
			}
			if c.Request().Method == http.MethodHead {
				_ = c.NoContent(he.Code)
				return
			}
			_ = c.JSON(he.Code, Response[any]{Status: false, Message: msg})
			return
		}

		if code, _ := ResolveError(err); code >= http.StatusInternalServerError {
			logger.Error("Unhandled error",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
			)
		}
		if respErr := ErrorResponse(c, err); respErr != nil {
			logger.Error("Failed to write error response", zap.Error(respErr))
		}
	}
}
