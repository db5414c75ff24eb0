package errors

import (
	"fmt"
	"net/http"
)

var (
	// JWT и токены
	ErrInvalidSigningMethod = fmt.Errorf("invalid token signing method")
	ErrInvalidToken         = fmt.Errorf("invalid token")
	ErrTokenExpired         = fmt.Errorf("token has expired")
	ErrTokenNotYetValid     = fmt.Errorf("token is not valid yet")

	// Аутентификация и авторизация
	ErrEmptyAuthHeader    = fmt.Errorf("authorization header is missing")
	ErrInvalidAuthHeader  = fmt.Errorf("authorization header has invalid format")
	ErrInvalidCredentials = fmt.Errorf("could not validate credentials")
	ErrForbidden          = fmt.Errorf("operation not permitted")
	ErrUnknownRole        = fmt.Errorf("unknown role")

	// Контекст
	ErrIdentityNotFoundInContext = fmt.Errorf("identity not found in request context")

	// Пользователи
	ErrEmailExists    = fmt.Errorf("email already exists")
	ErrNicknameExists = fmt.Errorf("nickname already exists")

	// Общие
	ErrNotFound       = fmt.Errorf("record not found")
	ErrBadRequest     = fmt.Errorf("bad request")
	ErrInternalServer = fmt.Errorf("internal server error")
)

// Сообщения, которые уходят клиенту.
const (
	MsgInvalidCredentials = "Could not validate credentials"
	MsgForbidden          = "Operation not permitted"
	MsgUserNotFound       = "User not found"
	MsgEmailExists        = "Email already exists"
	MsgNicknameExists     = "Nickname already exists"
	MsgCreateUserFailed   = "Failed to create user"
	MsgInvalidUserID      = "Invalid user ID"
	MsgInvalidRequestBody = "Invalid request body"
	MsgUnexpected         = "An unexpected error occurred."
)

// HttpError несёт HTTP-код и безопасное для клиента сообщение.
// Err остаётся только для логов.
type HttpError struct {
	Code    int
	Message string
	Err     error
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err}
}

func NewUserNotFoundError(err error) *HttpError {
	return NewHttpError(http.StatusNotFound, MsgUserNotFound, err)
}

func NewCreateUserFailedError(err error) *HttpError {
	return NewHttpError(http.StatusInternalServerError, MsgCreateUserFailed, err)
}

type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}
