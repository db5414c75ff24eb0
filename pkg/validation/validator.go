package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "user-management/pkg/errors"
)

// CustomValidator - обертка для использования в Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate реализует интерфейс echo.Validator.
// Ошибки валидатора превращаются в InvalidInputError (400) с именем первого поля из json-тега.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.NewInvalidInputError("Field '%s' failed on the '%s' rule", fe.Field(), fe.Tag())
	}
	return apperrors.NewInvalidInputError("%s", apperrors.MsgInvalidRequestBody)
}

// New создает и настраивает валидатор.
// Если правило не зарегистрировалось - паникуем, сервер не должен стартовать.
func New() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	registerNullTypes(v)

	if err := registerRules(v); err != nil {
		panic("failed to register validators: " + err.Error())
	}

	return &CustomValidator{validator: v}
}
