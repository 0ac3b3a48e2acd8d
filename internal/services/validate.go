package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,30}$`)
	validate        = validator.New()
)

func init() {
	RegisterValidators(validate)
}

// RegisterValidators 注册自定义规则，gin 的 binding 引擎也复用它
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(fl.Field().String())
	})
}

func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// invalidInput 把 validator 的错误转换成可读的 ErrInvalidInput
func invalidInput(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	case "email":
		return fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	case "username":
		return fmt.Errorf("%w: username must be 1-30 letters, digits or underscores", ErrInvalidInput)
	case "min":
		return fmt.Errorf("%w: %s must be at least %s characters", ErrInvalidInput, field, fe.Param())
	case "max":
		return fmt.Errorf("%w: %s must be at most %s characters", ErrInvalidInput, field, fe.Param())
	}
	return fmt.Errorf("%w: invalid %s", ErrInvalidInput, field)
}
