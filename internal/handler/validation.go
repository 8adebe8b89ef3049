package handler

import (
	"errors"
	"fmt"
	"strings"

	"marketpay/internal/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the custom binding tags used by request structs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return v.RegisterValidation("paymethod", func(fl validator.FieldLevel) bool {
		return domain.IsSupportedMethod(strings.ToUpper(fl.Field().String()))
	})
}

func bindingError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	if fe.Tag() == "paymethod" {
		return fmt.Sprintf("unsupported payment method, expected one of %s", strings.Join(domain.Methods, ", "))
	}
	return fmt.Sprintf("%s is %s", fe.Field(), fe.Tag())
}
