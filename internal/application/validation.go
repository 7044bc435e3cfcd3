package application

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields under their JSON names so messages line up with request bodies.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tag rules on input and records failures in vErr.
func validateStruct(input any, vErr *ValidationError) {
	err := validate.Struct(input)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		vErr.add("input", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		vErr.add(fe.Field(), fieldMessage(fe))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "ce champ est obligatoire"
	case "max":
		return fmt.Sprintf("%s caractères au maximum", fe.Param())
	case "gt":
		return fmt.Sprintf("doit être supérieur à %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("valeur attendue parmi: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return "valeur invalide"
}
