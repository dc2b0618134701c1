package web

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// BindErrorMsg turns a binding error into the message returned to clients.
func BindErrorMsg(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		field := ve[0]
		return field.Field() + GetErrorMsg(field)
	}

	return err.Error()
}
