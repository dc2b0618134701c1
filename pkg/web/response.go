// Package web defines common components for a web application.
package web

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/go-petr/splitfx/pkg/coercepkg"
)

// Response holds the common response type for all APIs.
type Response struct {
	Success  bool               `json:"success"`
	Data     any                `json:"data,omitempty"`
	Error    string             `json:"error,omitempty"`
	Warnings coercepkg.Warnings `json:"warnings,omitempty"`
}

// OK wraps data into a successful response.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Error wraps a given err into json frinedly struct.
func Error(err error) Response {
	return Response{Error: err.Error()}
}

// ErrorMsg wraps a plain message into an error response.
func ErrorMsg(msg string) Response {
	return Response{Error: msg}
}

// GetErrorMsg returns a human readable message for a failed validation tag.
func GetErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return " field is required"
	case "currency":
		return " is not supported"
	case "min":
		return fmt.Sprintf(" must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf(" must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf(" must be %s characters long", fe.Param())
	case "uuid":
		return " must be a valid UUID"
	case "oneof":
		return fmt.Sprintf(" must be one of [%s]", fe.Param())
	case "nefield":
		return fmt.Sprintf(" must differ from %s", fe.Param())
	}

	return " is invalid"
}
