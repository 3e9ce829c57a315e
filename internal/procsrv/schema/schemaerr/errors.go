// Package schemaerr carries field-level validation failures that are
// collected and reported together rather than failing on the first error.
package schemaerr

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field  string `json:"field,omitempty"`
	ErrStr string `json:"error"`
}

func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.ErrStr
	}
	return fmt.Sprintf("%s: %s", ve.Field, ve.ErrStr)
}

type ValidationErrors []ValidationError

func (ves ValidationErrors) Error() string {
	msgs := make([]string, 0, len(ves))
	for _, ve := range ves {
		msgs = append(msgs, ve.Error())
	}
	return strings.Join(msgs, "; ")
}

var ErrInvalidSchema = ValidationError{ErrStr: "invalid schema"}

func ErrMissingRequiredAttribute(field string) ValidationError {
	return ValidationError{Field: field, ErrStr: "missing required attribute"}
}

func ErrInvalidFieldSchema(field string, value string) ValidationError {
	return ValidationError{Field: field, ErrStr: fmt.Sprintf("invalid value: %s", value)}
}

func ErrInvalidNameFormat(field string, value ...string) ValidationError {
	if len(value) > 0 {
		return ValidationError{Field: field, ErrStr: fmt.Sprintf("invalid name format: %s", value[0])}
	}
	return ValidationError{Field: field, ErrStr: "invalid name format"}
}

func ErrInvalidType(field string, expected string) ValidationError {
	return ValidationError{Field: field, ErrStr: fmt.Sprintf("invalid type, expected %s", expected)}
}

func ErrValidationFailed(msg string) ValidationError {
	return ValidationError{ErrStr: msg}
}
