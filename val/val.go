// Package val validates configuration structs and describes failed fields in
// terms of their yaml keys.
package val

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/code19m/errx"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate //nolint: gochecknoglobals // validator caches struct metadata, one instance per process

func init() { //nolint: gochecknoinits // the tag name func must be registered before first use
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(getTagName)
}

// getTagName names a field by its yaml key, then json key, then Go name.
func getTagName(fld reflect.StructField) string {
	for _, tagName := range []string{"yaml", "json"} {
		name := strings.SplitN(fld.Tag.Get(tagName), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// Struct validates s. The returned map holds one description per failed
// field, keyed by its dotted path without the root type, for example
// "queue.policy". A nil map means s is valid. The error is reserved for
// values the validator cannot inspect, such as nil or non-struct values.
func Struct(s any) (errx.M, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, errx.Wrap(err)
	}

	fields := make(errx.M, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields[fieldPath(fieldErr)] = describe(fieldErr)
	}
	return fields, nil
}

func fieldPath(fieldErr validator.FieldError) string {
	ns := fieldErr.Namespace()
	if idx := strings.Index(ns, "."); idx != -1 {
		return ns[idx+1:]
	}
	return ns
}

func describe(fieldErr validator.FieldError) string {
	param := fieldErr.Param()

	switch fieldErr.Tag() {
	case "required":
		return "This field is required"
	case "required_if":
		return fmt.Sprintf("This field is required when %s", strings.Replace(param, " ", " is ", 1))
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(param, " ", ", "))
	case "min":
		if fieldErr.Kind() == reflect.String {
			return fmt.Sprintf("Must be at least %s characters", param)
		}
		return fmt.Sprintf("Must be at least %s", param)
	case "max":
		if fieldErr.Kind() == reflect.String {
			return fmt.Sprintf("Must be at most %s characters", param)
		}
		return fmt.Sprintf("Must be at most %s", param)
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", param)
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", param)
	case "gt":
		return fmt.Sprintf("Must be greater than %s", param)
	case "lt":
		return fmt.Sprintf("Must be less than %s", param)
	case "url":
		return "Must be a valid URL"
	case "hostname", "hostname_port":
		return "Must be a valid host"
	case "dive":
		return "Contains an invalid item"
	}
	return fmt.Sprintf("Failed validation: %s", fieldErr.Tag())
}
