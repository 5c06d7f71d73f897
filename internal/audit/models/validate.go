package models

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names so messages match what users and clients see.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return IsISODate(fl.Field().String())
	})
	return v
}
