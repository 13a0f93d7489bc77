// Package validation validates request structs with validator/v10 and converts failures into domain errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
)

// Validator wraps go-playground/validator with the song sheet tags registered.
type Validator struct {
	v *validator.Validate
}

// New creates a validator. Besides the built-in tags it understands:
//
//	songkey   one of domain.Keys, enharmonic spellings allowed
//	category  one category, stray commas allowed
//	language  one of domain.Languages
//	bpm       empty or a positive tempo
//	date      empty or YYYY-MM-DD
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "songkey", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseKey(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "category", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseCategory(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "language", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseLanguage(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "bpm", func(fl validator.FieldLevel) bool {
		_, err := domain.NormalizeBPM(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "date", func(fl validator.FieldLevel) bool {
		return domain.ValidDate(fl.Field().String())
	})

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Validate validates s and returns a domain validation error listing every failed field.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	details := make(map[string]string, len(fieldErrs))
	for _, e := range fieldErrs {
		details[e.Field()] = friendlyMessage(e)
	}
	return domainerrors.ValidationWithDetails("validation failed", details)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", e.Param())
		}
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", e.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "url":
		return "must be a valid URL"
	case "songkey":
		return "must be a key such as C, Db, F# or Bb"
	case "category":
		return "must be one of: 상향, 외향, 내향, JOY"
	case "language":
		return "must be one of: 한국어, 영어"
	case "bpm":
		return "must be a positive tempo"
	case "date":
		return "must be a date formatted YYYY-MM-DD"
	default:
		return "is invalid"
	}
}
