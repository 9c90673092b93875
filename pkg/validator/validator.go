package validator

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator"

	"github.com/Match-Score-project/Match-Score/internal/model"
)

var (
	global     *validator.Validate
	phoneRegex = regexp.MustCompile(`^\+?[0-9 ()\-]{8,20}$`)
)

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrUnknownValidation  = "Unknown validation error"
)

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sport", validateSport)
	_ = v.RegisterValidation("day", validateDay)
	_ = v.RegisterValidation("clock", validateClock)
	_ = v.RegisterValidation("phone", validatePhone)
	_ = v.RegisterValidation("theme", validateTheme)
	_ = v.RegisterValidation("positive", validatePositiveInt)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

func validateSport(fl validator.FieldLevel) bool {
	return model.Sport(fl.Field().String()).Valid()
}

func validateDay(fl validator.FieldLevel) bool {
	_, err := time.Parse(model.DateLayout, fl.Field().String())
	return err == nil
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := time.Parse(model.TimeLayout, fl.Field().String())
	return err == nil
}

func validatePhone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

func validateTheme(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == model.ThemeDark || s == model.ThemeLight
}

func validatePositiveInt(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(int)
	return ok && val > 0
}

func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrors) == 0 {
		return nil
	}
	ve := vErrors[0]
	var msg string
	switch ve.Tag() {
	case "sport", "day", "clock", "phone", "theme", "email":
		msg = ErrInvalidFormat
	case "required":
		msg = ErrFieldRequired
	case "max":
		msg = ErrFieldExceedsMaxLen
	case "min":
		msg = ErrFieldBelowMinLen
	case "lt", "lte":
		msg = ErrFieldExceedsMaxVal
	case "gt", "gte":
		msg = ErrFieldBelowMinVal
	case "eqfield":
		msg = "Fields do not match"
	case "positive":
		msg = "Value must be positive"
	default:
		msg = ErrUnknownValidation
	}
	return errors.New(msg + ": " + ve.Namespace())
}
