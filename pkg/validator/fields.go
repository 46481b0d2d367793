package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/carelink/shift-portal/pkg/payroll"
	playground "github.com/go-playground/validator/v10"
)

// ShiftRoles lists the roles a shift can be posted for
var ShiftRoles = []string{
	"registered_nurse",
	"care_assistant",
	"senior_carer",
	"support_worker",
}

// FieldError describes one failed rule on one request field
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error implements error
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldValidator checks request structs using `validate` struct tags
type FieldValidator struct {
	validate *playground.Validate
	phone    *PhoneValidator
}

// NewFieldValidator builds a validator with the portal's custom tags registered:
// hhmm (time of day), isodate (YYYY-MM-DD), shiftrole and ukphone
func NewFieldValidator() *FieldValidator {
	v := &FieldValidator{
		validate: playground.New(playground.WithRequiredStructEnabled()),
		phone:    NewPhoneValidator(),
	}

	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// Registration only fails on an empty tag or nil func
	_ = v.validate.RegisterValidation("hhmm", func(fl playground.FieldLevel) bool {
		_, err := payroll.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.validate.RegisterValidation("isodate", func(fl playground.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	_ = v.validate.RegisterValidation("shiftrole", func(fl playground.FieldLevel) bool {
		return IsShiftRole(fl.Field().String())
	})
	_ = v.validate.RegisterValidation("ukphone", func(fl playground.FieldLevel) bool {
		return v.phone.IsValid(fl.Field().String())
	})

	return v
}

// IsShiftRole reports whether role is one of ShiftRoles
func IsShiftRole(role string) bool {
	for _, r := range ShiftRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Struct validates s and returns every failing field; nil means valid
func (v *FieldValidator) Struct(s interface{}) []FieldError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs playground.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Rule: "invalid", Message: err.Error()}}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fieldPath(fe),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return fields
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe playground.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "hhmm":
		return "must be a time in HH:MM format"
	case "isodate":
		return "must be a date in YYYY-MM-DD format"
	case "shiftrole":
		return "must be one of " + strings.Join(ShiftRoles, ", ")
	case "ukphone":
		return "must be a valid UK phone number"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return "must have at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "nefield":
		return "must differ from " + fe.Param()
	case "eqfield":
		return "must match " + fe.Param()
	case "uuid":
		return "must be a valid id"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
