// Package validation checks the shape of inbound requests with
// go-playground/validator struct tags. Accounting rules stay in the ledger;
// this only rejects input no ledger call could accept.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid request")

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names rather than Go ones.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("tenant_id", func(fl validator.FieldLevel) bool {
		return isTenantID(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("registering tenant_id: %w", err)
	}
	return v, nil
}

// isTenantID accepts a lowercase letter or digit followed by lowercase
// letters, digits, '-' or '_'.
func isTenantID(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case (r == '-' || r == '_') && i > 0:
		default:
			return false
		}
	}
	return true
}

// Validator returns the shared validator.
func Validator() (*validator.Validate, error) {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})
	return validate, errValidate
}

// Struct validates v by its `validate` tags and reports the first failure.
func Struct(v any) error {
	vld, err := Validator()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return format(vld.Struct(v), "")
}

// Var validates a single value against tag. name labels the value in the
// error message.
func Var(name string, value any, tag string) error {
	vld, err := Validator()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return format(vld.Var(value, tag), name)
}

// TenantID checks that id is usable as a tenant key.
func TenantID(id string) error {
	return Var("tenant", id, "required,max=63,tenant_id")
}

func format(err error, name string) error {
	if err == nil {
		return nil
	}
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) || len(fes) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	fe := fes[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	if field == "" {
		field = name
	}

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: '%s' is required", ErrInvalid, field)
	case "max":
		return fmt.Errorf("%w: '%s' must be at most %s characters", ErrInvalid, field, fe.Param())
	case "min":
		return fmt.Errorf("%w: '%s' must be at least %s", ErrInvalid, field, fe.Param())
	case "oneof":
		return fmt.Errorf("%w: '%s' must be one of [%s]", ErrInvalid, field, fe.Param())
	case "tenant_id":
		return fmt.Errorf("%w: '%s' must be lowercase letters, digits, '-' or '_'", ErrInvalid, field)
	}
	return fmt.Errorf("%w: '%s' failed '%s' check", ErrInvalid, field, fe.Tag())
}
