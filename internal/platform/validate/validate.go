// Package validate wraps go-playground/validator so that failures surface as
// *shared.ValidationError with JSON field names and list item positions.
package validate

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockline/stockline/internal/shared"
)

var indexedPath = regexp.MustCompile(`^(\w+)\[(\d+)\]\.(.+)$`)

// MoneyScale is the number of decimal places stored for amounts.
const MoneyScale = 2

// MaxQuantity is the largest count an INTEGER column holds.
const MaxQuantity = math.MaxInt32

// MaxMoney is the largest amount a NUMERIC(14,2) column holds.
var MaxMoney = decimal.RequireFromString("999999999999.99")

// ValidMoney reports whether d can be stored as an amount without rounding or overflow.
func ValidMoney(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(MoneyScale)) && d.LessThanOrEqual(MaxMoney)
}

// New returns a validator that reports JSON tag names and understands decimal.Decimal
// for numeric comparisons (gt, gte, lte). The money tag accepts a decimal.Decimal
// that passes ValidMoney.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, ok := rawDecimal(fl)
		return ok && ValidMoney(d)
	})
	return v
}

// rawDecimal recovers the decimal behind a money field. The custom type func hands
// tag funcs a float64, so the exact value is read back from the parent struct.
func rawDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	parent := fl.Parent()
	for parent.Kind() == reflect.Ptr || parent.Kind() == reflect.Interface {
		if parent.IsNil() {
			break
		}
		parent = parent.Elem()
	}
	if parent.Kind() == reflect.Struct {
		if f := parent.FieldByName(fl.StructFieldName()); f.IsValid() && f.CanInterface() {
			if d, ok := f.Interface().(decimal.Decimal); ok {
				return d, true
			}
		}
	}
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(fl.Field().Float()), true
	}
	return decimal.Decimal{}, false
}

// Struct validates s and converts the first failure into a *shared.ValidationError.
// Any other error is returned unchanged.
func Struct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	return FromFieldError(fieldErrs[0])
}

// FromFieldError maps a single validator failure.
func FromFieldError(fe validator.FieldError) *shared.ValidationError {
	path := fe.Namespace()
	if idx := strings.IndexByte(path, '.'); idx >= 0 {
		path = path[idx+1:]
	}
	reason := describe(fe)
	if m := indexedPath.FindStringSubmatch(path); m != nil {
		index, _ := strconv.Atoi(m[2])
		return shared.NewItemValidationError(index, m[3], reason)
	}
	return shared.NewValidationError(path, reason)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			if fe.Param() == "1" {
				return "must not be empty"
			}
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "money":
		return "must be an amount between 0 and " + MaxMoney.StringFixed(MoneyScale) + " with at most 2 decimal places"
	case "oneof":
		return "must be one of " + fe.Param()
	case "url":
		return "must be a valid URL"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
