// Package validation wraps go-playground/validator with the catalog's money,
// inventory and id rules and flattens failures into field errors.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fraction digits stored for prices.
const MoneyScale = 2

var (
	ErrInvalidMoney     = errors.New("invalid_money")
	ErrInvalidInventory = errors.New("invalid_inventory")

	// prices are stored as decimal(20,2)
	moneyUpperBound = decimal.New(1, 18)
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	mustRegister(v, "money", func(fl validator.FieldLevel) bool {
		_, err := ParseMoney(fieldString(fl.Field()))
		return err == nil
	})
	mustRegister(v, "inventory", func(fl validator.FieldLevel) bool {
		_, err := ParseInventory(fieldString(fl.Field()))
		return err == nil
	})
	mustRegister(v, "snowflake", func(fl validator.FieldLevel) bool {
		_, err := snowflake.ParseString(strings.TrimSpace(fieldString(fl.Field())))
		return err == nil
	})
	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Struct validates s and returns one FieldError per failing field, with field
// names prefixed by prefix (for example "edits[2].").
func (v *Validator) Struct(s any, prefix string) []FieldError {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: strings.TrimSuffix(prefix, "."), Code: "invalid", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   prefix + fe.Field(),
			Code:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "money":
		return "must be a non-negative amount with at most 2 decimal places"
	case "inventory":
		return "must be a whole number; negative means unlimited"
	case "snowflake":
		return "must be a valid id"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func fieldString(field reflect.Value) string {
	switch field.Kind() {
	case reflect.String:
		return field.String()
	case reflect.Int, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	default:
		return fmt.Sprint(field.Interface())
	}
}

// ParseMoney parses a non-negative amount with at most two fraction digits.
func ParseMoney(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidMoney
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidMoney
	}
	if d.IsNegative() || d.Exponent() < -MoneyScale || d.GreaterThanOrEqual(moneyUpperBound) {
		return decimal.Zero, ErrInvalidMoney
	}
	return d.Round(MoneyScale), nil
}

// ParseOptionalMoney treats an empty value as unset.
func ParseOptionalMoney(raw json.Number) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw.String()) == "" {
		return nil, nil
	}
	d, err := ParseMoney(raw.String())
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseInventory parses a stock count. An empty value means "not tracked";
// negative values mean unlimited.
func ParseInventory(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, ErrInvalidInventory
	}
	return &n, nil
}
