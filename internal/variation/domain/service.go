package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/storefront/internal/validation"
	"gorm.io/gorm"
)

// DefaultEnforcer guarantees a product has at least one variation. It runs
// inside the caller's transaction so the product write and the default
// variation commit or roll back together.
type DefaultEnforcer interface {
	EnsureDefault(ctx context.Context, tx *gorm.DB, productID int64, price decimal.Decimal) (*Variation, error)
}

type Service interface {
	ListByProduct(ctx context.Context, productID string) ([]Response, error)
	BatchEdit(ctx context.Context, req BatchEditRequest) (*BatchEditResponse, error)
}

type BatchEditRequest struct {
	ProductID string `json:"-"`
	Edits     []Edit `json:"edits"`
}

// Edit updates one variation, or creates one when ID is empty. ProductID is
// accepted for compatibility but always replaced by the route product.
type Edit struct {
	ID        string      `json:"id" validate:"omitempty,snowflake"`
	ProductID string      `json:"product_id"`
	Title     *string     `json:"title" validate:"omitempty,max=120"`
	Price     json.Number `json:"price" validate:"required,money"`
	SalePrice json.Number `json:"sale_price" validate:"omitempty,money"`
	Inventory json.Number `json:"inventory" validate:"omitempty,inventory"`
	Active    *bool       `json:"active"`

	decodeErrs []validation.FieldError
}

// UnmarshalJSON decodes each field on its own so a value of the wrong JSON
// type becomes a field error of this edit instead of failing the request.
func (e *Edit) UnmarshalJSON(data []byte) error {
	*e = Edit{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		e.decodeErrs = []validation.FieldError{{Code: "object", Message: "each edit must be a JSON object"}}
		return nil
	}

	fields := []struct {
		name    string
		target  any
		code    string
		message string
	}{
		{"id", &e.ID, "string", "must be a string"},
		{"product_id", &e.ProductID, "string", "must be a string"},
		{"title", &e.Title, "string", "must be a string"},
		{"price", &e.Price, "money", "must be a non-negative amount with at most 2 decimal places"},
		{"sale_price", &e.SalePrice, "money", "must be a non-negative amount with at most 2 decimal places"},
		{"inventory", &e.Inventory, "inventory", "must be a whole number; negative means unlimited"},
		{"active", &e.Active, "boolean", "must be true or false"},
	}
	for _, f := range fields {
		value, ok := raw[f.name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, f.target); err != nil {
			e.decodeErrs = append(e.decodeErrs, validation.FieldError{Field: f.name, Code: f.code, Message: f.message})
		}
	}
	return nil
}

// DecodeErrors lists the fields UnmarshalJSON could not decode, named
// relative to the edit. An empty Field means the edit was not an object.
func (e Edit) DecodeErrors() []validation.FieldError {
	return e.decodeErrs
}

type BatchEditResponse struct {
	Notice     string     `json:"notice"`
	Variations []Response `json:"data"`
}

const BatchEditNotice = "your inventory and pricing has been updated"

type Response struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	Title          string    `json:"title"`
	Price          string    `json:"price"`
	SalePrice      *string   `json:"sale_price,omitempty"`
	EffectivePrice string    `json:"effective_price"`
	Active         bool      `json:"active"`
	Inventory      *int64    `json:"inventory,omitempty"`
	Unlimited      bool      `json:"unlimited"`
	InStock        bool      `json:"in_stock"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func NewResponse(v *Variation) Response {
	resp := Response{
		ID:             snowflake.ID(v.ID).String(),
		ProductID:      snowflake.ID(v.ProductID).String(),
		Title:          v.Title,
		Price:          v.Price.StringFixed(validation.MoneyScale),
		EffectivePrice: v.EffectivePrice().StringFixed(validation.MoneyScale),
		Active:         v.Active,
		Inventory:      v.Inventory,
		Unlimited:      v.Unlimited(),
		InStock:        v.InStock(),
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
	if v.SalePrice != nil {
		sale := v.SalePrice.StringFixed(validation.MoneyScale)
		resp.SalePrice = &sale
	}
	return resp
}

// ValidationError carries every field error of a rejected batch.
type ValidationError struct {
	Errors []validation.FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Code))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Is lets callers match any batch rejection with errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

var (
	ErrValidationFailed = errors.New("validation_failed")
	ErrProductNotFound  = errors.New("product_not_found")
	ErrInvalidProductID = errors.New("invalid_product_id")
)
