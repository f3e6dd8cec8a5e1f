package domain

import (
	"context"
	"errors"
	"strconv"
	"time"

	productimagedomain "github.com/smallbiznis/storefront/internal/productimage/domain"
	variationdomain "github.com/smallbiznis/storefront/internal/variation/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Detail, error)
	Update(ctx context.Context, req UpdateRequest) (*Detail, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Detail, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
}

type ListRequest struct {
	Query     string
	Scope     Scope
	PageToken string
	PageSize  int
}

type ListResponse struct {
	Data     []Response          `json:"data"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type CreateRequest struct {
	Title             string   `json:"title" validate:"required,max=120"`
	Description       *string  `json:"description"`
	Price             string   `json:"price" validate:"required,money"`
	Active            *bool    `json:"active"`
	CategoryIDs       []string `json:"category_ids" validate:"omitempty,dive,snowflake"`
	DefaultCategoryID *string  `json:"default_category_id" validate:"omitempty,snowflake"`
}

type UpdateRequest struct {
	ID                string    `json:"-"`
	Title             *string   `json:"title" validate:"omitempty,min=1,max=120"`
	Description       *string   `json:"description"`
	Price             *string   `json:"price" validate:"omitempty,money"`
	Active            *bool     `json:"active"`
	CategoryIDs       *[]string `json:"category_ids" validate:"omitempty,dive,snowflake"`
	DefaultCategoryID *string   `json:"default_category_id" validate:"omitempty,snowflake"`
}

type CategoryRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type Response struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     *string       `json:"description,omitempty"`
	Price           string        `json:"price"`
	Active          bool          `json:"active"`
	Categories      []CategoryRef `json:"categories"`
	DefaultCategory *CategoryRef  `json:"default_category,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Detail is a product with its active variations and images.
type Detail struct {
	Response
	Variations []variationdomain.Response    `json:"variations"`
	Images     []productimagedomain.Response `json:"images"`
}

// DetailCacheKey names the cached Detail of a product. Writers to a product's
// variations or images bump its generation.
func DetailCacheKey(productID int64) string {
	return "product:detail:" + strconv.FormatInt(productID, 10)
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidTitle    = errors.New("invalid_title")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidScope    = errors.New("invalid_scope")
)
