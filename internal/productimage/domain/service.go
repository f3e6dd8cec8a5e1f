package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, productID string) ([]Response, error)
	Delete(ctx context.Context, productID, imageID string) error
}

type CreateRequest struct {
	ProductID string `json:"-"`
	Filename  string `json:"filename"`
}

type Response struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	Path             string    `json:"path"`
	OriginalFilename string    `json:"original_filename"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewResponse(img *ProductImage) Response {
	return Response{
		ID:               snowflake.ID(img.ID).String(),
		ProductID:        snowflake.ID(img.ProductID).String(),
		Path:             img.Path,
		OriginalFilename: img.OriginalFilename,
		CreatedAt:        img.CreatedAt,
	}
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidFilename = errors.New("invalid_filename")
	ErrProductNotFound = errors.New("product_not_found")
)
