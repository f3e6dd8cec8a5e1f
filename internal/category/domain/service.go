package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	GetBySlug(ctx context.Context, slug string) (*Response, error)
}

type CreateRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

type ListRequest struct {
	IncludeInactive bool
}

type Response struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

const MaxTitleLength = 120

var (
	ErrNotFound     = errors.New("not_found")
	ErrInvalidTitle = errors.New("invalid_title")
	ErrInvalidSlug  = errors.New("invalid_slug")
	ErrDuplicate    = errors.New("duplicate_category")
)
