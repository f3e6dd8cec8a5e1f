package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, category *Category) error
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Category, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]Category, error)
	List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]Category, error)
}
