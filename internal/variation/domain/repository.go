package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, variation *Variation) error
	// CreateDefault inserts v unless the product already has a default and
	// reports whether a row was written.
	CreateDefault(ctx context.Context, db *gorm.DB, variation *Variation) (bool, error)
	Save(ctx context.Context, db *gorm.DB, variation *Variation) error
	CountByProduct(ctx context.Context, db *gorm.DB, productID int64) (int64, error)
	ListByProduct(ctx context.Context, db *gorm.DB, productID int64, activeOnly bool) ([]Variation, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]Variation, error)
	DeleteByProduct(ctx context.Context, db *gorm.DB, productID int64) error
}
