package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, image *ProductImage) error
	FindByID(ctx context.Context, db *gorm.DB, productID, id int64) (*ProductImage, error)
	ListByProduct(ctx context.Context, db *gorm.DB, productID int64) ([]ProductImage, error)
	Delete(ctx context.Context, db *gorm.DB, productID, id int64) error
	DeleteByProduct(ctx context.Context, db *gorm.DB, productID int64) error
}
