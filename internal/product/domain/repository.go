package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	Update(ctx context.Context, db *gorm.DB, product *Product) error
	ReplaceCategories(ctx context.Context, db *gorm.DB, product *Product) error
	Delete(ctx context.Context, db *gorm.DB, id int64) error
	FindByID(ctx context.Context, db *gorm.DB, id int64, scope Scope) (*Product, error)
	// LockByID takes a row lock on the product for the rest of the transaction.
	LockByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	List(ctx context.Context, db *gorm.DB, search Search) ([]Product, error)
}
