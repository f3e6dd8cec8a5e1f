package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/storefront/internal/productimage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, image *domain.ProductImage) error {
	return db.WithContext(ctx).Create(image).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, productID, id int64) (*domain.ProductImage, error) {
	var img domain.ProductImage
	err := db.WithContext(ctx).Where("product_id = ? AND id = ?", productID, id).First(&img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *repo) ListByProduct(ctx context.Context, db *gorm.DB, productID int64) ([]domain.ProductImage, error) {
	var items []domain.ProductImage
	if err := db.WithContext(ctx).Where("product_id = ?", productID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, productID, id int64) error {
	return db.WithContext(ctx).Where("product_id = ? AND id = ?", productID, id).Delete(&domain.ProductImage{}).Error
}

func (r *repo) DeleteByProduct(ctx context.Context, db *gorm.DB, productID int64) error {
	return db.WithContext(ctx).Where("product_id = ?", productID).Delete(&domain.ProductImage{}).Error
}
