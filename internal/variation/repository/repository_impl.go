package repository

import (
	"context"

	"github.com/smallbiznis/storefront/internal/variation/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, variation *domain.Variation) error {
	return db.WithContext(ctx).Create(variation).Error
}

func (r *repo) CreateDefault(ctx context.Context, db *gorm.DB, variation *domain.Variation) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(variation)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Save overwrites every column, including nil sale price and inventory.
func (r *repo) Save(ctx context.Context, db *gorm.DB, variation *domain.Variation) error {
	return db.WithContext(ctx).Save(variation).Error
}

func (r *repo) CountByProduct(ctx context.Context, db *gorm.DB, productID int64) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Variation{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}

func (r *repo) ListByProduct(ctx context.Context, db *gorm.DB, productID int64, activeOnly bool) ([]domain.Variation, error) {
	var items []domain.Variation
	stmt := db.WithContext(ctx).Where("product_id = ?", productID)
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	if err := stmt.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]domain.Variation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Variation
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DeleteByProduct(ctx context.Context, db *gorm.DB, productID int64) error {
	return db.WithContext(ctx).Where("product_id = ?", productID).Delete(&domain.Variation{}).Error
}
