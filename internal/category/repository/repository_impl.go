package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/storefront/internal/category/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	return db.WithContext(ctx).Create(category).Error
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Category, error) {
	var c domain.Category
	err := db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]domain.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Category
	if err := db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]domain.Category, error) {
	var items []domain.Category
	stmt := db.WithContext(ctx).Model(&domain.Category{})
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	if err := stmt.Order("title ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
