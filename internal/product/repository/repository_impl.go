package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/storefront/internal/product/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Create inserts the product row only; categories are linked by ReplaceCategories.
func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	product.RefreshSearchKeys()
	return db.WithContext(ctx).Omit(clause.Associations).Create(product).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	product.RefreshSearchKeys()
	return db.WithContext(ctx).
		Model(&domain.Product{ID: product.ID}).
		Select("title", "description", "title_key", "description_key", "price", "active", "default_category_id", "updated_at").
		Updates(map[string]any{
			"title":               product.Title,
			"description":         product.Description,
			"title_key":           product.TitleKey,
			"description_key":     product.DescriptionKey,
			"price":               product.Price,
			"active":              product.Active,
			"default_category_id": product.DefaultCategoryID,
			"updated_at":          product.UpdatedAt,
		}).Error
}

func (r *repo) ReplaceCategories(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	assoc := db.WithContext(ctx).
		Model(&domain.Product{ID: product.ID}).
		Omit("Categories.*").
		Association("Categories")
	if len(product.Categories) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(product.Categories)
}

// Delete removes the product and its category links. Variations and images
// are removed by their own repositories in the same transaction.
func (r *repo) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	p := &domain.Product{ID: id}
	if err := db.WithContext(ctx).Model(p).Association("Categories").Clear(); err != nil {
		return err
	}
	return db.WithContext(ctx).Delete(p).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64, scope domain.Scope) (*domain.Product, error) {
	var p domain.Product
	stmt := db.WithContext(ctx).
		Preload("Categories", func(tx *gorm.DB) *gorm.DB { return tx.Order("categories.title ASC") }).
		Preload("DefaultCategory").
		Where("id = ?", id)
	if scope != domain.ScopeAll {
		stmt = stmt.Where("active = ?", true)
	}
	err := stmt.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Product, error) {
	var p domain.Product
	stmt := db.WithContext(ctx).Select("id", "price")
	// SQLite serializes writers on the database file and has no row locks.
	if db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	err := stmt.Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns the products matching search, ordered by id. Snowflake ids
// grow with insertion time.
func (r *repo) List(ctx context.Context, db *gorm.DB, search domain.Search) ([]domain.Product, error) {
	var items []domain.Product
	stmt := db.WithContext(ctx).
		Model(&domain.Product{}).
		Preload("Categories", func(tx *gorm.DB) *gorm.DB { return tx.Order("categories.title ASC") }).
		Preload("DefaultCategory")

	if search.ActiveOnly() {
		stmt = stmt.Where("active = ?", true)
	}
	if search.HasTerm() {
		match := db.Where("title_key LIKE ? ESCAPE '"+domain.LikeEscape+"'", search.Pattern).
			Or("description_key LIKE ? ESCAPE '"+domain.LikeEscape+"'", search.Pattern)
		if search.Price != nil {
			match = match.Or("price = ?", *search.Price)
		}
		stmt = stmt.Where(match)
	}

	if search.AfterID > 0 {
		stmt = stmt.Where("id > ?", search.AfterID)
	}
	if search.Limit > 0 {
		stmt = stmt.Limit(search.Limit)
	}

	if err := stmt.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
