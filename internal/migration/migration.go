package migration

import (
	"errors"
	"fmt"

	categorydomain "github.com/smallbiznis/storefront/internal/category/domain"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	productimagedomain "github.com/smallbiznis/storefront/internal/productimage/domain"
	variationdomain "github.com/smallbiznis/storefront/internal/variation/domain"
	"gorm.io/gorm"
)

// Models lists the catalog tables in dependency order.
func Models() []any {
	return []any{
		&categorydomain.Category{},
		&productdomain.Product{},
		&variationdomain.Variation{},
		&productimagedomain.ProductImage{},
	}
}

// AutoMigrate creates or updates the catalog schema, including the
// product_categories join table.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
