package domain

import (
	"time"

	"github.com/shopspring/decimal"
	categorydomain "github.com/smallbiznis/storefront/internal/category/domain"
)

// Product is a catalog entry. Every saved product owns at least one variation.
type Product struct {
	ID                int64                     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title             string                    `json:"title" gorm:"type:varchar(120);not null"`
	Description       *string                   `json:"description,omitempty" gorm:"type:text"`
	// TitleKey and DescriptionKey are case-folded copies matched by search.
	TitleKey          string                    `json:"-" gorm:"type:varchar(480);not null"`
	DescriptionKey    string                    `json:"-" gorm:"type:text;not null"`
	Price             decimal.Decimal           `json:"price" gorm:"type:decimal(20,2);not null"`
	Active            bool                      `json:"active" gorm:"not null;index:ix_products_active"`
	Categories        []categorydomain.Category `json:"categories,omitempty" gorm:"many2many:product_categories;constraint:OnDelete:CASCADE"`
	DefaultCategoryID *int64                    `json:"default_category_id,omitempty"`
	DefaultCategory   *categorydomain.Category  `json:"default_category,omitempty" gorm:"foreignKey:DefaultCategoryID;constraint:OnDelete:SET NULL"`
	CreatedAt         time.Time                 `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time                 `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// RefreshSearchKeys recomputes TitleKey and DescriptionKey. SQLite's LOWER
// folds ASCII only, so folding happens here for every dialect.
func (p *Product) RefreshSearchKeys() {
	p.TitleKey = FoldText(p.Title)
	p.DescriptionKey = ""
	if p.Description != nil {
		p.DescriptionKey = FoldText(*p.Description)
	}
}
