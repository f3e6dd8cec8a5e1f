package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Variation is a purchasable configuration of a product.
type Variation struct {
	ID        int64            `json:"id" gorm:"primaryKey;autoIncrement:false"`
	ProductID int64            `json:"product_id" gorm:"not null;index:ix_variations_product_id"`
	Title     string           `json:"title" gorm:"type:varchar(120);not null"`
	Price     decimal.Decimal  `json:"price" gorm:"type:decimal(20,2);not null"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty" gorm:"type:decimal(20,2)"`
	Active    bool             `json:"active" gorm:"not null"`
	// Inventory is nil when stock is not tracked; negative means unlimited.
	Inventory *int64 `json:"inventory,omitempty"`
	// DefaultFor holds the product id on enforcer-created variations only.
	// Its unique index allows one default per product.
	DefaultFor *int64    `json:"-" gorm:"uniqueIndex:ux_variations_default_for"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"not null"`
}

func (Variation) TableName() string { return "variations" }

// EffectivePrice returns the sale price when one is set, otherwise the price.
// A zero sale price counts as unset.
func (v Variation) EffectivePrice() decimal.Decimal {
	if v.SalePrice != nil && !v.SalePrice.IsZero() {
		return *v.SalePrice
	}
	return v.Price
}

func (v Variation) OnSale() bool {
	return v.SalePrice != nil && !v.SalePrice.IsZero()
}

func (v Variation) Unlimited() bool {
	return v.Inventory != nil && *v.Inventory < 0
}

func (v Variation) InStock() bool {
	return v.Inventory == nil || *v.Inventory != 0
}
