package domain

import "time"

// ProductImage records where an uploaded image of a product is stored.
type ProductImage struct {
	ID               int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	ProductID        int64     `json:"product_id" gorm:"not null;index:ix_product_images_product_id"`
	Path             string    `json:"path" gorm:"type:varchar(255);not null;uniqueIndex:ux_product_images_path"`
	OriginalFilename string    `json:"original_filename" gorm:"type:varchar(255);not null"`
	CreatedAt        time.Time `json:"created_at" gorm:"not null"`
}

func (ProductImage) TableName() string { return "product_images" }
