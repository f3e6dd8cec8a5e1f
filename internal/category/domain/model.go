package domain

import "time"

// Category groups products; it is shared, never owned.
type Category struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title       string    `json:"title" gorm:"type:varchar(120);not null;uniqueIndex:ux_categories_title"`
	Slug        string    `json:"slug" gorm:"type:varchar(140);not null;uniqueIndex:ux_categories_slug"`
	Description *string   `json:"description,omitempty" gorm:"type:text"`
	Active      bool      `json:"active" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;<-:create"`
}

func (Category) TableName() string { return "categories" }
