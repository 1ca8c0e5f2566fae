package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Collection groups products for storefront browsing.
type Collection struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:collections_name_key"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex:collections_slug_key"`
	ImageURL  string    `gorm:"column:image_url;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;index:collections_is_active_created_idx,priority:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:collections_is_active_created_idx,priority:2"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Collection) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
