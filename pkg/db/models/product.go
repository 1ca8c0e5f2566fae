package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the catalog listing a cart line points at.
type Product struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name           string           `gorm:"column:name;not null"`
	Slug           string           `gorm:"column:slug;not null;uniqueIndex:products_slug_key"`
	Description    *string          `gorm:"column:description"`
	Price          decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null"`
	CompareAtPrice *decimal.Decimal `gorm:"column:compare_at_price;type:numeric(10,2)"`
	MainImage      *string          `gorm:"column:main_image"`
	IsActive       bool             `gorm:"column:is_active;not null;index:products_is_active_created_idx,priority:1"`
	CollectionID   *uuid.UUID       `gorm:"column:collection_id;type:uuid;index:products_collection_id_idx"`
	Collection     *Collection      `gorm:"foreignKey:CollectionID;constraint:OnDelete:SET NULL"`
	Sizes          []ProductSize    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime;index:products_is_active_created_idx,priority:2"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// InStock reports whether any size has units left.
func (p Product) InStock() bool {
	for _, size := range p.Sizes {
		if size.Quantity > 0 {
			return true
		}
	}
	return false
}

// ProductSize carries the stock counter for one size of a product.
type ProductSize struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:product_sizes_product_size_key,priority:1"`
	Size      string    `gorm:"column:size;not null;uniqueIndex:product_sizes_product_size_key,priority:2"`
	Quantity  int       `gorm:"column:quantity;not null;default:0;check:product_sizes_quantity_check,quantity >= 0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *ProductSize) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
