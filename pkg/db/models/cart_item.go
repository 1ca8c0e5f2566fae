package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one (product, size) line of a cart.
type CartItem struct {
	ID            uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	CartID        uuid.UUID   `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:cart_items_cart_product_size_key,priority:1"`
	ProductID     uuid.UUID   `gorm:"column:product_id;type:uuid;not null;uniqueIndex:cart_items_cart_product_size_key,priority:2"`
	ProductSizeID uuid.UUID   `gorm:"column:product_size_id;type:uuid;not null;uniqueIndex:cart_items_cart_product_size_key,priority:3"`
	Quantity      int         `gorm:"column:quantity;not null;check:cart_items_quantity_check,quantity >= 1"`
	Product       Product     `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Size          ProductSize `gorm:"foreignKey:ProductSizeID;constraint:OnDelete:CASCADE"`
	AddedAt       time.Time   `gorm:"column:added_at;autoCreateTime"`
	UpdatedAt     time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
