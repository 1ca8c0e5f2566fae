package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WishlistItem links a wishlist to a saved product.
type WishlistItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WishlistID uuid.UUID `gorm:"column:wishlist_id;type:uuid;not null;uniqueIndex:wishlist_items_wishlist_product_key,priority:1"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:wishlist_items_product_id_idx;uniqueIndex:wishlist_items_wishlist_product_key,priority:2"`
	Product    Product   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	AddedAt    time.Time `gorm:"column:added_at;autoCreateTime"`
}

func (i *WishlistItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
