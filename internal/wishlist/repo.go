package wishlist

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/shopfront-backend/internal/repo"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository encapsulates wishlist persistence.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a wishlist repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// FindByUser returns the user's wishlist or nil when none exists yet.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Wishlist, error) {
	var wl models.Wishlist
	err := r.base.DB(ctx).Where("user_id = ?", userID).Take(&wl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wl, nil
}

func (r *Repository) Create(ctx context.Context, wl *models.Wishlist) error {
	return r.base.DB(ctx).Omit(clause.Associations).Create(wl).Error
}

func (r *Repository) Touch(ctx context.Context, wishlistID uuid.UUID) error {
	return r.base.DB(ctx).
		Model(&models.Wishlist{}).
		Where("id = ?", wishlistID).
		UpdateColumn("updated_at", time.Now().UTC()).Error
}

// HasProduct reports whether the product is already saved on the wishlist.
func (r *Repository) HasProduct(ctx context.Context, wishlistID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.WishlistItem{}).
		Where("wishlist_id = ? AND product_id = ?", wishlistID, productID).
		Count(&count).Error
	return count > 0, err
}

// AddItem inserts an entry. Duplicates surface as unique violations on wishlist_items_wishlist_product_key.
func (r *Repository) AddItem(ctx context.Context, item *models.WishlistItem) error {
	return r.base.DB(ctx).Omit(clause.Associations).Create(item).Error
}

// ListItems returns the saved products with their sizes, newest first.
func (r *Repository) ListItems(ctx context.Context, wishlistID uuid.UUID) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	err := r.base.DB(ctx).
		Preload("Product.Sizes").
		Where("wishlist_id = ?", wishlistID).
		Order("added_at DESC").
		Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindItem loads an entry with its product, or nil when absent.
func (r *Repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.WishlistItem, error) {
	var item models.WishlistItem
	err := r.base.DB(ctx).Preload("Product.Sizes").Where("id = ?", itemID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveItem deletes the entry and reports how many rows went away.
func (r *Repository) RemoveItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	res := r.base.DB(ctx).Where("id = ?", itemID).Delete(&models.WishlistItem{})
	return res.RowsAffected, res.Error
}
