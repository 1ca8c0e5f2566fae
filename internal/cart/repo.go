package cart

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/shopfront-backend/internal/repo"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists carts and their line items.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(conn)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

// FindCartByUser returns the user's cart, or nil when none was created yet.
func (r *Repository) FindCartByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.base.DB(ctx).Where("user_id = ?", userID).Take(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// CreateCart inserts an empty cart.
func (r *Repository) CreateCart(ctx context.Context, cart *models.Cart) error {
	return r.base.DB(ctx).Omit(clause.Associations).Create(cart).Error
}

// DeleteCartIfEmpty removes the cart when it holds no lines and reports whether it did.
// Run it inside a transaction: on Postgres the cart row stays locked until the line count is known.
func (r *Repository) DeleteCartIfEmpty(ctx context.Context, cartID uuid.UUID) (bool, error) {
	var cart models.Cart
	err := r.forUpdate(ctx).Where("id = ?", cartID).Take(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var lines int64
	if err := r.base.DB(ctx).Model(&models.CartItem{}).Where("cart_id = ?", cartID).Count(&lines).Error; err != nil {
		return false, err
	}
	if lines > 0 {
		return false, nil
	}
	res := r.base.DB(ctx).Where("id = ?", cartID).Delete(&models.Cart{})
	return res.RowsAffected > 0, res.Error
}

// TouchCart bumps the cart's updated_at.
func (r *Repository) TouchCart(ctx context.Context, cartID uuid.UUID) error {
	return r.base.DB(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		UpdateColumn("updated_at", time.Now().UTC()).Error
}

// ListItems returns the cart's lines with product and size, newest first.
func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.base.DB(ctx).
		Preload("Product").
		Preload("Size").
		Where("cart_id = ?", cartID).
		Order("added_at DESC").
		Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindItem loads a line with product and size, or nil when it does not exist.
func (r *Repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.base.DB(ctx).
		Preload("Product").
		Preload("Size").
		Where("id = ?", itemID).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// LockItem re-reads a bare line row. On Postgres the row is locked FOR UPDATE until the transaction ends.
func (r *Repository) LockItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.forUpdate(ctx).Where("id = ?", itemID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// LockLine re-reads the line for (cart, product, size), locking it on Postgres. Nil when absent.
func (r *Repository) LockLine(ctx context.Context, key LineKey) (*models.CartItem, error) {
	var item models.CartItem
	err := r.forUpdate(ctx).
		Where("cart_id = ? AND product_id = ? AND product_size_id = ?", key.CartID, key.ProductID, key.SizeID).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a line without touching associations.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.base.DB(ctx).Omit(clause.Associations).Create(item).Error
}

// SetQuantity overwrites a line's quantity.
func (r *Repository) SetQuantity(ctx context.Context, item *models.CartItem, qty int) error {
	now := time.Now().UTC()
	err := r.base.DB(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", item.ID).
		UpdateColumns(map[string]any{"quantity": qty, "updated_at": now}).Error
	if err != nil {
		return err
	}
	item.Quantity = qty
	item.UpdatedAt = now
	return nil
}

// DeleteItem removes a line and reports how many rows went away.
func (r *Repository) DeleteItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	res := r.base.DB(ctx).Where("id = ?", itemID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *Repository) forUpdate(ctx context.Context) *gorm.DB {
	q := r.base.DB(ctx)
	if db.IsPostgres(r.base.Raw()) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}
