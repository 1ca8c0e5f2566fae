package catalog

import (
	"context"

	"github.com/angelmondragon/shopfront-backend/internal/repo"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads and writes catalog rows, including the stock ledger.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

// FindProduct loads a product without its sizes.
func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.base.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductWithSizes loads a product and its sizes ordered by label.
func (r *Repository) FindProductWithSizes(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.base.DB(ctx).
		Preload("Sizes", orderSizes).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActiveBySlug loads an active product by slug with sizes.
func (r *Repository) FindActiveBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.base.DB(ctx).
		Preload("Sizes", orderSizes).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SlugExists reports whether any product already uses slug.
func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.base.DB(ctx).Model(&models.Product{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListActive returns up to limit active products older than cursor, newest first.
// A non-nil collectionID narrows the listing to that collection.
func (r *Repository) ListActive(ctx context.Context, collectionID *uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	qb := r.base.DB(ctx).
		Preload("Sizes", orderSizes).
		Where("is_active = ?", true)
	if collectionID != nil {
		qb = qb.Where("collection_id = ?", *collectionID)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var products []models.Product
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct inserts a product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.base.DB(ctx).Omit("Sizes").Create(product).Error
}

// UpdateProduct applies column updates to a product.
func (r *Repository) UpdateProduct(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error
}

// FindSize loads a single size row.
func (r *Repository) FindSize(ctx context.Context, id uuid.UUID) (*models.ProductSize, error) {
	var size models.ProductSize
	if err := r.base.DB(ctx).First(&size, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &size, nil
}

// CreateSize inserts a size row.
func (r *Repository) CreateSize(ctx context.Context, size *models.ProductSize) error {
	return r.base.DB(ctx).Create(size).Error
}

// SetQuantity overwrites the stock counter of a size.
func (r *Repository) SetQuantity(ctx context.Context, sizeID uuid.UUID, qty int) (int64, error) {
	res := r.base.DB(ctx).Model(&models.ProductSize{}).Where("id = ?", sizeID).Update("quantity", qty)
	return res.RowsAffected, res.Error
}

// Available reads the current stock counter of a size.
func (r *Repository) Available(ctx context.Context, sizeID uuid.UUID) (int, error) {
	var size models.ProductSize
	if err := r.base.DB(ctx).Select("id", "quantity").Take(&size, "id = ?", sizeID).Error; err != nil {
		return 0, err
	}
	return size.Quantity, nil
}

func orderSizes(db *gorm.DB) *gorm.DB {
	return db.Order("size ASC")
}
