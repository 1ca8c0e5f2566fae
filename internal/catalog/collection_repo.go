package catalog

import (
	"context"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
	"github.com/google/uuid"
)

// FindCollection loads a collection by id regardless of its state.
func (r *Repository) FindCollection(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	var collection models.Collection
	if err := r.base.DB(ctx).First(&collection, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &collection, nil
}

// FindActiveCollectionBySlug loads an active collection by slug.
func (r *Repository) FindActiveCollectionBySlug(ctx context.Context, slug string) (*models.Collection, error) {
	var collection models.Collection
	err := r.base.DB(ctx).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&collection).Error
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

// CollectionNameTaken reports whether another collection already uses name, ignoring case.
func (r *Repository) CollectionNameTaken(ctx context.Context, name string, exclude uuid.UUID) (bool, error) {
	qb := r.base.DB(ctx).Model(&models.Collection{}).Where("LOWER(name) = LOWER(?)", name)
	if exclude != uuid.Nil {
		qb = qb.Where("id <> ?", exclude)
	}
	var count int64
	if err := qb.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CollectionSlugExists reports whether any collection already uses slug.
func (r *Repository) CollectionSlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.base.DB(ctx).Model(&models.Collection{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListCollections returns up to limit collections older than cursor, newest first.
// Inactive collections are included only when activeOnly is false.
func (r *Repository) ListCollections(ctx context.Context, activeOnly bool, cursor *pagination.Cursor, limit int) ([]models.Collection, error) {
	qb := r.base.DB(ctx).Model(&models.Collection{})
	if activeOnly {
		qb = qb.Where("is_active = ?", true)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var collections []models.Collection
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&collections).Error; err != nil {
		return nil, err
	}
	return collections, nil
}

// CreateCollection inserts a collection row.
func (r *Repository) CreateCollection(ctx context.Context, collection *models.Collection) error {
	return r.base.DB(ctx).Create(collection).Error
}

// UpdateCollection applies column updates to a collection and reports how many rows matched.
func (r *Repository) UpdateCollection(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	res := r.base.DB(ctx).Model(&models.Collection{}).Where("id = ?", id).Updates(updates)
	return res.RowsAffected, res.Error
}

// SetCollectionsActive flips is_active on every listed collection and returns the number of rows touched.
func (r *Repository) SetCollectionsActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error) {
	res := r.base.DB(ctx).Model(&models.Collection{}).Where("id IN ?", ids).Update("is_active", active)
	return res.RowsAffected, res.Error
}

// DetachProducts clears collection_id on the collection's products.
func (r *Repository) DetachProducts(ctx context.Context, collectionID uuid.UUID) error {
	return r.base.DB(ctx).
		Model(&models.Product{}).
		Where("collection_id = ?", collectionID).
		Update("collection_id", nil).Error
}

// DeleteCollection removes a collection and reports whether it existed.
func (r *Repository) DeleteCollection(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.base.DB(ctx).Where("id = ?", id).Delete(&models.Collection{})
	return res.RowsAffected > 0, res.Error
}
