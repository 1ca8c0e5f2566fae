package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MsgCollectionNotFound = "Collection not found."
	MsgCollectionExists   = "A collection with this name already exists."
	MsgCollectionIDs      = "Please provide a list of collection IDs."

	minCollectionName = 2
	maxCollectionName = 255
	maxBulkIDs        = 500
)

// CollectionInput holds the payload to create a collection.
type CollectionInput struct {
	Name     string
	ImageURL string
	IsActive *bool
}

// CollectionUpdate holds optional mutation values for a collection. Renaming regenerates the slug.
type CollectionUpdate struct {
	Name     *string
	ImageURL *string
	IsActive *bool
}

func (s *service) ListCollections(ctx context.Context, params pagination.Params) (*pagination.Page[CollectionSummary], error) {
	rows, err := s.pageCollections(ctx, true, params)
	if err != nil {
		return nil, err
	}
	items := make([]CollectionSummary, 0, len(rows))
	for i := range rows {
		items = append(items, newCollectionSummary(&rows[i]))
	}
	page := pagination.BuildPage(items, params.Limit, func(c CollectionSummary) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return &page, nil
}

// AdminListCollections pages through every collection, active or not.
func (s *service) AdminListCollections(ctx context.Context, params pagination.Params) (*pagination.Page[CollectionDetail], error) {
	rows, err := s.pageCollections(ctx, false, params)
	if err != nil {
		return nil, err
	}
	items := make([]CollectionDetail, 0, len(rows))
	for i := range rows {
		items = append(items, *newCollectionDetail(&rows[i]))
	}
	page := pagination.BuildPage(items, params.Limit, func(c CollectionDetail) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return &page, nil
}

func (s *service) GetCollectionBySlug(ctx context.Context, slug string) (*CollectionDetail, error) {
	collection, err := s.activeCollection(ctx, slug)
	if err != nil {
		return nil, err
	}
	return newCollectionDetail(collection), nil
}

// ListCollectionProducts pages through the active products of an active collection.
func (s *service) ListCollectionProducts(ctx context.Context, slug string, params pagination.Params) (*pagination.Page[ProductSummary], error) {
	collection, err := s.activeCollection(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.listProducts(ctx, &collection.ID, params)
}

func (s *service) CreateCollection(ctx context.Context, input CollectionInput) (*CollectionDetail, error) {
	name, err := normalizeCollectionName(input.Name)
	if err != nil {
		return nil, err
	}
	image := strings.TrimSpace(input.ImageURL)
	if image == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Image is required.")
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	var collection *models.Collection
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := ensureNameFree(ctx, txRepo, name, uuid.Nil); err != nil {
			return err
		}
		slug, err := uniqueSlug(ctx, name, txRepo.CollectionSlugExists)
		if err != nil {
			return err
		}
		collection = &models.Collection{Name: name, Slug: slug, ImageURL: image, IsActive: active}
		if err := txRepo.CreateCollection(ctx, collection); err != nil {
			return collectionWriteError(err, "db: insert collection")
		}
		return nil
	})
	if err != nil {
		return nil, typedOr(err, "create collection")
	}
	return newCollectionDetail(collection), nil
}

func (s *service) UpdateCollection(ctx context.Context, id uuid.UUID, input CollectionUpdate) (*CollectionDetail, error) {
	var collection *models.Collection
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		current, err := findCollection(ctx, txRepo, id)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if input.Name != nil {
			name, err := normalizeCollectionName(*input.Name)
			if err != nil {
				return err
			}
			if name != current.Name {
				if err := ensureNameFree(ctx, txRepo, name, id); err != nil {
					return err
				}
				slug, err := uniqueSlug(ctx, name, txRepo.CollectionSlugExists)
				if err != nil {
					return err
				}
				updates["name"] = name
				updates["slug"] = slug
			}
		}
		if input.ImageURL != nil {
			image := strings.TrimSpace(*input.ImageURL)
			if image == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "Image is required.")
			}
			updates["image_url"] = image
		}
		if input.IsActive != nil {
			updates["is_active"] = *input.IsActive
		}
		if len(updates) > 0 {
			if _, err := txRepo.UpdateCollection(ctx, id, updates); err != nil {
				return collectionWriteError(err, "db: update collection")
			}
		}
		collection, err = findCollection(ctx, txRepo, id)
		return err
	})
	if err != nil {
		return nil, typedOr(err, "update collection")
	}
	return newCollectionDetail(collection), nil
}

// SetCollectionActive shows or hides a single collection.
func (s *service) SetCollectionActive(ctx context.Context, id uuid.UUID, active bool) (*CollectionDetail, error) {
	return s.UpdateCollection(ctx, id, CollectionUpdate{IsActive: &active})
}

// SetCollectionsActive flips many collections at once. Unknown ids are skipped; the count of updated rows is returned.
func (s *service) SetCollectionsActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, MsgCollectionIDs)
	}
	if len(ids) > maxBulkIDs {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d collection ids per request", maxBulkIDs))
	}
	updated, err := s.repo.SetCollectionsActive(ctx, ids, active)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update collections")
	}
	return updated, nil
}

// DeleteCollection removes the collection. Its products stay in the catalog without a collection.
func (s *service) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.DetachProducts(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: detach products")
		}
		removed, err := txRepo.DeleteCollection(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete collection")
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeNotFound, MsgCollectionNotFound)
		}
		return nil
	})
	return typedOr(err, "delete collection")
}

func (s *service) pageCollections(ctx context.Context, activeOnly bool, params pagination.Params) ([]models.Collection, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListCollections(ctx, activeOnly, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list collections")
	}
	return rows, nil
}

func (s *service) activeCollection(ctx context.Context, slug string) (*models.Collection, error) {
	collection, err := s.repo.FindActiveCollectionBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgCollectionNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection")
	}
	return collection, nil
}

func findCollection(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Collection, error) {
	collection, err := repo.FindCollection(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgCollectionNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection")
	}
	return collection, nil
}

func ensureNameFree(ctx context.Context, repo *Repository, name string, exclude uuid.UUID) error {
	taken, err := repo.CollectionNameTaken(ctx, name, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check collection name")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeDuplicate, MsgCollectionExists)
	}
	return nil
}

// normalizeCollectionName collapses whitespace and enforces the length bounds.
func normalizeCollectionName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Collection name cannot be empty.")
	case n < minCollectionName:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Collection name must be at least 2 characters.")
	case n > maxCollectionName:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Collection name cannot exceed 255 characters.")
	}
	return name, nil
}

func collectionWriteError(err error, message string) error {
	if db.IsUniqueViolation(err, "collections_name_key") || db.IsUniqueViolation(err, "collections_name_lower_key") {
		return pkgerrors.Wrap(pkgerrors.CodeDuplicate, err, MsgCollectionExists)
	}
	if db.IsUniqueViolation(err, "collections_slug_key") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "slug taken concurrently, retry")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func typedOr(err error, message string) error {
	if err == nil || pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
