package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"gorm.io/gorm"
)

// Storefront-facing messages shared with the cart and wishlist.
const (
	MsgProductNotFound = "Product not found."
	MsgProductInactive = "This product is currently unavailable."
	MsgSizeNotFound    = "Size not found."
	MsgSizeMismatch    = "This size does not belong to the selected product."
	MsgSizeExists      = "This size already exists for the product."
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the catalog to the storefront, to admins and to the cart as a stock ledger.
type Service interface {
	ListProducts(ctx context.Context, params pagination.Params) (*pagination.Page[ProductSummary], error)
	GetProductBySlug(ctx context.Context, slug string) (*ProductDetail, error)
	ListCollections(ctx context.Context, params pagination.Params) (*pagination.Page[CollectionSummary], error)
	GetCollectionBySlug(ctx context.Context, slug string) (*CollectionDetail, error)
	ListCollectionProducts(ctx context.Context, slug string, params pagination.Params) (*pagination.Page[ProductSummary], error)

	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDetail, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDetail, error)
	AddSize(ctx context.Context, productID uuid.UUID, input SizeInput) (*SizeView, error)
	SetStock(ctx context.Context, sizeID uuid.UUID, quantity int) (*SizeView, error)

	AdminListCollections(ctx context.Context, params pagination.Params) (*pagination.Page[CollectionDetail], error)
	CreateCollection(ctx context.Context, input CollectionInput) (*CollectionDetail, error)
	UpdateCollection(ctx context.Context, id uuid.UUID, input CollectionUpdate) (*CollectionDetail, error)
	SetCollectionActive(ctx context.Context, id uuid.UUID, active bool) (*CollectionDetail, error)
	SetCollectionsActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error)
	DeleteCollection(ctx context.Context, id uuid.UUID) error

	ResolveProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ResolveLine(ctx context.Context, productID, sizeID uuid.UUID) (*Line, error)
	AvailableInTx(ctx context.Context, tx *gorm.DB, sizeID uuid.UUID) (int, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name           string
	Description    *string
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
	MainImage      *string
	IsActive       *bool
	CollectionID   *uuid.UUID
	Sizes          []SizeInput
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	IsActive       *bool
	Price          *decimal.Decimal
	CompareAtPrice *decimal.Decimal
	CollectionID   *uuid.UUID
}

// SizeInput declares a size label with its starting stock.
type SizeInput struct {
	Size     string
	Quantity int
}

type service struct {
	repo     *Repository
	tx       txRunner
	currency currency.Unit
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, tx txRunner, unit currency.Unit) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, currency: unit}, nil
}

func (s *service) ListProducts(ctx context.Context, params pagination.Params) (*pagination.Page[ProductSummary], error) {
	return s.listProducts(ctx, nil, params)
}

func (s *service) listProducts(ctx context.Context, collectionID *uuid.UUID, params pagination.Params) (*pagination.Page[ProductSummary], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListActive(ctx, collectionID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	summaries := make([]ProductSummary, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, newProductSummary(&rows[i], s.currency))
	}
	page := pagination.BuildPage(summaries, params.Limit, func(p ProductSummary) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &page, nil
}

func (s *service) GetProductBySlug(ctx context.Context, slug string) (*ProductDetail, error) {
	product, err := s.repo.FindActiveBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgProductNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return newProductDetail(product, s.currency), nil
}

// CreateProduct inserts the product and its sizes in one transaction, deriving a unique slug from the name.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDetail, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validatePrices(&input.Price, input.CompareAtPrice); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, size := range input.Sizes {
		if err := validateSize(size); err != nil {
			return nil, err
		}
		if _, dup := seen[size.Size]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("size %q listed twice", size.Size))
		}
		seen[size.Size] = struct{}{}
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	var productID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if input.CollectionID != nil {
			if _, err := findCollection(ctx, txRepo, *input.CollectionID); err != nil {
				return err
			}
		}
		slug, err := uniqueSlug(ctx, name, txRepo.SlugExists)
		if err != nil {
			return err
		}
		product := &models.Product{
			Name:           name,
			Slug:           slug,
			Description:    input.Description,
			Price:          input.Price.Round(2),
			CompareAtPrice: roundPtr(input.CompareAtPrice),
			MainImage:      input.MainImage,
			IsActive:       active,
			CollectionID:   input.CollectionID,
		}
		if err := txRepo.CreateProduct(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "products_slug_key") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "slug taken concurrently, retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		for _, in := range input.Sizes {
			size := &models.ProductSize{ProductID: product.ID, Size: strings.TrimSpace(in.Size), Quantity: in.Quantity}
			if err := txRepo.CreateSize(ctx, size); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert size")
			}
		}
		productID = product.ID
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return s.loadDetail(ctx, productID)
}

func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDetail, error) {
	if err := validatePrices(input.Price, input.CompareAtPrice); err != nil {
		return nil, err
	}
	if _, err := s.ResolveProduct(ctx, productID); err != nil && !pkgerrors.Is(err, pkgerrors.CodeInactive) {
		return nil, err
	}

	updates := map[string]any{}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Price != nil {
		updates["price"] = input.Price.Round(2)
	}
	if input.CompareAtPrice != nil {
		updates["compare_at_price"] = input.CompareAtPrice.Round(2)
	}
	if input.CollectionID != nil {
		if _, err := findCollection(ctx, s.repo, *input.CollectionID); err != nil {
			return nil, err
		}
		updates["collection_id"] = *input.CollectionID
	}
	if len(updates) > 0 {
		if err := s.repo.UpdateProduct(ctx, productID, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}
	}
	return s.loadDetail(ctx, productID)
}

func (s *service) AddSize(ctx context.Context, productID uuid.UUID, input SizeInput) (*SizeView, error) {
	if err := validateSize(input); err != nil {
		return nil, err
	}
	if _, err := s.ResolveProduct(ctx, productID); err != nil && !pkgerrors.Is(err, pkgerrors.CodeInactive) {
		return nil, err
	}
	size := &models.ProductSize{ProductID: productID, Size: strings.TrimSpace(input.Size), Quantity: input.Quantity}
	if err := s.repo.CreateSize(ctx, size); err != nil {
		if db.IsUniqueViolation(err, "product_sizes_product_size_key") {
			return nil, pkgerrors.New(pkgerrors.CodeDuplicate, MsgSizeExists)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert size")
	}
	view := newSizeView(size)
	return &view, nil
}

// SetStock overwrites the counter. Lowering it below what carts hold is allowed; carts are re-checked on their next mutation.
func (s *service) SetStock(ctx context.Context, sizeID uuid.UUID, quantity int) (*SizeView, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be >= 0")
	}
	affected, err := s.repo.SetQuantity(ctx, sizeID, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update stock")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgSizeNotFound)
	}
	size, err := s.repo.FindSize(ctx, sizeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load size")
	}
	view := newSizeView(size)
	return &view, nil
}

// ResolveProduct returns the product when it exists and is active.
// An inactive product is returned together with a CodeInactive error.
func (s *service) ResolveProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgProductNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return product, pkgerrors.New(pkgerrors.CodeInactive, MsgProductInactive)
	}
	return product, nil
}

// ResolveLine validates that the product is active and the size belongs to it.
func (s *service) ResolveLine(ctx context.Context, productID, sizeID uuid.UUID) (*Line, error) {
	product, err := s.ResolveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	size, err := s.repo.FindSize(ctx, sizeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgSizeNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load size")
	}
	if size.ProductID != product.ID {
		return nil, pkgerrors.New(pkgerrors.CodeSizeMismatch, MsgSizeMismatch)
	}
	return &Line{Product: product, Size: size}, nil
}

// AvailableInTx reads the stock counter through tx so the value is consistent with the caller's writes.
func (s *service) AvailableInTx(ctx context.Context, tx *gorm.DB, sizeID uuid.UUID) (int, error) {
	qty, err := s.repo.WithTx(tx).Available(ctx, sizeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, MsgSizeNotFound)
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock")
	}
	return qty, nil
}

func (s *service) loadDetail(ctx context.Context, productID uuid.UUID) (*ProductDetail, error) {
	product, err := s.repo.FindProductWithSizes(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgProductNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product detail")
	}
	return newProductDetail(product, s.currency), nil
}

func validatePrices(price, compareAt *decimal.Decimal) error {
	if price != nil && price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be >= 0")
	}
	if compareAt != nil && compareAt.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "compare_at_price must be >= 0")
	}
	return nil
}

func validateSize(in SizeInput) error {
	if strings.TrimSpace(in.Size) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "size is required")
	}
	if in.Quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be >= 0")
	}
	return nil
}

func roundPtr(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	r := v.Round(2)
	return &r
}
