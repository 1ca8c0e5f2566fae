package catalog

import (
	"time"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

// ProductSummary is the storefront listing shape.
type ProductSummary struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	Price          string     `json:"price"`
	CompareAtPrice *string    `json:"compare_at_price"`
	Currency       string     `json:"currency"`
	MainImage      *string    `json:"main_image"`
	IsInStock      bool       `json:"is_in_stock"`
	CollectionID   *uuid.UUID `json:"collection_id"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ProductDetail adds description and per-size stock to the summary.
type ProductDetail struct {
	ProductSummary
	Description *string    `json:"description"`
	IsActive    bool       `json:"is_active"`
	Sizes       []SizeView `json:"sizes"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SizeView exposes one size with its stock counter.
type SizeView struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity"`
	IsInStock bool      `json:"is_in_stock"`
}

// CollectionSummary is the storefront listing shape of a collection.
type CollectionSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"-"`
}

// CollectionDetail adds state and timestamps to the summary.
type CollectionDetail struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	ImageURL  string    `json:"image_url"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Line is a validated (product, size) pair ready to be put in a cart.
type Line struct {
	Product *models.Product
	Size    *models.ProductSize
}

func newProductSummary(p *models.Product, unit currency.Unit) ProductSummary {
	summary := ProductSummary{
		ID:           p.ID,
		Name:         p.Name,
		Slug:         p.Slug,
		Price:        types.NewMoney(p.Price, unit).String(),
		Currency:     unit.String(),
		MainImage:    p.MainImage,
		IsInStock:    p.InStock(),
		CollectionID: p.CollectionID,
		CreatedAt:    p.CreatedAt,
	}
	if p.CompareAtPrice != nil {
		v := types.NewMoney(*p.CompareAtPrice, unit).String()
		summary.CompareAtPrice = &v
	}
	return summary
}

func newProductDetail(p *models.Product, unit currency.Unit) *ProductDetail {
	sizes := make([]SizeView, 0, len(p.Sizes))
	for i := range p.Sizes {
		sizes = append(sizes, newSizeView(&p.Sizes[i]))
	}
	return &ProductDetail{
		ProductSummary: newProductSummary(p, unit),
		Description:    p.Description,
		IsActive:       p.IsActive,
		Sizes:          sizes,
		UpdatedAt:      p.UpdatedAt,
	}
}

func newSizeView(s *models.ProductSize) SizeView {
	return SizeView{
		ID:        s.ID,
		ProductID: s.ProductID,
		Size:      s.Size,
		Quantity:  s.Quantity,
		IsInStock: s.Quantity > 0,
	}
}

func newCollectionSummary(c *models.Collection) CollectionSummary {
	return CollectionSummary{ID: c.ID, Name: c.Name, Slug: c.Slug, ImageURL: c.ImageURL, CreatedAt: c.CreatedAt}
}

func newCollectionDetail(c *models.Collection) *CollectionDetail {
	return &CollectionDetail{
		ID:        c.ID,
		Name:      c.Name,
		Slug:      c.Slug,
		ImageURL:  c.ImageURL,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
