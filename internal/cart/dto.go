package cart

import (
	"time"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

// CartView is the read model returned for a user's cart.
type CartView struct {
	ID        *uuid.UUID     `json:"id"`
	Items     []CartItemView `json:"items"`
	Total     string         `json:"total"`
	Currency  string         `json:"currency"`
	ItemCount int            `json:"item_count"`
	UpdatedAt *time.Time     `json:"updated_at"`
}

// CartItemView is one line with current product data.
type CartItemView struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	ProductSlug    string    `json:"product_slug"`
	ProductImage   *string   `json:"product_image"`
	Price          string    `json:"price"`
	SizeID         uuid.UUID `json:"size_id"`
	Size           string    `json:"size"`
	Quantity       int       `json:"quantity"`
	AvailableStock int       `json:"available_stock"`
	Subtotal       string    `json:"subtotal"`
	AddedAt        time.Time `json:"added_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StockShortage is attached to INSUFFICIENT_STOCK errors.
type StockShortage struct {
	Available int `json:"available"`
	Held      int `json:"held"`
	Requested int `json:"requested"`
}

func emptyCartView(unit currency.Unit) *CartView {
	return &CartView{
		Items:    []CartItemView{},
		Total:    types.ZeroMoney(unit).String(),
		Currency: unit.String(),
	}
}

// newCartItemView renders a line. available is passed separately so callers can use the value read under lock.
func newCartItemView(item *models.CartItem, product *models.Product, size *models.ProductSize, available int, unit currency.Unit) CartItemView {
	price := types.NewMoney(product.Price, unit)
	return CartItemView{
		ID:             item.ID,
		ProductID:      item.ProductID,
		ProductName:    product.Name,
		ProductSlug:    product.Slug,
		ProductImage:   product.MainImage,
		Price:          price.String(),
		SizeID:         item.ProductSizeID,
		Size:           size.Size,
		Quantity:       item.Quantity,
		AvailableStock: available,
		Subtotal:       price.Times(item.Quantity).String(),
		AddedAt:        item.AddedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

func newCartView(cart *models.Cart, items []models.CartItem, unit currency.Unit) (*CartView, error) {
	id := cart.ID
	updated := cart.UpdatedAt
	view := &CartView{
		ID:        &id,
		Items:     make([]CartItemView, 0, len(items)),
		Currency:  unit.String(),
		ItemCount: len(items),
		UpdatedAt: &updated,
	}
	total := types.ZeroMoney(unit)
	for i := range items {
		item := &items[i]
		view.Items = append(view.Items, newCartItemView(item, &item.Product, &item.Size, item.Size.Quantity, unit))
		var err error
		total, err = total.Add(types.NewMoney(item.Product.Price, unit).Times(item.Quantity))
		if err != nil {
			return nil, err
		}
	}
	view.Total = total.String()
	return view, nil
}
