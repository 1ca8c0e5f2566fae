package wishlist

import (
	"time"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

// WishlistView is the read model for a user's wishlist.
type WishlistView struct {
	ID        *uuid.UUID         `json:"id"`
	Items     []WishlistItemView `json:"items"`
	ItemCount int                `json:"item_count"`
	UpdatedAt *time.Time         `json:"updated_at"`
}

// WishlistItemView is one saved product.
type WishlistItemView struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Image          *string   `json:"image"`
	Price          string    `json:"price"`
	CompareAtPrice *string   `json:"compare_at_price"`
	IsInStock      bool      `json:"is_in_stock"`
	AddedAt        time.Time `json:"added_at"`
}

func emptyView() *WishlistView {
	return &WishlistView{Items: []WishlistItemView{}}
}

func newItemView(item *models.WishlistItem, unit currency.Unit) WishlistItemView {
	p := &item.Product
	view := WishlistItemView{
		ID:        item.ID,
		ProductID: item.ProductID,
		Name:      p.Name,
		Slug:      p.Slug,
		Image:     p.MainImage,
		Price:     types.NewMoney(p.Price, unit).String(),
		IsInStock: p.InStock(),
		AddedAt:   item.AddedAt,
	}
	if p.CompareAtPrice != nil {
		s := types.NewMoney(*p.CompareAtPrice, unit).String()
		view.CompareAtPrice = &s
	}
	return view
}

func newView(wl *models.Wishlist, items []models.WishlistItem, unit currency.Unit) *WishlistView {
	id := wl.ID
	updated := wl.UpdatedAt
	view := &WishlistView{
		ID:        &id,
		Items:     make([]WishlistItemView, 0, len(items)),
		ItemCount: len(items),
		UpdatedAt: &updated,
	}
	for i := range items {
		view.Items = append(view.Items, newItemView(&items[i], unit))
	}
	return view
}
