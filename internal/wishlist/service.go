package wishlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

const (
	msgAlreadySaved = "This product is already in your wishlist."
	msgItemNotFound = "Wishlist item not found."

	opAdd    = "wishlist_add"
	opRemove = "wishlist_remove"
	opRead   = "wishlist_read"
)

type productResolver interface {
	ResolveProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

// Service exposes business rules for wishlist management.
type Service interface {
	GetWishlist(ctx context.Context, userID uuid.UUID) (*WishlistView, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID) (*WishlistItemView, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
}

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	Repo     *Repository
	Products productResolver
	Currency currency.Unit
	Metrics  *metrics.CartMetrics
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	products productResolver
	currency currency.Unit
	metrics  *metrics.CartMetrics
	logg     *logger.Logger
}

// NewService builds a wishlist service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("wishlist repo is required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product resolver is required")
	}
	if params.Currency == (currency.Unit{}) {
		params.Currency = currency.USD
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		currency: params.Currency,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (s *service) GetWishlist(ctx context.Context, userID uuid.UUID) (view *WishlistView, err error) {
	defer s.observe(opRead, time.Now(), &err)

	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	wl, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	if wl == nil {
		return emptyView(), nil
	}
	items, err := s.repo.ListItems(ctx, wl.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist items")
	}
	return newView(wl, items, s.currency), nil
}

// AddItem saves an active product. Saving it twice is a Duplicate error.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID) (view *WishlistItemView, err error) {
	defer s.observe(opAdd, time.Now(), &err)

	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if _, err := s.products.ResolveProduct(ctx, productID); err != nil {
		return nil, err
	}

	wl, err := s.findOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.HasProduct(ctx, wl.ID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check wishlist")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeDuplicate, msgAlreadySaved)
	}

	item := &models.WishlistItem{WishlistID: wl.ID, ProductID: productID}
	if err := s.repo.AddItem(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "wishlist_items_wishlist_product_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicate, err, msgAlreadySaved)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert wishlist item")
	}
	if err := s.repo.Touch(ctx, wl.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch wishlist")
	}

	saved, err := s.repo.FindItem(ctx, item.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wishlist item")
	}
	if saved == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Wishlist changed concurrently, please retry.")
	}
	out := newItemView(saved, s.currency)
	return &out, nil
}

// RemoveItem deletes an entry. A missing entry is success; one on another user's wishlist is NotFound.
func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (err error) {
	defer s.observe(opRemove, time.Now(), &err)

	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist item")
	}
	if item == nil {
		return nil
	}
	wl, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	if wl == nil || wl.ID != item.WishlistID {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgItemNotFound)
	}

	removed, err := s.repo.RemoveItem(ctx, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete wishlist item")
	}
	if removed > 0 {
		if err := s.repo.Touch(ctx, wl.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch wishlist")
		}
	}
	return nil
}

func (s *service) findOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wishlist, error) {
	wl, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	if wl != nil {
		return wl, nil
	}

	wl = &models.Wishlist{UserID: userID}
	if err := s.repo.Create(ctx, wl); err != nil {
		if !db.IsUniqueViolation(err, "wishlists_user_id_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wishlist")
		}
		existing, rerr := s.repo.FindByUser(ctx, userID)
		if rerr != nil || existing == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(err, rerr), "reload wishlist")
		}
		return existing, nil
	}
	s.logg.Info(s.logg.WithField(ctx, "wishlist_id", wl.ID.String()), "wishlist.created")
	return wl, nil
}

func (s *service) observe(op string, started time.Time, errp *error) {
	outcome := metrics.OutcomeOK
	if err := *errp; err != nil {
		outcome = metrics.OutcomeError
		if typed := pkgerrors.As(err); typed != nil && !pkgerrors.MetadataFor(typed.Code()).Retryable {
			outcome = metrics.OutcomeRejected
		}
	}
	s.metrics.ObserveOperation(op, outcome, time.Since(started))
}
