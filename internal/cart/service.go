package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/shopfront-backend/internal/catalog"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"
	"gorm.io/gorm"
)

const (
	msgItemNotFound = "Cart item not found."
	msgCartBusy     = "Cart is busy, please retry."
	msgLineConflict = "Cart changed concurrently, please retry."

	defaultLockWait = 5 * time.Second
)

const (
	opAddItem        = "add_item"
	opUpdateQuantity = "update_quantity"
	opRemoveItem     = "remove_item"
	opReadCart       = "read_cart"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockLedger is the read-only catalog surface the engine validates against.
type stockLedger interface {
	ResolveLine(ctx context.Context, productID, sizeID uuid.UUID) (*catalog.Line, error)
	AvailableInTx(ctx context.Context, tx *gorm.DB, sizeID uuid.UUID) (int, error)
}

// Service is the cart reservation engine.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartItemView, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartItemView, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
}

// AddItemInput is a request to put quantity units of (product, size) in the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	SizeID    uuid.UUID
	Quantity  int
}

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	LockWait time.Duration
	Currency currency.Unit
	Metrics  *metrics.CartMetrics
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	tx       txRunner
	ledger   stockLedger
	locker   Locker
	lockWait time.Duration
	currency currency.Unit
	metrics  *metrics.CartMetrics
	logg     *logger.Logger

	carts singleflight.Group
}

// NewService builds the engine on top of the cart store, the stock ledger and a line locker.
func NewService(repo *Repository, tx txRunner, ledger stockLedger, locker Locker, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if locker == nil {
		return nil, fmt.Errorf("line locker required")
	}
	if opts.LockWait <= 0 {
		opts.LockWait = defaultLockWait
	}
	if opts.Currency == (currency.Unit{}) {
		opts.Currency = currency.USD
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &service{
		repo:     repo,
		tx:       tx,
		ledger:   ledger,
		locker:   locker,
		lockWait: opts.LockWait,
		currency: opts.Currency,
		metrics:  opts.Metrics,
		logg:     opts.Logger,
	}, nil
}

// GetCart returns the cart with totals priced at read time. A user without a cart gets an empty view.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (view *CartView, err error) {
	defer s.observe(opReadCart, time.Now(), &err)

	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	cart, err := s.repo.FindCartByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart == nil {
		return emptyCartView(s.currency), nil
	}
	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	view, err = newCartView(cart, items, s.currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "price cart")
	}
	return view, nil
}

// AddItem merges quantity into the (product, size) line, creating the cart and the line as needed.
// The stock check is repeated under the line lock so concurrent adds can never exceed the available quantity.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (view *CartItemView, err error) {
	defer s.observe(opAddItem, time.Now(), &err)

	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	line, err := s.ledger.ResolveLine(ctx, input.ProductID, input.SizeID)
	if err != nil {
		return nil, err
	}

	// Without a cart nothing is held yet, so an over-stock request can be refused before the cart exists.
	current, err := s.repo.FindCartByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if current == nil && input.Quantity > line.Size.Quantity {
		key := LineKey{ProductID: input.ProductID, SizeID: input.SizeID}
		return nil, s.insufficientStock(ctx, key, line.Size.Quantity, 0, input.Quantity,
			fmt.Sprintf("Insufficient stock. Available: %d, already in cart: %d.", line.Size.Quantity, 0))
	}

	cart, created := current, false
	if cart == nil {
		if cart, created, err = s.resolveCart(ctx, userID); err != nil {
			return nil, err
		}
	}

	key := LineKey{CartID: cart.ID, ProductID: input.ProductID, SizeID: input.SizeID}
	ctx = s.logg.WithCartID(ctx, cart.ID.String())

	var (
		item      *models.CartItem
		available int
	)
	err = s.withLineLock(ctx, key, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)

			existing, err := txRepo.LockLine(ctx, key)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart line")
			}
			available, err = s.ledger.AvailableInTx(ctx, tx, input.SizeID)
			if err != nil {
				return err
			}

			held := 0
			if existing != nil {
				held = existing.Quantity
			}
			newQty := held + input.Quantity
			if newQty > available {
				return s.insufficientStock(ctx, key, available, held, input.Quantity,
					fmt.Sprintf("Insufficient stock. Available: %d, already in cart: %d.", available, held))
			}

			if existing == nil {
				existing = &models.CartItem{
					CartID:        cart.ID,
					ProductID:     input.ProductID,
					ProductSizeID: input.SizeID,
					Quantity:      newQty,
				}
				if err := txRepo.CreateItem(ctx, existing); err != nil {
					if db.IsUniqueViolation(err, "cart_items_cart_product_size_key") {
						return pkgerrors.Wrap(pkgerrors.CodeConflict, err, msgLineConflict)
					}
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart line")
				}
			} else if err := txRepo.SetQuantity(ctx, existing, newQty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
			if err := txRepo.TouchCart(ctx, cart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
			}
			item, err = reloadLine(ctx, txRepo, existing.ID)
			return err
		})
	})
	if err != nil {
		if created {
			s.discardNewCart(ctx, cart.ID)
		}
		return nil, asTyped(err, "add cart item")
	}

	out := newCartItemView(item, &item.Product, &item.Size, available, s.currency)
	return &out, nil
}

// UpdateQuantity replaces a line's quantity after re-checking stock under the line lock.
func (s *service) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (view *CartItemView, err error) {
	defer s.observe(opUpdateQuantity, time.Now(), &err)

	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgItemNotFound)
	}

	key := LineKey{CartID: item.CartID, ProductID: item.ProductID, SizeID: item.ProductSizeID}
	ctx = s.logg.WithCartID(ctx, item.CartID.String())

	var available int
	err = s.withLineLock(ctx, key, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)

			current, err := txRepo.LockItem(ctx, itemID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart line")
			}
			if current == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, msgItemNotFound)
			}
			available, err = s.ledger.AvailableInTx(ctx, tx, current.ProductSizeID)
			if err != nil {
				return err
			}
			if quantity > available {
				return s.insufficientStock(ctx, key, available, current.Quantity, quantity,
					fmt.Sprintf("Insufficient stock. Available: %d.", available))
			}
			if err := txRepo.SetQuantity(ctx, current, quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
			if err := txRepo.TouchCart(ctx, current.CartID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
			}
			item, err = reloadLine(ctx, txRepo, itemID)
			return err
		})
	})
	if err != nil {
		return nil, asTyped(err, "update cart item")
	}

	out := newCartItemView(item, &item.Product, &item.Size, available, s.currency)
	return &out, nil
}

// RemoveItem deletes a line. Removing an id that no longer exists succeeds.
func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (err error) {
	defer s.observe(opRemoveItem, time.Now(), &err)

	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}

	key := LineKey{CartID: item.CartID, ProductID: item.ProductID, SizeID: item.ProductSizeID}
	err = s.withLineLock(ctx, key, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			removed, err := txRepo.DeleteItem(ctx, itemID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
			}
			if removed == 0 {
				return nil
			}
			if err := txRepo.TouchCart(ctx, item.CartID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
			}
			return nil
		})
	})
	if err != nil {
		return asTyped(err, "remove cart item")
	}
	return nil
}

// ownedItem loads the line and checks it belongs to the user's cart.
// It returns (nil, nil) when the line does not exist and NotFound when it belongs to someone else.
func (s *service) ownedItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error) {
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if item == nil {
		return nil, nil
	}
	cart, err := s.repo.FindCartByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart == nil || cart.ID != item.CartID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgItemNotFound)
	}
	return item, nil
}

type resolvedCart struct {
	cart    *models.Cart
	created bool
}

// resolveCart returns the user's cart, creating it on first use.
// Concurrent first adds in this process share one lookup; a lost insert race falls back to re-reading.
// created is true only when this call alone inserted the cart.
func (s *service) resolveCart(ctx context.Context, userID uuid.UUID) (*models.Cart, bool, error) {
	v, err, shared := s.carts.Do(userID.String(), func() (any, error) {
		return s.findOrCreateCart(context.WithoutCancel(ctx), userID)
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(resolvedCart)
	return res.cart, res.created && !shared, nil
}

func (s *service) findOrCreateCart(ctx context.Context, userID uuid.UUID) (resolvedCart, error) {
	cart, err := s.repo.FindCartByUser(ctx, userID)
	if err != nil {
		return resolvedCart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart != nil {
		return resolvedCart{cart: cart}, nil
	}

	cart = &models.Cart{UserID: userID}
	if err := s.repo.CreateCart(ctx, cart); err != nil {
		if !db.IsUniqueViolation(err, "carts_user_id_key") {
			return resolvedCart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
		}
		existing, rerr := s.repo.FindCartByUser(ctx, userID)
		if rerr != nil || existing == nil {
			return resolvedCart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(err, rerr), "reload cart")
		}
		return resolvedCart{cart: existing}, nil
	}
	s.logg.Info(s.logg.WithCartID(ctx, cart.ID.String()), "cart.created")
	return resolvedCart{cart: cart, created: true}, nil
}

// discardNewCart drops a cart created by an add that then failed, unless another add already put a line in it.
func (s *service) discardNewCart(ctx context.Context, cartID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	var removed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		removed, err = s.repo.WithTx(tx).DeleteCartIfEmpty(ctx, cartID)
		return err
	})
	if err != nil {
		s.logg.Error(ctx, "cart.discard_failed", err)
		return
	}
	if removed {
		s.logg.Info(ctx, "cart.discarded")
	}
}

// reloadLine reads the written line back with its product and size, so views are priced under the lock.
func reloadLine(ctx context.Context, repo *Repository, itemID uuid.UUID) (*models.CartItem, error) {
	item, err := repo.FindItem(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart line")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgItemNotFound)
	}
	return item, nil
}

// withLineLock runs fn while holding the line lock, waiting at most lockWait for it.
func (s *service) withLineLock(ctx context.Context, key LineKey, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	started := time.Now()
	release, err := s.locker.Acquire(lockCtx, key.String())
	s.metrics.ObserveLockWait(s.locker.Backend(), time.Since(started))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.logg.Warn(s.logg.WithFields(s.logg.WithLockKey(ctx, key.String()), map[string]any{
				"lock_backend": s.locker.Backend(),
				"waited_ms":    time.Since(started).Milliseconds(),
			}), "cart.lock_timeout")
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgCartBusy)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire line lock")
	}
	defer release()

	return fn()
}

func (s *service) insufficientStock(ctx context.Context, key LineKey, available, held, requested int, message string) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"product_id": key.ProductID.String(),
		"size_id":    key.SizeID.String(),
		"available":  available,
		"held":       held,
		"requested":  requested,
	}), "cart.insufficient_stock")
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, message).
		WithDetails(StockShortage{Available: available, Held: held, Requested: requested})
}

func (s *service) observe(op string, started time.Time, errp *error) {
	s.metrics.ObserveOperation(op, outcomeOf(*errp), time.Since(started))
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	typed := pkgerrors.As(err)
	if typed == nil || pkgerrors.MetadataFor(typed.Code()).Retryable {
		return metrics.OutcomeError
	}
	return metrics.OutcomeRejected
}

func asTyped(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
