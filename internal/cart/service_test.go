package cart

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/shopfront-backend/internal/catalog"
	"github.com/angelmondragon/shopfront-backend/internal/dbtest"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
	"gorm.io/gorm"
)

type harness struct {
	svc     Service
	client  *db.Client
	locker  *MemoryLocker
	catalog catalog.Service
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	client := dbtest.OpenSQLite(t)
	catalogSvc, err := catalog.NewService(catalog.NewRepository(client.DB()), client, currency.USD)
	require.NoError(t, err)
	locker := NewMemoryLocker()
	svc, err := NewService(NewRepository(client.DB()), client, catalogSvc, locker, opts)
	require.NoError(t, err)
	return &harness{svc: svc, client: client, locker: locker, catalog: catalogSvc}
}

// hookedLedger runs onAvailable inside the locked transaction before reading stock.
type hookedLedger struct {
	stockLedger
	onAvailable func(tx *gorm.DB) error
}

func (l hookedLedger) AvailableInTx(ctx context.Context, tx *gorm.DB, sizeID uuid.UUID) (int, error) {
	if l.onAvailable != nil {
		if err := l.onAvailable(tx); err != nil {
			return 0, err
		}
	}
	return l.stockLedger.AvailableInTx(ctx, tx, sizeID)
}

func newHookedHarness(t *testing.T, onAvailable func(tx *gorm.DB) error) *harness {
	t.Helper()
	h := newHarness(t, Options{})
	ledger := hookedLedger{stockLedger: h.catalog, onAvailable: onAvailable}
	svc, err := NewService(NewRepository(h.client.DB()), h.client, ledger, h.locker, Options{})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) cartCount(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var carts int64
	require.NoError(t, h.client.DB().Model(&models.Cart{}).Where("user_id = ?", userID).Count(&carts).Error)
	return carts
}

func (h *harness) seed(t *testing.T, seed dbtest.ProductSeed) *models.Product {
	t.Helper()
	return dbtest.SeedProduct(t, h.client.DB(), seed)
}

func (h *harness) lineQuantity(t *testing.T, itemID uuid.UUID) int {
	t.Helper()
	var item models.CartItem
	require.NoError(t, h.client.DB().Take(&item, "id = ?", itemID).Error)
	return item.Quantity
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "message: %s", typed.Message())
	return typed
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	repo := &Repository{}
	client := &db.Client{}
	locker := NewMemoryLocker()
	ledger := catalogStub{}

	_, err := NewService(nil, client, ledger, locker, Options{})
	require.Error(t, err)
	_, err = NewService(repo, nil, ledger, locker, Options{})
	require.Error(t, err)
	_, err = NewService(repo, client, nil, locker, Options{})
	require.Error(t, err)
	_, err = NewService(repo, client, ledger, nil, Options{})
	require.Error(t, err)
	_, err = NewService(repo, client, ledger, locker, Options{})
	require.NoError(t, err)
}

func TestGetCartWithoutCartReturnsEmptyView(t *testing.T) {
	h := newHarness(t, Options{})

	view, err := h.svc.GetCart(context.Background(), uuid.New())
	require.NoError(t, err)

	want := &CartView{Items: []CartItemView{}, Total: "0.00", Currency: "USD"}
	if diff := cmp.Diff(want, view); diff != "" {
		t.Fatalf("empty cart mismatch (-want +got):\n%s", diff)
	}

	_, err = h.svc.GetCart(context.Background(), uuid.Nil)
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestAddItemCreatesCartAndMergesLines(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	user := uuid.New()
	shirt := h.seed(t, dbtest.ProductSeed{Name: "Oxford Shirt", Price: "25.00", Sizes: map[string]int{"M": 10}})
	sizeID := dbtest.SizeID(t, shirt, "M")

	first, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: shirt.ID, SizeID: sizeID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Quantity)
	assert.Equal(t, 10, first.AvailableStock)
	assert.Equal(t, "50.00", first.Subtotal)

	second, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: shirt.ID, SizeID: sizeID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same product and size must merge into one line")
	assert.Equal(t, 4, second.Quantity)

	var carts int64
	require.NoError(t, h.client.DB().Model(&models.Cart{}).Where("user_id = ?", user).Count(&carts).Error)
	assert.EqualValues(t, 1, carts)

	view, err := h.svc.GetCart(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, view.ID)
	require.Len(t, view.Items, 1)

	want := CartItemView{
		ID:             first.ID,
		ProductID:      shirt.ID,
		ProductName:    "Oxford Shirt",
		ProductSlug:    shirt.Slug,
		ProductImage:   shirt.MainImage,
		Price:          "25.00",
		SizeID:         sizeID,
		Size:           "M",
		Quantity:       4,
		AvailableStock: 10,
		Subtotal:       "100.00",
	}
	if diff := cmp.Diff(want, view.Items[0], cmpopts.IgnoreFields(CartItemView{}, "AddedAt", "UpdatedAt")); diff != "" {
		t.Fatalf("cart line mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "100.00", view.Total)
	assert.Equal(t, 1, view.ItemCount)
}

func TestGetCartTotalsAcrossLines(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	user := uuid.New()
	shirt := h.seed(t, dbtest.ProductSeed{Price: "19.99", Sizes: map[string]int{"S": 5, "L": 5}})
	beanie := h.seed(t, dbtest.ProductSeed{Price: "7.50", Sizes: map[string]int{"OS": 3}})

	for _, in := range []AddItemInput{
		{ProductID: shirt.ID, SizeID: dbtest.SizeID(t, shirt, "S"), Quantity: 2},
		{ProductID: shirt.ID, SizeID: dbtest.SizeID(t, shirt, "L"), Quantity: 1},
		{ProductID: beanie.ID, SizeID: dbtest.SizeID(t, beanie, "OS"), Quantity: 3},
	} {
		_, err := h.svc.AddItem(ctx, user, in)
		require.NoError(t, err)
	}

	view, err := h.svc.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, view.ItemCount)
	assert.Equal(t, "82.47", view.Total)
	require.NotNil(t, view.UpdatedAt)

	// price changes apply on the next read
	require.NoError(t, h.client.DB().Model(&models.Product{}).Where("id = ?", beanie.ID).Update("price", decimal.NewFromInt(10)).Error)
	view, err = h.svc.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "89.97", view.Total)
}

func TestAddItemRejectsBeyondStock(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	user := uuid.New()
	product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 5}})
	sizeID := dbtest.SizeID(t, product, "M")

	item, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 3})
	require.NoError(t, err)

	_, err = h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 3})
	typed := requireCode(t, err, pkgerrors.CodeInsufficientStock)
	assert.Equal(t, "Insufficient stock. Available: 5, already in cart: 3.", typed.Message())
	assert.Equal(t, StockShortage{Available: 5, Held: 3, Requested: 3}, typed.Details())
	assert.Equal(t, 3, h.lineQuantity(t, item.ID))

	_, err = h.svc.AddItem(ctx, uuid.New(), AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 6})
	typed = requireCode(t, err, pkgerrors.CodeInsufficientStock)
	assert.Equal(t, "Insufficient stock. Available: 5, already in cart: 0.", typed.Message())

	filled, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, filled.Quantity)
}

func TestAddItemPreChecks(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	user := uuid.New()
	shirt := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 5}})
	hat := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"OS": 5}})
	retired := h.seed(t, dbtest.ProductSeed{Inactive: true, Sizes: map[string]int{"M": 5}})

	cases := []struct {
		name  string
		input AddItemInput
		code  pkgerrors.Code
	}{
		{"zero quantity", AddItemInput{ProductID: shirt.ID, SizeID: dbtest.SizeID(t, shirt, "M"), Quantity: 0}, pkgerrors.CodeValidation},
		{"negative quantity", AddItemInput{ProductID: shirt.ID, SizeID: dbtest.SizeID(t, shirt, "M"), Quantity: -2}, pkgerrors.CodeValidation},
		{"unknown product", AddItemInput{ProductID: uuid.New(), SizeID: dbtest.SizeID(t, shirt, "M"), Quantity: 1}, pkgerrors.CodeNotFound},
		{"unknown size", AddItemInput{ProductID: shirt.ID, SizeID: uuid.New(), Quantity: 1}, pkgerrors.CodeNotFound},
		{"inactive product", AddItemInput{ProductID: retired.ID, SizeID: dbtest.SizeID(t, retired, "M"), Quantity: 1}, pkgerrors.CodeInactive},
		{"size of another product", AddItemInput{ProductID: shirt.ID, SizeID: dbtest.SizeID(t, hat, "OS"), Quantity: 1}, pkgerrors.CodeSizeMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.AddItem(ctx, user, tc.input)
			requireCode(t, err, tc.code)
		})
	}

	// rejected requests never create the cart
	var carts int64
	require.NoError(t, h.client.DB().Model(&models.Cart{}).Count(&carts).Error)
	assert.Zero(t, carts)
}

func TestFailedFirstAddLeavesNoCart(t *testing.T) {
	ctx := context.Background()

	t.Run("over stock before locking", func(t *testing.T) {
		h := newHarness(t, Options{})
		user := uuid.New()
		product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 5}})

		_, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: dbtest.SizeID(t, product, "M"), Quantity: 9})
		typed := requireCode(t, err, pkgerrors.CodeInsufficientStock)
		assert.Equal(t, StockShortage{Available: 5, Held: 0, Requested: 9}, typed.Details())

		assert.Zero(t, h.cartCount(t, user))
		view, err := h.svc.GetCart(ctx, user)
		require.NoError(t, err)
		assert.Nil(t, view.ID)
	})

	t.Run("stock drops under the lock", func(t *testing.T) {
		var sizeID uuid.UUID
		h := newHookedHarness(t, func(tx *gorm.DB) error {
			return tx.Model(&models.ProductSize{}).Where("id = ?", sizeID).Update("quantity", 1).Error
		})
		user := uuid.New()
		product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 5}})
		sizeID = dbtest.SizeID(t, product, "M")

		_, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 3})
		typed := requireCode(t, err, pkgerrors.CodeInsufficientStock)
		assert.Equal(t, "Insufficient stock. Available: 1, already in cart: 0.", typed.Message())

		assert.Zero(t, h.cartCount(t, user))
		view, err := h.svc.GetCart(ctx, user)
		require.NoError(t, err)
		assert.Nil(t, view.ID)
	})

	t.Run("store failure under the lock", func(t *testing.T) {
		h := newHookedHarness(t, func(*gorm.DB) error {
			return pkgerrors.New(pkgerrors.CodeDependency, "stock read failed")
		})
		user := uuid.New()
		product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 5}})

		_, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: dbtest.SizeID(t, product, "M"), Quantity: 1})
		requireCode(t, err, pkgerrors.CodeDependency)
		assert.Zero(t, h.cartCount(t, user))
	})

	t.Run("existing empty cart is kept", func(t *testing.T) {
		h := newHarness(t, Options{})
		user := uuid.New()
		product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 5}})
		sizeID := dbtest.SizeID(t, product, "M")

		item, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 1})
		require.NoError(t, err)
		require.NoError(t, h.svc.RemoveItem(ctx, user, item.ID))

		_, err = h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 6})
		requireCode(t, err, pkgerrors.CodeInsufficientStock)
		assert.EqualValues(t, 1, h.cartCount(t, user))
	})
}

func TestWriteViewsArePricedUnderTheLock(t *testing.T) {
	var productID uuid.UUID
	price := "30.00"
	h := newHookedHarness(t, func(tx *gorm.DB) error {
		return tx.Model(&models.Product{}).Where("id = ?", productID).Update("price", decimal.RequireFromString(price)).Error
	})
	ctx := context.Background()
	user := uuid.New()
	product := h.seed(t, dbtest.ProductSeed{Price: "10.00", Sizes: map[string]int{"M": 5}})
	productID = product.ID
	sizeID := dbtest.SizeID(t, product, "M")

	added, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "30.00", added.Price)
	assert.Equal(t, "30.00", added.Subtotal)

	price = "12.50"
	updated, err := h.svc.UpdateQuantity(ctx, user, added.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "12.50", updated.Price)
	assert.Equal(t, "25.00", updated.Subtotal)

	view, err := h.svc.GetCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, updated.Subtotal, view.Items[0].Subtotal)
}

func TestUpdateQuantity(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	user := uuid.New()
	product := h.seed(t, dbtest.ProductSeed{Price: "4.00", Sizes: map[string]int{"M": 5}})
	sizeID := dbtest.SizeID(t, product, "M")

	item, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 2})
	require.NoError(t, err)

	updated, err := h.svc.UpdateQuantity(ctx, user, item.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)
	assert.Equal(t, "20.00", updated.Subtotal)

	_, err = h.svc.UpdateQuantity(ctx, user, item.ID, 6)
	typed := requireCode(t, err, pkgerrors.CodeInsufficientStock)
	assert.Equal(t, "Insufficient stock. Available: 5.", typed.Message())
	assert.Equal(t, StockShortage{Available: 5, Held: 5, Requested: 6}, typed.Details())
	assert.Equal(t, 5, h.lineQuantity(t, item.ID))

	lowered, err := h.svc.UpdateQuantity(ctx, user, item.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, lowered.Quantity)

	_, err = h.svc.UpdateQuantity(ctx, user, item.ID, 0)
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, 1, h.lineQuantity(t, item.ID))

	_, err = h.svc.UpdateQuantity(ctx, user, uuid.New(), 1)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestForeignItemsAreInvisible(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()
	product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 5}})

	item, err := h.svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, SizeID: dbtest.SizeID(t, product, "M"), Quantity: 1})
	require.NoError(t, err)

	_, err = h.svc.UpdateQuantity(ctx, stranger, item.ID, 2)
	typed := requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, msgItemNotFound, typed.Message())

	err = h.svc.RemoveItem(ctx, stranger, item.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	assert.Equal(t, 1, h.lineQuantity(t, item.ID))
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	user := uuid.New()
	product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 5}})

	item, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: dbtest.SizeID(t, product, "M"), Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, h.svc.RemoveItem(ctx, user, item.ID))
	require.NoError(t, h.svc.RemoveItem(ctx, user, item.ID))
	require.NoError(t, h.svc.RemoveItem(ctx, user, uuid.New()))

	view, err := h.svc.GetCart(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, view.ID, "the cart outlives its items")
	assert.Empty(t, view.Items)
	assert.Equal(t, "0.00", view.Total)
	assert.Zero(t, h.locker.Len())
}

func TestLockTimeoutSurfacesAsBusy(t *testing.T) {
	h := newHarness(t, Options{LockWait: 20 * time.Millisecond})
	ctx := context.Background()
	user := uuid.New()
	product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 5}})
	sizeID := dbtest.SizeID(t, product, "M")

	item, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 1})
	require.NoError(t, err)

	var cart models.Cart
	require.NoError(t, h.client.DB().Take(&cart, "user_id = ?", user).Error)
	key := LineKey{CartID: cart.ID, ProductID: product.ID, SizeID: sizeID}
	release, err := h.locker.Acquire(ctx, key.String())
	require.NoError(t, err)
	defer release()

	_, err = h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 1})
	typed := requireCode(t, err, pkgerrors.CodeDependency)
	assert.Equal(t, msgCartBusy, typed.Message())

	_, err = h.svc.UpdateQuantity(ctx, user, item.ID, 3)
	requireCode(t, err, pkgerrors.CodeDependency)
	assert.Equal(t, 1, h.lineQuantity(t, item.ID))
}

func TestOperationsAreMeasured(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness(t, Options{Metrics: metrics.NewCartMetrics(reg)})
	ctx := context.Background()
	user := uuid.New()
	product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 1}})
	sizeID := dbtest.SizeID(t, product, "M")

	_, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 1})
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 1})
	requireCode(t, err, pkgerrors.CodeInsufficientStock)

	counts := operationCounts(t, reg)
	assert.Equal(t, 1.0, counts["add_item/ok"])
	assert.Equal(t, 1.0, counts["add_item/rejected"])
}

func operationCounts(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, fam := range families {
		if fam.GetName() != "cart_operation_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out[labels["op"]+"/"+labels["outcome"]] = m.GetCounter().GetValue()
		}
	}
	return out
}

type catalogStub struct {
	stockLedger
}
