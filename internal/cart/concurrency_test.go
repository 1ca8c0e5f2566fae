package cart

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/angelmondragon/shopfront-backend/internal/dbtest"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// concurrentAdds fires n AddItem calls at once and returns the successes and the typed failures.
func concurrentAdds(t *testing.T, svc Service, user uuid.UUID, input AddItemInput, n int) (int32, []*pkgerrors.Error) {
	t.Helper()

	var (
		ok       atomic.Int32
		failures = make([]*pkgerrors.Error, n)
		start    = make(chan struct{})
		g        errgroup.Group
	)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			<-start
			_, err := svc.AddItem(context.Background(), user, input)
			if err == nil {
				ok.Add(1)
				return nil
			}
			typed := pkgerrors.As(err)
			if typed == nil {
				return err
			}
			failures[i] = typed
			return nil
		})
	}
	close(start)
	require.NoError(t, g.Wait())

	var out []*pkgerrors.Error
	for _, f := range failures {
		if f != nil {
			out = append(out, f)
		}
	}
	return ok.Load(), out
}

func TestConcurrentAddsNeverExceedStock(t *testing.T) {
	h := newHarness(t, Options{})
	user := uuid.New()
	product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 5}})
	input := AddItemInput{ProductID: product.ID, SizeID: dbtest.SizeID(t, product, "M"), Quantity: 3}

	ok, failures := concurrentAdds(t, h.svc, user, input, 2)
	require.EqualValues(t, 1, ok, "exactly one add of 3 fits in a stock of 5")
	require.Len(t, failures, 1)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, failures[0].Code())
	assert.Equal(t, StockShortage{Available: 5, Held: 3, Requested: 3}, failures[0].Details())

	view, err := h.svc.GetCart(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
}

func TestConcurrentSingleUnitAddsFillExactly(t *testing.T) {
	h := newHarness(t, Options{})
	user := uuid.New()
	product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"L": 7}})
	input := AddItemInput{ProductID: product.ID, SizeID: dbtest.SizeID(t, product, "L"), Quantity: 1}

	ok, failures := concurrentAdds(t, h.svc, user, input, 12)
	assert.EqualValues(t, 7, ok)
	require.Len(t, failures, 5)
	for _, f := range failures {
		assert.Equal(t, pkgerrors.CodeInsufficientStock, f.Code())
	}

	var lines []models.CartItem
	require.NoError(t, h.client.DB().Find(&lines).Error)
	require.Len(t, lines, 1, "concurrent adds must merge into a single line")
	assert.Equal(t, 7, lines[0].Quantity)

	var carts int64
	require.NoError(t, h.client.DB().Model(&models.Cart{}).Count(&carts).Error)
	assert.EqualValues(t, 1, carts, "first adds must share one cart")
	assert.Zero(t, h.locker.Len())
}

func TestConcurrentUpdatesAndAddsStayWithinStock(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	user := uuid.New()
	product := h.seed(t, dbtest.ProductSeed{Sizes: map[string]int{"M": 6}})
	sizeID := dbtest.SizeID(t, product, "M")

	item, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 1})
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			if i%2 == 0 {
				_, err := h.svc.UpdateQuantity(ctx, user, item.ID, 4)
				if err != nil && !pkgerrors.Is(err, pkgerrors.CodeInsufficientStock) {
					return err
				}
				return nil
			}
			_, err := h.svc.AddItem(ctx, user, AddItemInput{ProductID: product.ID, SizeID: sizeID, Quantity: 1})
			if err != nil && !pkgerrors.Is(err, pkgerrors.CodeInsufficientStock) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, h.lineQuantity(t, item.ID), 6)
}
