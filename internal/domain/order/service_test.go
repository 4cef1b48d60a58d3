package order_test

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/datelock"
	"github.com/xenking/canteen-orders/internal/domain/fault"
	"github.com/xenking/canteen-orders/internal/domain/menu"
	"github.com/xenking/canteen-orders/internal/domain/order"
	"github.com/xenking/canteen-orders/internal/domain/user"
	"github.com/xenking/canteen-orders/internal/storage/memory"
)

const (
	menuA = int64(1)
	menuB = int64(2)
)

var day = calendar.MustParse("2024-06-10")

type fixture struct {
	svc      *order.Service
	catalog  *memory.Catalog
	ledger   *memory.Ledger
	registry *datelock.Registry
}

// tick returns a clock that advances one second per call.
func tick(start time.Time) func() time.Time {
	var (
		mu  sync.Mutex
		cur = start
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := memory.NewCatalog()
	catalog.PutMenu(menu.Menu{ID: menuA, Name: "Schnitzel", Price: decimal.RequireFromString("12.90"), Active: true})
	catalog.PutMenu(menu.Menu{ID: menuB, Name: "Veggie Bowl", Price: decimal.RequireFromString("9.50"), Active: true})
	catalog.PutAvailability(menuA, day, nil)
	catalog.PutAvailability(menuB, day, ptr(2))
	catalog.PutUser(user.User{ID: 1, Firstname: "Ann", Lastname: "Lee", Role: user.RoleUser})
	catalog.PutUser(user.User{ID: 2, Firstname: "Bob", Lastname: "Kim", Role: user.RoleManager})
	catalog.PutUser(user.User{ID: 3, Firstname: "Cid", Lastname: "Ray", Role: user.RoleAdmin})

	locks := memory.NewLocks()
	ledger := memory.NewLedger(locks)
	svc, err := order.NewService(ledger, catalog, catalog.Users(),
		order.WithLocation(time.UTC),
		order.WithClock(tick(time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC))),
	)
	require.NoError(t, err)

	return &fixture{
		svc:      svc,
		catalog:  catalog,
		ledger:   ledger,
		registry: datelock.NewRegistry(locks),
	}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) place(t *testing.T, userID int64, menuID int64, qty int) (*order.Order, error) {
	t.Helper()
	return f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		CustomerName: fmt.Sprintf("user %d", userID),
		UserID:       &userID,
		Date:         day,
		MenuID:       menuID,
		Quantity:     &qty,
	})
}

// --- Placement ---

func TestPlaceOrder_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  order.PlaceOrderRequest
		want error
	}{
		{
			name: "missing customer name",
			req:  order.PlaceOrderRequest{MenuID: menuA},
			want: order.ErrCustomerNameRequired,
		},
		{
			name: "blank customer name",
			req:  order.PlaceOrderRequest{CustomerName: "   ", MenuID: menuA},
			want: order.ErrCustomerNameRequired,
		},
		{
			name: "missing menu",
			req:  order.PlaceOrderRequest{CustomerName: "Ann"},
			want: order.ErrMenuRequired,
		},
		{
			name: "zero quantity",
			req:  order.PlaceOrderRequest{CustomerName: "Ann", MenuID: menuA, Quantity: ptr(0)},
			want: order.ErrInvalidQuantity,
		},
		{
			name: "quantity beyond 32 bits",
			req:  order.PlaceOrderRequest{CustomerName: "Ann", MenuID: menuA, Quantity: ptr(math.MaxInt32 + 1)},
			want: order.ErrQuantityTooLarge,
		},
		{
			name: "negative quantity",
			req:  order.PlaceOrderRequest{CustomerName: "Ann", MenuID: menuA, Quantity: ptr(-1)},
			want: order.ErrInvalidQuantity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.PlaceOrder(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, fault.Validation)
			assert.Zero(t, f.ledger.Len())
		})
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t)

	o, err := f.place(t, 1, menuA, 1)
	require.NoError(t, err)
	assert.NotZero(t, o.ID)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("12.90")), o.Total.String())
	assert.Equal(t, day, o.Date)
	require.Len(t, o.Items, 1)
	assert.Equal(t, menuA, o.Items[0].MenuID)
	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.True(t, o.Items[0].PriceAtOrder.Equal(decimal.RequireFromString("12.90")))
	assert.Equal(t, o.ID, o.Items[0].OrderID)
}

func TestPlaceOrder_DefaultsQuantityAndDate(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		CustomerName: "Walk-in",
		MenuID:       menuA,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", o.Date.String())
	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Nil(t, o.UserID)
}

func TestPlaceOrder_TotalOutOfRange(t *testing.T) {
	f := newFixture(t)

	// 12.90 x 8,000,000 does not fit NUMERIC(10,2).
	_, err := f.place(t, 1, menuA, 8_000_000)
	require.ErrorIs(t, err, order.ErrQuantityTooLarge)
	assert.ErrorIs(t, err, fault.Validation)
	assert.Zero(t, f.ledger.Len())

	o, err := f.place(t, 1, menuA, 7_000_000)
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("90300000.00")), o.Total.String())
}

func TestPlaceOrder_TotalMultipliesQuantity(t *testing.T) {
	f := newFixture(t)

	o, err := f.place(t, 1, menuA, 3)
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("38.70")), o.Total.String())
}

func TestPlaceOrder_SecondOrderSameDay(t *testing.T) {
	f := newFixture(t)

	_, err := f.place(t, 1, menuA, 1)
	require.NoError(t, err)

	_, err = f.place(t, 1, menuA, 1)
	require.ErrorIs(t, err, order.ErrAlreadyOrdered)
	assert.ErrorIs(t, err, fault.Conflict)

	// A different menu does not help either.
	_, err = f.place(t, 1, menuB, 1)
	require.ErrorIs(t, err, order.ErrAlreadyOrdered)
	assert.Equal(t, 1, f.ledger.Len())
}

func TestPlaceOrder_DifferentDaysAllowed(t *testing.T) {
	f := newFixture(t)
	uid := int64(1)

	for _, d := range []calendar.Date{day, day.AddDays(1)} {
		_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
			CustomerName: "Ann", UserID: &uid, Date: d, MenuID: menuA,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.ledger.Len())
}

func TestPlaceOrder_AnonymousTwice(t *testing.T) {
	f := newFixture(t)

	for range 2 {
		_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
			CustomerName: "Guest",
			Date:         day,
			MenuID:       menuA,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.ledger.Len())
}

func TestPlaceOrder_MenuNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.place(t, 1, 99, 1)

	var mnf *order.MenuNotFoundError
	require.ErrorAs(t, err, &mnf)
	assert.Equal(t, int64(99), mnf.MenuID)
	assert.ErrorIs(t, err, fault.NotFound)
	assert.Zero(t, f.ledger.Len())
}

func TestPlaceOrder_Capacity(t *testing.T) {
	f := newFixture(t)

	_, err := f.place(t, 1, menuB, 1)
	require.NoError(t, err)
	_, err = f.place(t, 2, menuB, 1)
	require.NoError(t, err)

	view, err := f.svc.Capacity(context.Background(), menuB, day)
	require.NoError(t, err)
	require.NotNil(t, view.Remaining)
	assert.Equal(t, 0, *view.Remaining)

	_, err = f.place(t, 3, menuB, 1)
	var ce *order.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.SoldOut())
	assert.Equal(t, 0, ce.Remaining)
	assert.ErrorIs(t, err, fault.Capacity)
	assert.Equal(t, 2, f.ledger.Len())
}

func TestPlaceOrder_QuantityAboveRemaining(t *testing.T) {
	f := newFixture(t)
	f.catalog.PutAvailability(menuB, day, ptr(5))

	_, err := f.place(t, 1, menuB, 3)
	require.NoError(t, err)

	_, err = f.place(t, 2, menuB, 3)
	var ce *order.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Remaining)
	assert.False(t, ce.SoldOut())

	_, err = f.place(t, 2, menuB, 2)
	require.NoError(t, err)
}

func TestPlaceOrder_NoAvailabilityIsUncapped(t *testing.T) {
	f := newFixture(t)
	other := day.AddDays(7)
	uid := int64(1)

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		CustomerName: "Ann", UserID: &uid, Date: other, MenuID: menuB, Quantity: ptr(50),
	})
	require.NoError(t, err)
}

func TestPlaceOrder_PriceSnapshot(t *testing.T) {
	f := newFixture(t)

	placed, err := f.place(t, 1, menuA, 2)
	require.NoError(t, err)

	f.catalog.SetPrice(menuA, decimal.RequireFromString("15.00"))

	listings, err := f.svc.ListOrders(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	got := listings[0]
	assert.True(t, got.Order.Total.Equal(placed.Total))
	assert.True(t, got.Items[0].PriceAtOrder.Equal(decimal.RequireFromString("12.90")))

	// New orders pick up the new price.
	o, err := f.place(t, 2, menuA, 1)
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("15.00")))
}

// --- Cancellation and deletion ---

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.place(t, 1, menuB, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelOrder(ctx, 1, day))
	assert.Zero(t, f.ledger.Len())

	consumed, err := f.ledger.ConsumedQuantity(ctx, menuB, day)
	require.NoError(t, err)
	assert.Zero(t, consumed)

	// The freed capacity and the user's slot are available again.
	_, err = f.place(t, 1, menuB, 2)
	require.NoError(t, err)
}

func TestCancelOrder_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.svc.CancelOrder(context.Background(), 1, day)
	require.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.ErrorIs(t, err, fault.NotFound)
}

func TestCancelOrder_MissingArguments(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.svc.CancelOrder(context.Background(), 0, day), order.ErrUserRequired)
	require.ErrorIs(t, f.svc.CancelOrder(context.Background(), 1, calendar.Date{}), order.ErrDateRequired)
}

func TestLockScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.place(t, 1, menuA, 1)
	require.NoError(t, err)

	require.NoError(t, f.registry.LockDate(ctx, day, ptr(int64(3))))

	err = f.svc.CancelOrder(ctx, 1, day)
	require.ErrorIs(t, err, order.ErrDateLocked)
	assert.ErrorIs(t, err, fault.Forbidden)
	assert.Equal(t, 1, f.ledger.Len())

	require.NoError(t, f.svc.AdminDeleteOrder(ctx, o.ID))
	assert.Zero(t, f.ledger.Len())
	_, err = f.ledger.Get(ctx, o.ID)
	require.ErrorIs(t, err, order.ErrOrderNotFound)

	consumed, err := f.ledger.ConsumedQuantity(ctx, menuA, day)
	require.NoError(t, err)
	assert.Zero(t, consumed)
}

func TestCancelOrder_AfterUnlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.place(t, 1, menuA, 1)
	require.NoError(t, err)

	require.NoError(t, f.registry.LockDate(ctx, day, nil))
	require.ErrorIs(t, f.svc.CancelOrder(ctx, 1, day), order.ErrDateLocked)
	require.NoError(t, f.registry.UnlockDate(ctx, day))
	require.NoError(t, f.svc.CancelOrder(ctx, 1, day))
}

func TestAdminDeleteOrder_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.svc.AdminDeleteOrder(context.Background(), 42)
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}

// --- Queries ---

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.place(t, 1, menuA, 1)
	require.NoError(t, err)
	_, err = f.place(t, 2, menuB, 2)
	require.NoError(t, err)
	_, err = f.svc.PlaceOrder(ctx, order.PlaceOrderRequest{CustomerName: "Guest", Date: day, MenuID: menuA})
	require.NoError(t, err)
	// Unknown user id falls back to the customer name.
	ghost := int64(404)
	_, err = f.svc.PlaceOrder(ctx, order.PlaceOrderRequest{CustomerName: "Ghost", UserID: &ghost, Date: day, MenuID: menuA})
	require.NoError(t, err)

	listings, err := f.svc.ListOrders(ctx, nil)
	require.NoError(t, err)
	require.Len(t, listings, 4)

	names := make([]string, len(listings))
	for i, l := range listings {
		names[i] = l.DisplayName
	}
	assert.Equal(t, []string{"Ghost", "Guest", "Bob Kim", "Ann Lee"}, names)

	assert.Nil(t, listings[0].UserRole)
	assert.Nil(t, listings[1].UserRole)
	require.NotNil(t, listings[2].UserRole)
	assert.Equal(t, user.RoleManager, *listings[2].UserRole)

	require.Len(t, listings[2].Items, 1)
	item := listings[2].Items[0]
	assert.Equal(t, menuB, item.MenuID)
	assert.Equal(t, "Veggie Bowl", item.Name)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, item.PriceAtOrder.Equal(decimal.RequireFromString("9.50")))

	mine, err := f.svc.ListOrders(ctx, ptr(int64(1)))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Ann Lee", mine[0].DisplayName)
}

func TestListOrders_Empty(t *testing.T) {
	f := newFixture(t)

	listings, err := f.svc.ListOrders(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, listings)
	assert.Empty(t, listings)
}

func TestCheckOrderForDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CheckOrderForDate(ctx, 1, day)
	require.NoError(t, err)
	assert.False(t, res.HasOrder)
	assert.Nil(t, res.MenuID)

	_, err = f.place(t, 1, menuB, 1)
	require.NoError(t, err)

	res, err = f.svc.CheckOrderForDate(ctx, 1, day)
	require.NoError(t, err)
	assert.True(t, res.HasOrder)
	require.NotNil(t, res.MenuID)
	assert.Equal(t, menuB, *res.MenuID)

	// Zero date means today, which the fixture clock puts on the same day.
	res, err = f.svc.CheckOrderForDate(ctx, 1, calendar.Date{})
	require.NoError(t, err)
	assert.True(t, res.HasOrder)
}

func TestCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.place(t, 1, menuA, 2)
	require.NoError(t, err)
	_, err = f.place(t, 2, menuB, 1)
	require.NoError(t, err)

	uncapped, err := f.svc.Capacity(ctx, menuA, day)
	require.NoError(t, err)
	assert.Nil(t, uncapped.Max)
	assert.Nil(t, uncapped.Remaining)
	assert.Equal(t, 2, uncapped.Consumed)

	capped, err := f.svc.Capacity(ctx, menuB, day)
	require.NoError(t, err)
	require.NotNil(t, capped.Max)
	assert.Equal(t, 2, *capped.Max)
	assert.Equal(t, 1, capped.Consumed)
	assert.Equal(t, 1, *capped.Remaining)

	_, err = f.svc.Capacity(ctx, 99, day)
	var mnf *order.MenuNotFoundError
	require.ErrorAs(t, err, &mnf)
}

// --- Concurrency ---

func TestConcurrentPlacement_Uniqueness(t *testing.T) {
	f := newFixture(t)
	const attempts = 50

	var (
		mu        sync.Mutex
		successes int
		conflicts int
	)
	var g errgroup.Group
	for range attempts {
		g.Go(func() error {
			_, err := f.place(t, 1, menuA, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, order.ErrAlreadyOrdered):
				conflicts++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, f.ledger.Len())
}

func TestConcurrentPlacement_CapacityBound(t *testing.T) {
	f := newFixture(t)
	const (
		limit = 5
		users = 40
	)
	f.catalog.PutAvailability(menuB, day, ptr(limit))

	var (
		mu        sync.Mutex
		successes int
		rejected  int
	)
	var g errgroup.Group
	for i := range users {
		uid := int64(100 + i)
		g.Go(func() error {
			_, err := f.place(t, uid, menuB, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, fault.Capacity):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, limit, successes)
	assert.Equal(t, users-limit, rejected)

	consumed, err := f.ledger.ConsumedQuantity(context.Background(), menuB, day)
	require.NoError(t, err)
	assert.Equal(t, limit, consumed)
}
