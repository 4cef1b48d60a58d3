package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/datelock"
	"github.com/xenking/canteen-orders/internal/domain/order"
)

var _ order.Store = (*Ledger)(nil)

type dayKey struct {
	userID int64
	date   calendar.Date
}

type ledgerState struct {
	orders    map[int64]order.Order
	byUserDay map[dayKey]int64
	nextOrder int64
	nextItem  int64
}

func (s *ledgerState) clone() *ledgerState {
	c := &ledgerState{
		orders:    make(map[int64]order.Order, len(s.orders)),
		byUserDay: make(map[dayKey]int64, len(s.byUserDay)),
		nextOrder: s.nextOrder,
		nextItem:  s.nextItem,
	}
	for id, o := range s.orders {
		c.orders[id] = copyOrder(o)
	}
	for k, v := range s.byUserDay {
		c.byUserDay[k] = v
	}
	return c
}

func copyOrder(o order.Order) order.Order {
	o.Items = append([]order.LineItem(nil), o.Items...)
	if o.UserID != nil {
		id := *o.UserID
		o.UserID = &id
	}
	return o
}

// Ledger is an in-memory order.Store.
//
// A transaction holds the ledger mutex from start to finish and works on a
// copy of the state, which replaces the live state only when the
// transaction function succeeds.
type Ledger struct {
	mu    sync.Mutex
	st    *ledgerState
	locks datelock.Repository
}

// NewLedger returns an empty ledger. Date locks are consulted through locks.
func NewLedger(locks datelock.Repository) *Ledger {
	return &Ledger{
		st: &ledgerState{
			orders:    make(map[int64]order.Order),
			byUserDay: make(map[dayKey]int64),
		},
		locks: locks,
	}
}

func (l *Ledger) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &ledgerTx{st: l.st.clone(), locks: l.locks}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	l.st = tx.st
	return nil
}

func (l *Ledger) FindByUserAndDate(_ context.Context, userID int64, date calendar.Date) (*order.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return findByUserAndDate(l.st, userID, date)
}

func (l *Ledger) Get(_ context.Context, id int64) (*order.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return get(l.st, id)
}

func (l *Ledger) List(_ context.Context, userID *int64) ([]order.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return list(l.st, userID), nil
}

func (l *Ledger) ConsumedQuantity(_ context.Context, menuID int64, date calendar.Date) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return consumed(l.st, menuID, date), nil
}

// Len returns the number of stored orders.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.st.orders)
}

type ledgerTx struct {
	st    *ledgerState
	locks datelock.Repository
}

// LockDay is a no-op: the ledger mutex already serialises every transaction.
func (t *ledgerTx) LockDay(context.Context, calendar.Date) error { return nil }

func (t *ledgerTx) DateLocked(ctx context.Context, date calendar.Date) (bool, error) {
	return t.locks.Exists(ctx, date)
}

func (t *ledgerTx) Insert(_ context.Context, o *order.Order) error {
	if o.UserID != nil {
		if _, ok := t.st.byUserDay[dayKey{*o.UserID, o.Date}]; ok {
			return order.ErrAlreadyOrdered
		}
	}
	t.st.nextOrder++
	o.ID = t.st.nextOrder
	for i := range o.Items {
		t.st.nextItem++
		o.Items[i].ID = t.st.nextItem
		o.Items[i].OrderID = o.ID
	}
	t.st.orders[o.ID] = copyOrder(*o)
	if o.UserID != nil {
		t.st.byUserDay[dayKey{*o.UserID, o.Date}] = o.ID
	}
	return nil
}

func (t *ledgerTx) Delete(_ context.Context, id int64) error {
	o, ok := t.st.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	delete(t.st.orders, id)
	if o.UserID != nil {
		delete(t.st.byUserDay, dayKey{*o.UserID, o.Date})
	}
	return nil
}

func (t *ledgerTx) FindByUserAndDate(_ context.Context, userID int64, date calendar.Date) (*order.Order, error) {
	return findByUserAndDate(t.st, userID, date)
}

func (t *ledgerTx) Get(_ context.Context, id int64) (*order.Order, error) {
	return get(t.st, id)
}

func (t *ledgerTx) List(_ context.Context, userID *int64) ([]order.Order, error) {
	return list(t.st, userID), nil
}

func (t *ledgerTx) ConsumedQuantity(_ context.Context, menuID int64, date calendar.Date) (int, error) {
	return consumed(t.st, menuID, date), nil
}

func findByUserAndDate(st *ledgerState, userID int64, date calendar.Date) (*order.Order, error) {
	id, ok := st.byUserDay[dayKey{userID, date}]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return get(st, id)
}

func get(st *ledgerState, id int64) (*order.Order, error) {
	o, ok := st.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func list(st *ledgerState, userID *int64) []order.Order {
	out := make([]order.Order, 0, len(st.orders))
	for _, o := range st.orders {
		if userID != nil && (o.UserID == nil || *o.UserID != *userID) {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func consumed(st *ledgerState, menuID int64, date calendar.Date) int {
	var n int
	for _, o := range st.orders {
		if o.Date != date {
			continue
		}
		for _, it := range o.Items {
			if it.MenuID == menuID {
				n += it.Quantity
			}
		}
	}
	return n
}
