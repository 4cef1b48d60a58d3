package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/order"
)

var (
	_ order.Store = (*OrderStore)(nil)
	_ order.Tx    = (*orderTx)(nil)
)

const orderColumns = `o.id, o.user_id, o.customer_name, o.order_date, o.total, o.created_at`

type orderRow struct {
	ID           int64           `db:"id"`
	UserID       *int64          `db:"user_id"`
	CustomerName string          `db:"customer_name"`
	OrderDate    time.Time       `db:"order_date"`
	Total        decimal.Decimal `db:"total"`
	CreatedAt    time.Time       `db:"created_at"`
}

type itemRow struct {
	ID           int64           `db:"id"`
	OrderID      int64           `db:"order_id"`
	MenuID       int64           `db:"menu_id"`
	Quantity     int             `db:"quantity"`
	PriceAtOrder decimal.Decimal `db:"price_at_order"`
}

func (r orderRow) toDomain() order.Order {
	return order.Order{
		ID:           r.ID,
		UserID:       r.UserID,
		CustomerName: r.CustomerName,
		Date:         calendar.FromTime(r.OrderDate),
		Total:        r.Total,
		CreatedAt:    r.CreatedAt,
	}
}

func (r itemRow) toDomain() order.LineItem {
	return order.LineItem{
		ID:           r.ID,
		OrderID:      r.OrderID,
		MenuID:       r.MenuID,
		Quantity:     r.Quantity,
		PriceAtOrder: r.PriceAtOrder,
	}
}

// orderReader runs the ledger read queries against a pool or a transaction.
type orderReader struct {
	q querier
}

func (r orderReader) one(ctx context.Context, where string, args ...any) (*order.Order, error) {
	rows, err := r.q.Query(ctx, `SELECT `+orderColumns+` FROM orders o WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[orderRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	o := row.toDomain()
	items, err := r.items(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (r orderReader) items(ctx context.Context, orderIDs []int64) (map[int64][]order.LineItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, menu_id, quantity, price_at_order
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[itemRow])
	if err != nil {
		return nil, fmt.Errorf("scanning order items: %w", err)
	}

	out := make(map[int64][]order.LineItem, len(orderIDs))
	for _, it := range list {
		out[it.OrderID] = append(out[it.OrderID], it.toDomain())
	}
	return out, nil
}

func (r orderReader) FindByUserAndDate(ctx context.Context, userID int64, date calendar.Date) (*order.Order, error) {
	o, err := r.one(ctx, `o.user_id = $1 AND o.order_date = $2`, userID, date.Time())
	if err != nil && !errors.Is(err, order.ErrOrderNotFound) {
		return nil, fmt.Errorf("finding order of user %d on %s: %w", userID, date, err)
	}
	return o, err
}

func (r orderReader) Get(ctx context.Context, id int64) (*order.Order, error) {
	o, err := r.one(ctx, `o.id = $1`, id)
	if err != nil && !errors.Is(err, order.ErrOrderNotFound) {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	return o, err
}

func (r orderReader) List(ctx context.Context, userID *int64) ([]order.Order, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE $1::bigint IS NULL OR o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[orderRow])
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}

	out := make([]order.Order, len(list))
	ids := make([]int64, len(list))
	for i, row := range list {
		out[i] = row.toDomain()
		ids[i] = row.ID
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r orderReader) ConsumedQuantity(ctx context.Context, menuID int64, date calendar.Date) (int, error) {
	var n int64
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(oi.quantity), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.menu_id = $1 AND o.order_date = $2`, menuID, date.Time()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("summing quantity of menu %d on %s: %w", menuID, date, err)
	}
	return int(n), nil
}

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	orderReader
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{orderReader: orderReader{q: pool}, pool: pool}
}

// InTx runs fn in a read-committed transaction. Writers serialise per day
// through Tx.LockDay.
func (s *OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{orderReader: orderReader{q: tx}, tx: tx})
	})
}

type orderTx struct {
	orderReader
	tx pgx.Tx
}

func (t *orderTx) LockDay(ctx context.Context, date calendar.Date) error {
	return lockDay(ctx, t.tx, date)
}

func (t *orderTx) DateLocked(ctx context.Context, date calendar.Date) (bool, error) {
	var locked bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM locked_dates WHERE locked_date = $1)`, date.Time(),
	).Scan(&locked)
	if err != nil {
		return false, fmt.Errorf("checking lock for %s: %w", date, err)
	}
	return locked, nil
}

// Insert persists the order and its items. The partial unique index on
// (user_id, order_date) rejects a second order for the same user and day.
func (t *orderTx) Insert(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, customer_name, order_date, total, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		o.UserID, o.CustomerName, o.Date.Time(), o.Total, o.CreatedAt,
	).Scan(&o.ID)
	if isUniqueViolation(err, "orders_user_day_key") {
		return order.ErrAlreadyOrdered
	}
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := t.tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, menu_id, quantity, price_at_order)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			it.OrderID, it.MenuID, it.Quantity, it.PriceAtOrder,
		).Scan(&it.ID); err != nil {
			return fmt.Errorf("inserting item for menu %d: %w", it.MenuID, err)
		}
	}
	return nil
}

// Delete removes the order. Items go with it through ON DELETE CASCADE.
func (t *orderTx) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}
