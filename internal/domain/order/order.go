package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
)

// Order is a meal reservation placed for one day.
type Order struct {
	ID int64
	// UserID is nil for anonymous orders placed under a free-form customer name.
	UserID       *int64
	CustomerName string
	Date         calendar.Date
	Total        decimal.Decimal
	CreatedAt    time.Time
	Items        []LineItem
}

// LineItem is a menu and quantity within an order. PriceAtOrder is the menu
// price when the order was placed and never changes afterwards.
type LineItem struct {
	ID           int64
	OrderID      int64
	MenuID       int64
	Quantity     int
	PriceAtOrder decimal.Decimal
}

// Reader defines read operations on the order ledger.
type Reader interface {
	// FindByUserAndDate returns ErrOrderNotFound if the user has no order on date.
	FindByUserAndDate(ctx context.Context, userID int64, date calendar.Date) (*Order, error)
	// Get returns ErrOrderNotFound if no order has the id.
	Get(ctx context.Context, id int64) (*Order, error)
	// List returns orders with their items, newest first. A nil userID lists everything.
	List(ctx context.Context, userID *int64) ([]Order, error)
	// ConsumedQuantity sums the quantity of all line items for the menu on date.
	ConsumedQuantity(ctx context.Context, menuID int64, date calendar.Date) (int, error)
}

// Tx is a ledger transaction. Writes are visible to other callers only after
// the transaction function returns nil.
type Tx interface {
	Reader
	// LockDay serialises writers for date until the transaction ends.
	LockDay(ctx context.Context, date calendar.Date) error
	// DateLocked reports whether administrators have locked date.
	DateLocked(ctx context.Context, date calendar.Date) (bool, error)
	// Insert stores o with its items and fills in generated ids. A second
	// order for the same user and day fails with ErrAlreadyOrdered.
	Insert(ctx context.Context, o *Order) error
	// Delete removes the order and its items, or returns ErrOrderNotFound.
	Delete(ctx context.Context, id int64) error
}

// Store is the order ledger.
type Store interface {
	Reader
	// InTx runs fn in a transaction, committing if fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
