package menu

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
)

// Sentinel errors returned by Repository implementations.
var (
	// ErrNotFound is returned when a requested menu does not exist.
	ErrNotFound = errors.New("menu not found")
	// ErrNotAvailable is returned when a menu has no availability record for a date.
	ErrNotAvailable = errors.New("menu not scheduled for date")
)

// Menu is a dish offered by the canteen.
type Menu struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Active      bool
}

// Availability describes whether and how much of a menu is offered on a day.
type Availability struct {
	MenuID int64
	Date   calendar.Date
	// MaxQuantity caps the total quantity ordered for the day. Nil means unlimited.
	MaxQuantity *int
}

// Capped reports whether the availability has a quantity limit.
func (a Availability) Capped() bool { return a.MaxQuantity != nil }

// Repository defines read operations for the menu catalog.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Menu, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Menu, error)
	Availability(ctx context.Context, menuID int64, date calendar.Date) (*Availability, error)
}
