package order

import (
	"fmt"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/fault"
)

// Sentinel errors for order operations.
var (
	ErrCustomerNameRequired = fault.New(fault.Validation, "customer_name is required")
	ErrMenuRequired         = fault.New(fault.Validation, "menu_id is required")
	ErrInvalidQuantity      = fault.New(fault.Validation, "quantity must be greater than 0")
	ErrQuantityTooLarge     = fault.New(fault.Validation, "quantity too large")
	ErrUserRequired         = fault.New(fault.Validation, "user_id is required")
	ErrDateRequired         = fault.New(fault.Validation, "date is required")

	ErrAlreadyOrdered = fault.New(fault.Conflict, "user already has an order for this date")
	ErrOrderNotFound  = fault.New(fault.NotFound, "order not found")
	ErrDateLocked     = fault.New(fault.Forbidden, "date is locked, orders can no longer be cancelled")
)

// MenuNotFoundError indicates the requested menu does not exist.
type MenuNotFoundError struct {
	MenuID int64
}

func (e *MenuNotFoundError) Error() string {
	return fmt.Sprintf("menu %d not found", e.MenuID)
}

func (e *MenuNotFoundError) Unwrap() error { return fault.NotFound }

// CapacityError indicates the daily quantity of a menu cannot cover the request.
type CapacityError struct {
	MenuID    int64
	Date      calendar.Date
	Remaining int
}

func (e *CapacityError) Error() string {
	if e.Remaining <= 0 {
		return fmt.Sprintf("menu %d is sold out for %s", e.MenuID, e.Date)
	}
	return fmt.Sprintf("only %d left of menu %d for %s", e.Remaining, e.MenuID, e.Date)
}

func (e *CapacityError) Unwrap() error { return fault.Capacity }

// SoldOut reports whether nothing is left at all.
func (e *CapacityError) SoldOut() bool { return e.Remaining <= 0 }
