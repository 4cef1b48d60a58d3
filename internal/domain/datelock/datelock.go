// Package datelock manages the set of days on which employees may no longer
// cancel their orders.
package datelock

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/fault"
)

// ErrAlreadyLocked is returned when locking a date that is already locked.
var ErrAlreadyLocked = fault.New(fault.Conflict, "date already locked")

// Lock marks a single locked day.
type Lock struct {
	Date     calendar.Date
	LockedAt time.Time
	LockedBy *int64
}

// Repository persists date locks.
type Repository interface {
	// Insert stores a lock, returning ErrAlreadyLocked if the date is taken.
	Insert(ctx context.Context, l Lock) error
	// Delete removes the lock for date. Missing locks are not an error.
	Delete(ctx context.Context, date calendar.Date) error
	Exists(ctx context.Context, date calendar.Date) (bool, error)
	// List returns all locks ordered by date ascending.
	List(ctx context.Context) ([]Lock, error)
}

// Registry is the administrative surface over date locks.
type Registry struct {
	repo Repository
	now  func() time.Time
}

// NewRegistry returns a Registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo, now: time.Now}
}

// LockDate locks date on behalf of lockedBy, which may be nil.
func (r *Registry) LockDate(ctx context.Context, date calendar.Date, lockedBy *int64) error {
	if date.IsZero() {
		return fault.New(fault.Validation, "date is required")
	}
	err := r.repo.Insert(ctx, Lock{
		Date:     date,
		LockedAt: r.now().UTC(),
		LockedBy: lockedBy,
	})
	if errors.Is(err, ErrAlreadyLocked) {
		return err
	}
	if err != nil {
		return errors.Wrapf(err, "lock %s", date)
	}
	return nil
}

// UnlockDate removes the lock for date if one exists.
func (r *Registry) UnlockDate(ctx context.Context, date calendar.Date) error {
	if date.IsZero() {
		return fault.New(fault.Validation, "date is required")
	}
	if err := r.repo.Delete(ctx, date); err != nil {
		return errors.Wrapf(err, "unlock %s", date)
	}
	return nil
}

// IsLocked reports whether date is locked.
func (r *Registry) IsLocked(ctx context.Context, date calendar.Date) (bool, error) {
	ok, err := r.repo.Exists(ctx, date)
	if err != nil {
		return false, errors.Wrapf(err, "check lock %s", date)
	}
	return ok, nil
}

// ListLocked returns every locked day, earliest first.
func (r *Registry) ListLocked(ctx context.Context) ([]Lock, error) {
	locks, err := r.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list locks")
	}
	return locks, nil
}
