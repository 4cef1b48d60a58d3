package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/datelock"
)

var _ datelock.Repository = (*LockRepository)(nil)

type lockRow struct {
	LockedDate time.Time `db:"locked_date"`
	LockedAt   time.Time `db:"locked_at"`
	LockedBy   *int64    `db:"locked_by"`
}

// LockRepository implements datelock.Repository backed by PostgreSQL.
type LockRepository struct {
	pool *pgxpool.Pool
}

// NewLockRepository returns a LockRepository that uses the given pool.
func NewLockRepository(pool *pgxpool.Pool) *LockRepository {
	return &LockRepository{pool: pool}
}

// Insert takes the same per-day advisory lock as order writers, so a lock
// never lands in the middle of a cancellation for that day.
func (r *LockRepository) Insert(ctx context.Context, l datelock.Lock) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := lockDay(ctx, tx, l.Date); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO locked_dates (locked_date, locked_at, locked_by)
			VALUES ($1, $2, $3)
			ON CONFLICT (locked_date) DO NOTHING`,
			l.Date.Time(), l.LockedAt, l.LockedBy)
		if err != nil {
			return fmt.Errorf("inserting lock for %s: %w", l.Date, err)
		}
		if tag.RowsAffected() == 0 {
			return datelock.ErrAlreadyLocked
		}
		return nil
	})
}

func (r *LockRepository) Delete(ctx context.Context, date calendar.Date) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM locked_dates WHERE locked_date = $1`, date.Time()); err != nil {
		return fmt.Errorf("deleting lock for %s: %w", date, err)
	}
	return nil
}

func (r *LockRepository) Exists(ctx context.Context, date calendar.Date) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM locked_dates WHERE locked_date = $1)`, date.Time(),
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking lock for %s: %w", date, err)
	}
	return ok, nil
}

func (r *LockRepository) List(ctx context.Context) ([]datelock.Lock, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT locked_date, locked_at, locked_by FROM locked_dates ORDER BY locked_date`)
	if err != nil {
		return nil, fmt.Errorf("listing locks: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[lockRow])
	if err != nil {
		return nil, fmt.Errorf("scanning locks: %w", err)
	}

	out := make([]datelock.Lock, len(list))
	for i, row := range list {
		out[i] = datelock.Lock{
			Date:     calendar.FromTime(row.LockedDate),
			LockedAt: row.LockedAt,
			LockedBy: row.LockedBy,
		}
	}
	return out, nil
}
