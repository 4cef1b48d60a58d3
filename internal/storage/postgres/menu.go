package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/menu"
)

var _ menu.Repository = (*MenuRepository)(nil)

type menuRow struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	Active      bool            `db:"active"`
}

func (r menuRow) toDomain() menu.Menu {
	return menu.Menu{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Active:      r.Active,
	}
}

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// GetByID returns menu.ErrNotFound when no menu has the id.
func (r *MenuRepository) GetByID(ctx context.Context, id int64) (*menu.Menu, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, price, active FROM menus WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu %d: %w", id, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[menuRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("getting menu %d: %w", id, err)
	}

	m := row.toDomain()
	return &m, nil
}

// GetByIDs returns the menus among ids in a single query. Missing ids are skipped.
func (r *MenuRepository) GetByIDs(ctx context.Context, ids []int64) ([]menu.Menu, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, price, active FROM menus WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting menus by ids: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[menuRow])
	if err != nil {
		return nil, fmt.Errorf("scanning menus: %w", err)
	}

	out := make([]menu.Menu, len(list))
	for i, row := range list {
		out[i] = row.toDomain()
	}
	return out, nil
}

// Availability returns menu.ErrNotAvailable when the menu is not scheduled on date.
func (r *MenuRepository) Availability(ctx context.Context, menuID int64, date calendar.Date) (*menu.Availability, error) {
	var limit *int
	err := r.pool.QueryRow(ctx, `
		SELECT max_quantity FROM menu_days
		WHERE menu_id = $1 AND available_date = $2`, menuID, date.Time()).Scan(&limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotAvailable
		}
		return nil, fmt.Errorf("getting availability of menu %d on %s: %w", menuID, date, err)
	}

	return &menu.Availability{MenuID: menuID, Date: date, MaxQuantity: limit}, nil
}
