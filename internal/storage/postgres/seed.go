package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/user"
)

// SeedUser is a directory entry created by Seed.
type SeedUser struct {
	Firstname string
	Lastname  string
	Role      user.Role
}

// SeedMenu is a menu created by Seed and scheduled on every seeded day.
type SeedMenu struct {
	Name        string
	Description string
	Price       decimal.Decimal
	MaxQuantity *int
}

// SeedData is the content loaded by Seed.
type SeedData struct {
	Users []SeedUser
	Menus []SeedMenu
}

// SeedStats reports what Seed changed.
type SeedStats struct {
	Users    int
	Menus    int
	MenuDays int
}

// Seed loads users and menus and schedules every menu from start for days
// consecutive days. It is idempotent: users are only created into an empty
// directory, menus are matched by name and existing schedule rows are kept.
func Seed(ctx context.Context, pool *pgxpool.Pool, data SeedData, start calendar.Date, days int) (SeedStats, error) {
	var stats SeedStats
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var existing int64
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&existing); err != nil {
			return fmt.Errorf("counting users: %w", err)
		}
		if existing == 0 {
			for _, u := range data.Users {
				if !u.Role.Valid() {
					return fmt.Errorf("user %s %s: invalid role %q", u.Firstname, u.Lastname, u.Role)
				}
				if _, err := tx.Exec(ctx, `
					INSERT INTO users (firstname, lastname, role, qr_token)
					VALUES ($1, $2, $3, $4)`,
					u.Firstname, u.Lastname, string(u.Role), uuid.NewString(),
				); err != nil {
					return fmt.Errorf("inserting user %s %s: %w", u.Firstname, u.Lastname, err)
				}
				stats.Users++
			}
		}

		batch := &pgx.Batch{}
		for _, m := range data.Menus {
			var (
				id       int64
				inserted bool
			)
			if err := tx.QueryRow(ctx, `
				INSERT INTO menus (name, description, price)
				VALUES ($1, $2, $3)
				ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
				RETURNING id, (xmax = 0)`,
				m.Name, m.Description, m.Price,
			).Scan(&id, &inserted); err != nil {
				return fmt.Errorf("upserting menu %q: %w", m.Name, err)
			}
			if inserted {
				stats.Menus++
			}
			for d := range days {
				batch.Queue(`
					INSERT INTO menu_days (menu_id, available_date, max_quantity)
					VALUES ($1, $2, $3)
					ON CONFLICT (menu_id, available_date) DO NOTHING`,
					id, start.AddDays(d).Time(), m.MaxQuantity,
				).Exec(func(tag pgconn.CommandTag) error {
					stats.MenuDays += int(tag.RowsAffected())
					return nil
				})
			}
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("scheduling menus: %w", err)
		}
		return nil
	})
	if err != nil {
		return SeedStats{}, err
	}
	return stats, nil
}
