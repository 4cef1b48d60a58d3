package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/canteen-orders/internal/domain/user"
)

var _ user.Repository = (*UserRepository)(nil)

type userRow struct {
	ID        int64  `db:"id"`
	Firstname string `db:"firstname"`
	Lastname  string `db:"lastname"`
	Role      string `db:"role"`
}

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]user.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, firstname, lastname, role FROM users WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting users by ids: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[userRow])
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}

	out := make([]user.User, len(list))
	for i, row := range list {
		out[i] = user.User{
			ID:        row.ID,
			Firstname: row.Firstname,
			Lastname:  row.Lastname,
			Role:      user.Role(row.Role),
		}
	}
	return out, nil
}
