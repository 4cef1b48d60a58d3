package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
)

// dayLockNamespace is the first key of every per-day advisory lock ("cant").
const dayLockNamespace int32 = 0x63616e74

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// lockDay takes the transaction-scoped advisory lock for date. It is released
// on commit or rollback.
func lockDay(ctx context.Context, q querier, date calendar.Date) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`,
		dayLockNamespace, int32(date.DayNumber()),
	); err != nil {
		return fmt.Errorf("advisory lock for %s: %w", date, err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}
