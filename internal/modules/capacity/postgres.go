// README: Capacity ledger kept in restaurants.current_orders with conditional UPDATEs.
package capacity

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"routebite/internal/apperr"
	"routebite/internal/types"
)

// PostgresLedger keeps the count in restaurants.current_orders.
type PostgresLedger struct {
	db *pgxpool.Pool
}

func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// TryReserve checks and increments in one conditional UPDATE.
// Zero rows affected means the restaurant is full (or unknown).
func (l *PostgresLedger) TryReserve(ctx context.Context, id types.ID, limit int) (bool, error) {
	tag, err := l.db.Exec(ctx, `
		UPDATE restaurants SET current_orders = current_orders + 1
		WHERE id = $1 AND current_orders < LEAST(max_concurrent_orders, $2)
	`, string(id), limit)
	if err != nil {
		return false, apperr.Wrap(apperr.ErrDependencyUnavailable, "capacity ledger", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *PostgresLedger) Release(ctx context.Context, id types.ID) error {
	_, err := l.db.Exec(ctx, `
		UPDATE restaurants SET current_orders = GREATEST(current_orders - 1, 0)
		WHERE id = $1
	`, string(id))
	if err != nil {
		return apperr.Wrap(apperr.ErrDependencyUnavailable, "capacity ledger", err)
	}
	return nil
}

func (l *PostgresLedger) Counts(ctx context.Context, ids []types.ID) (map[types.ID]int, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := l.db.Query(ctx, `SELECT id, current_orders FROM restaurants WHERE id = ANY($1::text[])`, raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDependencyUnavailable, "capacity ledger", err)
	}
	defer rows.Close()

	out := make(map[types.ID]int, len(ids))
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, apperr.Wrap(apperr.ErrDependencyUnavailable, "capacity ledger", err)
		}
		out[types.ID(id)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ErrDependencyUnavailable, "capacity ledger", err)
	}
	return out, nil
}
