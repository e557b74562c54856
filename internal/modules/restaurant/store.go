// README: Restaurant directory and menu catalog backed by PostgreSQL.
package restaurant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"routebite/internal/apperr"
	"routebite/internal/types"
)

const menuColumns = `id, restaurant_id, name, category, price::text, is_available, prep_time_minutes`

const snapshotColumns = `
	id, COALESCE(owner_id, ''), name, lat, lng, avg_prep_time_minutes, accepts_orders, is_active,
	current_orders, max_concurrent_orders, same_side_of_road, parking_available`

type Store struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewStore(db *pgxpool.Pool, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

func (s *Store) Get(ctx context.Context, id types.ID) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM restaurants WHERE id = $1`, string(id))
	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, apperr.New(apperr.ErrNotFound, fmt.Sprintf("restaurant %s", id))
	}
	if err != nil {
		return Snapshot{}, unavailable("restaurant directory", err)
	}
	return snap, nil
}

// ListActive returns every active restaurant, orderable or not.
func (s *Store) ListActive(ctx context.Context) ([]Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT `+snapshotColumns+` FROM restaurants WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, unavailable("restaurant directory", err)
	}
	return collectSnapshots(rows)
}

func (s *Store) GetMany(ctx context.Context, ids []types.ID) ([]Snapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `SELECT `+snapshotColumns+` FROM restaurants WHERE id = ANY($1::text[]) ORDER BY id`, raw)
	if err != nil {
		return nil, unavailable("restaurant directory", err)
	}
	return collectSnapshots(rows)
}

// MenuItems returns the requested items of one restaurant keyed by id. Unknown ids are absent.
func (s *Store) MenuItems(ctx context.Context, restaurantID types.ID, ids []types.ID) (map[types.ID]MenuItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `SELECT `+menuColumns+`
		FROM menu_items
		WHERE restaurant_id = $1 AND id = ANY($2::text[])`,
		string(restaurantID), raw,
	)
	if err != nil {
		return nil, unavailable("menu catalog", err)
	}
	items, err := collectMenu(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[types.ID]MenuItem, len(items))
	for _, m := range items {
		out[m.ID] = m
	}
	return out, nil
}

// Menu lists the available items of one restaurant by category, then name.
func (s *Store) Menu(ctx context.Context, restaurantID types.ID) ([]MenuItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT `+menuColumns+`
		FROM menu_items
		WHERE restaurant_id = $1 AND is_available
		ORDER BY category ASC, name ASC, id ASC`,
		string(restaurantID),
	)
	if err != nil {
		return nil, unavailable("menu catalog", err)
	}
	return collectMenu(rows)
}

func collectMenu(rows pgx.Rows) ([]MenuItem, error) {
	defer rows.Close()
	var out []MenuItem
	for rows.Next() {
		var m MenuItem
		var price string
		if err := rows.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Category, &price, &m.IsAvailable, &m.PrepTimeMinutes); err != nil {
			return nil, unavailable("menu catalog", err)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("menu item %s price %q: %w", m.ID, price, err)
		}
		m.Price = p
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("menu catalog", err)
	}
	return out, nil
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var s Snapshot
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.Location.Lat, &s.Location.Lng, &s.AvgPrepTimeMinutes,
		&s.AcceptsOrders, &s.IsActive, &s.CurrentOrders, &s.MaxConcurrentOrders,
		&s.SameSideOfRoad, &s.ParkingAvailable,
	)
	return s, err
}

func collectSnapshots(rows pgx.Rows) ([]Snapshot, error) {
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, unavailable("restaurant directory", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("restaurant directory", err)
	}
	return out, nil
}

func unavailable(what string, err error) error {
	return apperr.Wrap(apperr.ErrDependencyUnavailable, what, err)
}
