// README: Order store backed by PostgreSQL (orders, order_items, order_events).
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"routebite/internal/apperr"
	"routebite/internal/types"
)

const uniqueViolation = "23505"

const orderColumns = `
	id, order_number, user_id, restaurant_id, total_amount::text, paid_amount::text, currency,
	status, status_version, pickup_code, pickup_code_expires_at,
	estimated_arrival_time, estimated_ready_time, hold_window_end,
	actual_ready_time, actual_pickup_time, delay_reason, rating, rating_comment, created_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return unavailable(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, restaurant_id, total_amount, paid_amount, currency,
			status, status_version, pickup_code, pickup_code_expires_at,
			estimated_arrival_time, estimated_ready_time, hold_window_end, created_at
		) VALUES (
			$1, $2, $3, $4, $5::numeric, $6::numeric, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15
		)`,
		string(o.ID), o.OrderNumber, string(o.UserID), string(o.RestaurantID),
		o.TotalAmount.String(), o.PaidAmount.String(), o.Currency,
		string(o.Status), o.StatusVersion, o.PickupCode, o.PickupCodeExpiresAt,
		o.EstimatedArrivalTime, o.EstimatedReadyTime, o.HoldWindowEnd, o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "orders_order_number_key" {
			return ErrDuplicateNumber
		}
		return unavailable(err)
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, position, menu_item_id, item_name, unit_price, quantity, subtotal)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::numeric)`,
			string(o.ID), i, string(it.MenuItemID), it.ItemName, it.UnitPrice.String(), it.Quantity, it.Subtotal.String(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return unavailable(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, fmt.Sprintf("order %s", id))
	}
	if err != nil {
		return nil, err
	}
	orders := []Order{*o}
	if err := s.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (s *Store) Update(ctx context.Context, o *Order, expectedVersion int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
			status_version = status_version + 1,
			actual_ready_time = $2,
			actual_pickup_time = $3,
			delay_reason = $4,
			rating = $5,
			rating_comment = $6,
			paid_amount = $7::numeric
		WHERE id = $8 AND status_version = $9`,
		string(o.Status), o.ActualReadyTime, o.ActualPickupTime, o.DelayReason,
		o.Rating, o.RatingComment, o.PaidAmount.String(),
		string(o.ID), expectedVersion,
	)
	if err != nil {
		return false, unavailable(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	var actorID *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_events (order_id, from_status, to_status, actor_role, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.OrderID), string(e.FromStatus), string(e.ToStatus), string(e.ActorRole), actorID, e.Note, e.CreatedAt,
	)
	return err
}

// Events returns an order's audit trail in insertion order.
func (s *Store) Events(ctx context.Context, orderID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor_role, actor_id, note, created_at
		FROM order_events WHERE order_id = $1 ORDER BY id`, string(orderID))
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var actorID *string
		if err := rows.Scan(&e.ID, &e.OrderID, &e.FromStatus, &e.ToStatus, &e.ActorRole, &actorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, unavailable(err)
		}
		if actorID != nil {
			id := types.ID(*actorID)
			e.ActorID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListByUser(ctx context.Context, userID types.ID, limit int) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, string(userID), limit)
	if err != nil {
		return nil, unavailable(err)
	}
	return s.collect(ctx, rows)
}

func (s *Store) ListByRestaurant(ctx context.Context, restaurantID types.ID, statuses []Status, limit int) ([]Order, error) {
	raw := make([]string, len(statuses))
	for i, st := range statuses {
		raw[i] = string(st)
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = $1 AND status = ANY($2::text[])
		ORDER BY created_at ASC, id
		LIMIT $3`, string(restaurantID), raw, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	return s.collect(ctx, rows)
}

func (s *Store) collect(ctx context.Context, rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	if err := s.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) loadItems(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[types.ID]int, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = string(o.ID)
	}
	rows, err := s.db.Query(ctx, `
		SELECT order_id, menu_item_id, item_name, unit_price::text, quantity, subtotal::text
		FROM order_items
		WHERE order_id = ANY($1::text[])
		ORDER BY order_id, position`, ids)
	if err != nil {
		return unavailable(err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID types.ID
		var it Item
		var unit, subtotal string
		if err := rows.Scan(&orderID, &it.MenuItemID, &it.ItemName, &unit, &it.Quantity, &subtotal); err != nil {
			return unavailable(err)
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return fmt.Errorf("order %s unit price %q: %w", orderID, unit, err)
		}
		if it.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return fmt.Errorf("order %s subtotal %q: %w", orderID, subtotal, err)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var total, paid string
	var rating *int32
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.RestaurantID, &total, &paid, &o.Currency,
		&o.Status, &o.StatusVersion, &o.PickupCode, &o.PickupCodeExpiresAt,
		&o.EstimatedArrivalTime, &o.EstimatedReadyTime, &o.HoldWindowEnd,
		&o.ActualReadyTime, &o.ActualPickupTime, &o.DelayReason, &rating, &o.RatingComment, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable(err)
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s total %q: %w", o.ID, total, err)
	}
	if o.PaidAmount, err = decimal.NewFromString(paid); err != nil {
		return nil, fmt.Errorf("order %s paid %q: %w", o.ID, paid, err)
	}
	if rating != nil {
		r := int(*rating)
		o.Rating = &r
	}
	o.PickupCodeExpiresAt = o.PickupCodeExpiresAt.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	normalize(&o.ActualReadyTime)
	normalize(&o.ActualPickupTime)
	return &o, nil
}

func normalize(t **time.Time) {
	if *t != nil {
		u := (*t).UTC()
		*t = &u
	}
}

func unavailable(err error) error {
	return apperr.Wrap(apperr.ErrDependencyUnavailable, "order store", err)
}
