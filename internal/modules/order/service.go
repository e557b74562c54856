// README: Order service implements creation with capacity admission, state transitions, pickup verification and rating.
package order

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"routebite/internal/apperr"
	"routebite/internal/config"
	"routebite/internal/modules/capacity"
	"routebite/internal/modules/pricing"
	"routebite/internal/modules/restaurant"
	"routebite/internal/modules/slot"
	"routebite/internal/types"
)

const (
	orderNumberAttempts = 3
	defaultListLimit    = 50
)

var tracer = otel.Tracer("routebite/order")

// ErrDuplicateNumber is returned by a Repository when the order number is taken.
var ErrDuplicateNumber = errors.New("order number already exists")

type Repository interface {
	// Create persists the order and its items atomically.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	// Update writes the mutable fields of o only if the stored version is
	// still expectedVersion, and bumps the version.
	Update(ctx context.Context, o *Order, expectedVersion int) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	Events(ctx context.Context, orderID types.ID) ([]Event, error)
	ListByUser(ctx context.Context, userID types.ID, limit int) ([]Order, error)
	ListByRestaurant(ctx context.Context, restaurantID types.ID, statuses []Status, limit int) ([]Order, error)
}

type Directory interface {
	Get(ctx context.Context, id types.ID) (restaurant.Snapshot, error)
}

type Pricer interface {
	PriceCart(ctx context.Context, restaurantID types.ID, lines []pricing.Line) (pricing.Quote, error)
}

type Service struct {
	repo    Repository
	dir     Directory
	pricer  Pricer
	ledger  capacity.Ledger
	planner *slot.Planner
	cfg     config.OrderConfig
	now     func() time.Time
}

func NewService(repo Repository, dir Directory, pricer Pricer, ledger capacity.Ledger, planner *slot.Planner, cfg config.OrderConfig) *Service {
	if cfg.PickupCodeTTL <= 0 {
		cfg.PickupCodeTTL = 2 * time.Hour
	}
	return &Service{repo: repo, dir: dir, pricer: pricer, ledger: ledger, planner: planner, cfg: cfg, now: time.Now}
}

type CreateCommand struct {
	UserID            types.ID
	RestaurantID      types.ID
	Items             []pricing.Line
	ArrivalEtaMinutes int
	LateByMinutes     int
}

type UpdateStatusCommand struct {
	OrderID     types.ID
	Status      Status
	DelayReason string
	Actor       Actor
}

type VerifyCommand struct {
	OrderID types.ID
	Code    string
	Actor   Actor
}

type RateCommand struct {
	OrderID types.ID
	Rating  int
	Comment *string
	Actor   Actor
}

// LockSlot computes an advisory slot for a restaurant. Nothing is reserved.
func (s *Service) LockSlot(ctx context.Context, restaurantID types.ID, arrivalEtaMinutes, lateByMinutes int) (slot.Lock, error) {
	if restaurantID == "" {
		return slot.Lock{}, apperr.New(apperr.ErrInvalidRequest, "restaurantId is required")
	}
	if arrivalEtaMinutes < 0 || lateByMinutes < 0 {
		return slot.Lock{}, apperr.New(apperr.ErrInvalidRequest, "arrivalEtaMinutes and userLateByMinutes must be non-negative")
	}
	snap, err := s.dir.Get(ctx, restaurantID)
	if err != nil {
		return slot.Lock{}, err
	}
	return s.planner.LockSlot(snap, arrivalEtaMinutes, lateByMinutes), nil
}

// Create re-validates the cart and the slot, takes one capacity unit and
// persists the order. The unit is given back if persisting fails.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.Create")
	defer span.End()

	o, err := s.create(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", string(o.ID)))
	return o, nil
}

func (s *Service) create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.UserID == "" {
		return nil, apperr.New(apperr.ErrInvalidRequest, "userId is required")
	}
	quote, err := s.pricer.PriceCart(ctx, cmd.RestaurantID, cmd.Items)
	if err != nil {
		return nil, err
	}
	if cmd.ArrivalEtaMinutes < 0 || cmd.LateByMinutes < 0 {
		return nil, apperr.New(apperr.ErrInvalidRequest, "arrivalEtaMinutes and userLateByMinutes must be non-negative")
	}
	snap, err := s.dir.Get(ctx, cmd.RestaurantID)
	if err != nil {
		return nil, err
	}
	lock := s.planner.LockSlot(snap, cmd.ArrivalEtaMinutes, cmd.LateByMinutes)
	if !lock.CanProceed {
		if lock.Reason == slot.ReasonAtCapacity {
			return nil, apperr.New(apperr.ErrCapacityExceeded, fmt.Sprintf("restaurant %s is at capacity", cmd.RestaurantID))
		}
		return nil, apperr.New(apperr.ErrRestaurantUnavailable, fmt.Sprintf("restaurant %s: %s", cmd.RestaurantID, lock.Reason))
	}

	reserved, err := s.ledger.TryReserve(ctx, cmd.RestaurantID, snap.MaxConcurrentOrders)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, apperr.New(apperr.ErrCapacityExceeded, fmt.Sprintf("restaurant %s is at capacity", cmd.RestaurantID))
	}

	o, err := s.persistNew(ctx, cmd, quote, lock)
	if err != nil {
		if relErr := s.ledger.Release(context.WithoutCancel(ctx), cmd.RestaurantID); relErr != nil {
			slog.ErrorContext(ctx, "release capacity after failed create", "restaurant_id", cmd.RestaurantID, "error", relErr)
		}
		return nil, err
	}

	s.appendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorRole:  RoleUser,
		ActorID:    &o.UserID,
		CreatedAt:  o.CreatedAt,
	})
	slog.InfoContext(ctx, "order created",
		"order_id", o.ID, "order_number", o.OrderNumber, "restaurant_id", o.RestaurantID, "total", o.TotalAmount.String())
	return o, nil
}

func (s *Service) persistNew(ctx context.Context, cmd CreateCommand, quote pricing.Quote, lock slot.Lock) (*Order, error) {
	now := s.now()
	code, err := newPickupCode()
	if err != nil {
		return nil, err
	}
	items := make([]Item, len(quote.Lines))
	for i, l := range quote.Lines {
		items[i] = Item{
			MenuItemID: l.MenuItemID,
			ItemName:   l.ItemName,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
			Subtotal:   l.Subtotal,
		}
	}
	o := &Order{
		ID:                   types.ID(uuid.NewString()),
		UserID:               cmd.UserID,
		RestaurantID:         cmd.RestaurantID,
		Items:                items,
		TotalAmount:          quote.Total,
		PaidAmount:           decimal.Zero,
		Currency:             quote.Currency,
		Status:               StatusPending,
		PickupCode:           code,
		PickupCodeExpiresAt:  now.Add(s.cfg.PickupCodeTTL),
		EstimatedArrivalTime: lock.EstimatedArrivalTime,
		EstimatedReadyTime:   lock.EstimatedReadyTime,
		HoldWindowEnd:        lock.HoldWindowEnd,
		CreatedAt:            now,
	}
	for attempt := 1; ; attempt++ {
		number, err := newOrderNumber(now)
		if err != nil {
			return nil, err
		}
		o.OrderNumber = number
		err = s.repo.Create(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) || attempt == orderNumberAttempts {
			return nil, err
		}
	}
}

// UpdateStatus applies a restaurant/user driven transition, or a delay notice
// when Status equals the current status and DelayReason is set.
func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*Order, error) {
	if !cmd.Status.Valid() {
		return nil, apperr.New(apperr.ErrInvalidRequest, fmt.Sprintf("unknown status %q", cmd.Status))
	}
	o, err := s.load(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	from, to := o.Status, cmd.Status

	if from == to {
		return s.reportDelay(ctx, o, cmd)
	}
	if !CanTransition(from, to) {
		return nil, apperr.Transition(apperr.ErrInvalidTransition, string(from), string(to), "transition not allowed")
	}
	if to == StatusPickedUp {
		return nil, apperr.Transition(apperr.ErrInvalidTransition, string(from), string(to), "pickup requires code verification")
	}
	if !Permitted(from, to, cmd.Actor.Role) {
		return nil, apperr.Transition(apperr.ErrForbidden, string(from), string(to), fmt.Sprintf("role %s may not perform this transition", cmd.Actor.Role))
	}

	now := s.now()
	if to == StatusNoShow && !now.After(o.HoldWindowEnd) {
		return nil, apperr.Transition(apperr.ErrInvalidState, string(from), string(to),
			fmt.Sprintf("hold window open until %s", o.HoldWindowEnd.Format(time.RFC3339)))
	}

	o.Status = to
	if to == StatusReady {
		o.ActualReadyTime = &now
	}
	if cmd.DelayReason != "" {
		reason := cmd.DelayReason
		o.DelayReason = &reason
	}
	if err := s.commit(ctx, o, from, cmd.Actor, nil); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) reportDelay(ctx context.Context, o *Order, cmd UpdateStatusCommand) (*Order, error) {
	if cmd.DelayReason == "" || !delayable[o.Status] {
		return nil, apperr.Transition(apperr.ErrInvalidTransition, string(o.Status), string(cmd.Status), "status unchanged")
	}
	if cmd.Actor.Role != RoleRestaurant && cmd.Actor.Role != RoleAdmin {
		return nil, apperr.Transition(apperr.ErrForbidden, string(o.Status), string(cmd.Status), "only the restaurant may report a delay")
	}
	reason := cmd.DelayReason
	o.DelayReason = &reason
	if err := s.commit(ctx, o, o.Status, cmd.Actor, &reason); err != nil {
		return nil, err
	}
	return o, nil
}

// VerifyPickupCode completes pickup. Checks run in order: expiry, code, state.
func (s *Service) VerifyPickupCode(ctx context.Context, cmd VerifyCommand) (*Order, error) {
	o, err := s.load(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if now.After(o.PickupCodeExpiresAt) {
		return nil, apperr.New(apperr.ErrCodeExpired, fmt.Sprintf("code expired at %s", o.PickupCodeExpiresAt.Format(time.RFC3339)))
	}
	if subtle.ConstantTimeCompare([]byte(cmd.Code), []byte(o.PickupCode)) != 1 {
		return nil, apperr.New(apperr.ErrInvalidCode, "pickup code does not match")
	}
	if o.Status != StatusReady {
		return nil, apperr.Transition(apperr.ErrWrongState, string(o.Status), string(StatusPickedUp), "order is not ready")
	}
	if !Permitted(o.Status, StatusPickedUp, RoleSystem) {
		return nil, apperr.Transition(apperr.ErrInvalidTransition, string(o.Status), string(StatusPickedUp), "transition not allowed")
	}

	from := o.Status
	o.Status = StatusPickedUp
	o.ActualPickupTime = &now
	note := "pickup code verified"
	if err := s.commit(ctx, o, from, cmd.Actor, &note); err != nil {
		return nil, err
	}
	return o, nil
}

// Rate records the customer's rating of a picked-up order. Re-rating overwrites.
func (s *Service) Rate(ctx context.Context, cmd RateCommand) (*Order, error) {
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return nil, apperr.New(apperr.ErrInvalidRequest, "rating must be between 1 and 5")
	}
	if cmd.Actor.Role == RoleRestaurant {
		return nil, apperr.New(apperr.ErrForbidden, "restaurants cannot rate orders")
	}
	o, err := s.load(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPickedUp {
		return nil, apperr.Transition(apperr.ErrInvalidState, string(o.Status), "rate", "only picked up orders can be rated")
	}
	rating := cmd.Rating
	o.Rating = &rating
	o.RatingComment = cmd.Comment

	ok, err := s.repo.Update(ctx, o, o.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.ErrConflict, "order changed concurrently")
	}
	o.StatusVersion++
	return o, nil
}

func (s *Service) Get(ctx context.Context, id types.ID, actor Actor) (*Order, error) {
	return s.load(ctx, id, actor)
}

// Events returns the audit trail of an order the actor may read.
func (s *Service) Events(ctx context.Context, id types.ID, actor Actor) ([]Event, error) {
	if _, err := s.load(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.repo.Events(ctx, id)
}

// ListMine returns the actor's own orders, newest first.
func (s *Service) ListMine(ctx context.Context, actor Actor) ([]Order, error) {
	if actor.ID == "" {
		return nil, apperr.New(apperr.ErrForbidden, "anonymous caller")
	}
	return s.repo.ListByUser(ctx, actor.ID, defaultListLimit)
}

// ListForRestaurant returns a restaurant's queue, oldest first. A nil status
// means every status that still holds capacity.
func (s *Service) ListForRestaurant(ctx context.Context, restaurantID types.ID, status *Status, actor Actor) ([]Order, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.New(apperr.ErrInvalidRequest, fmt.Sprintf("unknown status %q", *status))
	}
	switch actor.Role {
	case RoleAdmin:
	case RoleRestaurant:
		snap, err := s.dir.Get(ctx, restaurantID)
		if err != nil {
			return nil, err
		}
		if snap.OwnerID == "" || snap.OwnerID != actor.ID {
			return nil, apperr.New(apperr.ErrForbidden, "not the owner of this restaurant")
		}
	default:
		return nil, apperr.New(apperr.ErrForbidden, "restaurant staff only")
	}

	statuses := []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady}
	if status != nil {
		statuses = []Status{*status}
	}
	return s.repo.ListByRestaurant(ctx, restaurantID, statuses, defaultListLimit)
}

func (s *Service) load(ctx context.Context, id types.ID, actor Actor) (*Order, error) {
	if id == "" {
		return nil, apperr.New(apperr.ErrInvalidRequest, "order id is required")
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, o, actor); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) authorize(ctx context.Context, o *Order, actor Actor) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleUser:
		if actor.ID != "" && o.UserID == actor.ID {
			return nil
		}
	case RoleRestaurant:
		snap, err := s.dir.Get(ctx, o.RestaurantID)
		if err != nil {
			return err
		}
		if snap.OwnerID != "" && snap.OwnerID == actor.ID {
			return nil
		}
	}
	return apperr.New(apperr.ErrForbidden, fmt.Sprintf("order %s", o.ID))
}

// commit persists a status change with optimistic concurrency, releases
// capacity when the order leaves the active set and records the event.
func (s *Service) commit(ctx context.Context, o *Order, from Status, actor Actor, note *string) error {
	ok, err := s.repo.Update(ctx, o, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Transition(apperr.ErrConflict, string(from), string(o.Status), "order changed concurrently")
	}
	o.StatusVersion++

	if from.holdsCapacity() && o.Status.Terminal() {
		if err := s.ledger.Release(context.WithoutCancel(ctx), o.RestaurantID); err != nil {
			slog.ErrorContext(ctx, "release capacity", "order_id", o.ID, "restaurant_id", o.RestaurantID, "error", err)
		}
	}

	var actorID *types.ID
	if actor.ID != "" {
		id := actor.ID
		actorID = &id
	}
	s.appendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: from,
		ToStatus:   o.Status,
		ActorRole:  actor.Role,
		ActorID:    actorID,
		Note:       note,
		CreatedAt:  s.now(),
	})
	slog.InfoContext(ctx, "order status changed",
		"order_id", o.ID, "from", from, "to", o.Status, "actor_role", actor.Role)
	return nil
}

func (s *Service) appendEvent(ctx context.Context, e *Event) {
	if err := s.repo.AppendEvent(ctx, e); err != nil {
		slog.WarnContext(ctx, "append order event", "order_id", e.OrderID, "to", e.ToStatus, "error", err)
	}
}

func newPickupCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("pickup code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

func newOrderNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return "", fmt.Errorf("order number: %w", err)
	}
	return fmt.Sprintf("PR%d%03d", now.UnixMilli(), n.Int64()), nil
}
