// README: Order aggregate, actor roles and the status transition table.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"routebite/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusPickedUp  Status = "picked_up"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var AllStatuses = []Status{
	StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
	StatusPickedUp, StatusCancelled, StatusNoShow,
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusPickedUp || s == StatusCancelled || s == StatusNoShow
}

// holdsCapacity reports whether an order in s still counts against the restaurant.
func (s Status) holdsCapacity() bool {
	return s.Valid() && !s.Terminal()
}

type Role string

const (
	RoleUser       Role = "user"
	RoleRestaurant Role = "restaurant"
	RoleAdmin      Role = "admin"
	// RoleSystem is used for transitions the service drives itself (pickup verification).
	RoleSystem Role = "system"
)

type Actor struct {
	Role Role
	ID   types.ID
}

type Item struct {
	MenuItemID types.ID        `json:"menuItemId"`
	ItemName   string          `json:"itemName"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID                   types.ID        `json:"id"`
	OrderNumber          string          `json:"orderNumber"`
	UserID               types.ID        `json:"userId"`
	RestaurantID         types.ID        `json:"restaurantId"`
	Items                []Item          `json:"items"`
	TotalAmount          decimal.Decimal `json:"totalAmount"`
	PaidAmount           decimal.Decimal `json:"paidAmount"`
	Currency             string          `json:"currency"`
	Status               Status          `json:"status"`
	StatusVersion        int             `json:"statusVersion"`
	PickupCode           string          `json:"-"`
	PickupCodeExpiresAt  time.Time       `json:"pickupCodeExpiresAt"`
	EstimatedArrivalTime time.Time       `json:"estimatedArrivalTime"`
	EstimatedReadyTime   time.Time       `json:"estimatedReadyTime"`
	HoldWindowEnd        time.Time       `json:"holdWindowEnd"`
	ActualReadyTime      *time.Time      `json:"actualReadyTime,omitempty"`
	ActualPickupTime     *time.Time      `json:"actualPickupTime,omitempty"`
	DelayReason          *string         `json:"delayReason,omitempty"`
	Rating               *int            `json:"rating,omitempty"`
	RatingComment        *string         `json:"ratingComment,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
}

type Event struct {
	ID         int64     `json:"id"`
	OrderID    types.ID  `json:"orderId"`
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	ActorRole  Role      `json:"actorRole"`
	ActorID    *types.ID `json:"actorId,omitempty"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

var (
	staffRoles  = []Role{RoleRestaurant, RoleAdmin}
	cancelRoles = []Role{RoleUser, RoleRestaurant, RoleAdmin}
	systemRoles = []Role{RoleSystem}
)

// AllowedTransitions represents the order state flow as code: from -> to -> roles.
// Terminal states have no entry.
var AllowedTransitions = map[Status]map[Status][]Role{
	StatusPending: {
		StatusConfirmed: staffRoles,
		StatusCancelled: cancelRoles,
		StatusNoShow:    staffRoles,
	},
	StatusConfirmed: {
		StatusPreparing: staffRoles,
		StatusCancelled: cancelRoles,
		StatusNoShow:    staffRoles,
	},
	StatusPreparing: {
		StatusReady:     staffRoles,
		StatusCancelled: cancelRoles,
		StatusNoShow:    staffRoles,
	},
	StatusReady: {
		StatusPickedUp:  systemRoles,
		StatusCancelled: cancelRoles,
		StatusNoShow:    staffRoles,
	},
}

// delayable statuses accept a delay notice without changing status.
var delayable = map[Status]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusPreparing: true,
}

func CanTransition(from, to Status) bool {
	_, ok := AllowedTransitions[from][to]
	return ok
}

// Permitted reports whether role may drive from -> to. It is false for any
// edge missing from the table.
func Permitted(from, to Status, role Role) bool {
	for _, r := range AllowedTransitions[from][to] {
		if r == role {
			return true
		}
	}
	return false
}
