// README: Read-only restaurant and menu projections consumed by the core.
package restaurant

import (
	"github.com/shopspring/decimal"

	"routebite/internal/types"
)

// Snapshot is the restaurant state as read at call time. CurrentOrders is
// only ever changed through a capacity ledger.
type Snapshot struct {
	ID                  types.ID
	OwnerID             types.ID
	Name                string
	Location            types.Point
	AvgPrepTimeMinutes  int
	AcceptsOrders       bool
	IsActive            bool
	CurrentOrders       int
	MaxConcurrentOrders int
	SameSideOfRoad      bool
	ParkingAvailable    bool
}

func (s Snapshot) AtCapacity() bool {
	return s.CurrentOrders >= s.MaxConcurrentOrders
}

type MenuItem struct {
	ID              types.ID        `json:"id"`
	RestaurantID    types.ID        `json:"restaurantId"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Price           decimal.Decimal `json:"price"`
	IsAvailable     bool            `json:"isAvailable"`
	PrepTimeMinutes int             `json:"prepTimeMinutes"`
}
