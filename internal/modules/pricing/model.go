// README: Cart lines and the priced quote returned by cart validation.
package pricing

import (
	"github.com/shopspring/decimal"

	"routebite/internal/types"
)

type Line struct {
	MenuItemID types.ID `json:"menuItemId"`
	Quantity   int      `json:"quantity"`
}

// PricedLine carries the catalog's name and price at the time of pricing.
type PricedLine struct {
	MenuItemID types.ID        `json:"menuItemId"`
	ItemName   string          `json:"itemName"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type Quote struct {
	RestaurantID types.ID        `json:"restaurantId"`
	Lines        []PricedLine    `json:"items"`
	Total        decimal.Decimal `json:"totalAmount"`
	Currency     string          `json:"currency"`
	// MaxPrepMinutes is the slowest line's prep time.
	MaxPrepMinutes int `json:"maxPrepMinutes"`
}
