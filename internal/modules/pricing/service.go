// README: Pricing service validates a cart against the menu catalog and totals it.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"routebite/internal/apperr"
	"routebite/internal/modules/restaurant"
	"routebite/internal/types"
)

const maxQuantity = 99

// Catalog is the authoritative source of item names, prices and availability.
type Catalog interface {
	MenuItems(ctx context.Context, restaurantID types.ID, ids []types.ID) (map[types.ID]restaurant.MenuItem, error)
}

type Service struct {
	catalog  Catalog
	currency string
}

func NewService(catalog Catalog) *Service {
	return &Service{catalog: catalog, currency: types.DefaultCurrency}
}

// PriceCart rejects empty carts, bad quantities and items that are unknown,
// belong to another restaurant or are unavailable. Lines keep request order.
func (s *Service) PriceCart(ctx context.Context, restaurantID types.ID, lines []Line) (Quote, error) {
	if restaurantID == "" {
		return Quote{}, apperr.New(apperr.ErrInvalidRequest, "restaurantId is required")
	}
	if len(lines) == 0 {
		return Quote{}, apperr.New(apperr.ErrInvalidRequest, "cart is empty")
	}
	ids := make([]types.ID, 0, len(lines))
	for i, l := range lines {
		if l.MenuItemID == "" {
			return Quote{}, apperr.New(apperr.ErrInvalidRequest, fmt.Sprintf("item %d: menuItemId is required", i))
		}
		if l.Quantity < 1 || l.Quantity > maxQuantity {
			return Quote{}, apperr.New(apperr.ErrInvalidRequest,
				fmt.Sprintf("item %s: quantity must be between 1 and %d", l.MenuItemID, maxQuantity))
		}
		ids = append(ids, l.MenuItemID)
	}

	items, err := s.catalog.MenuItems(ctx, restaurantID, ids)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		RestaurantID: restaurantID,
		Lines:        make([]PricedLine, 0, len(lines)),
		Total:        decimal.Zero,
		Currency:     s.currency,
	}
	for _, l := range lines {
		item, ok := items[l.MenuItemID]
		if !ok {
			return Quote{}, apperr.New(apperr.ErrInvalidRequest, fmt.Sprintf("menu item %s not found", l.MenuItemID))
		}
		if !item.IsAvailable {
			return Quote{}, apperr.New(apperr.ErrInvalidRequest, fmt.Sprintf("menu item %s is unavailable", l.MenuItemID))
		}
		subtotal := item.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		q.Lines = append(q.Lines, PricedLine{
			MenuItemID: item.ID,
			ItemName:   item.Name,
			UnitPrice:  item.Price,
			Quantity:   l.Quantity,
			Subtotal:   subtotal,
		})
		q.Total = q.Total.Add(subtotal)
		if item.PrepTimeMinutes > q.MaxPrepMinutes {
			q.MaxPrepMinutes = item.PrepTimeMinutes
		}
	}
	return q, nil
}
