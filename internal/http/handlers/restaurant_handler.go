// README: Restaurant handlers for detail, menu, the capacity view and the order queue.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"routebite/internal/modules/capacity"
	"routebite/internal/modules/order"
	"routebite/internal/modules/restaurant"
	"routebite/internal/types"
)

type MenuReader interface {
	Menu(ctx context.Context, restaurantID types.ID) ([]restaurant.MenuItem, error)
}

type RestaurantHandler struct {
	dir    order.Directory
	menu   MenuReader
	ledger capacity.Ledger
	order  *order.Service
}

func NewRestaurantHandler(dir order.Directory, menu MenuReader, ledger capacity.Ledger, orderSvc *order.Service) *RestaurantHandler {
	return &RestaurantHandler{dir: dir, menu: menu, ledger: ledger, order: orderSvc}
}

type restaurantResp struct {
	ID                  types.ID    `json:"id"`
	Name                string      `json:"name"`
	Location            types.Point `json:"location"`
	AvgPrepTimeMinutes  int         `json:"avgPrepTimeMinutes"`
	AcceptsOrders       bool        `json:"acceptsOrders"`
	IsActive            bool        `json:"isActive"`
	CurrentOrders       int         `json:"currentOrders"`
	MaxConcurrentOrders int         `json:"maxConcurrentOrders"`
	SameSideOfRoad      bool        `json:"sameSideOfRoad"`
	ParkingAvailable    bool        `json:"parkingAvailable"`
	Orderable           bool        `json:"orderable"`
}

// Get returns one restaurant with its live order count.
func (h *RestaurantHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	snap, err := h.dir.Get(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, restaurantResp{
		ID:                  snap.ID,
		Name:                snap.Name,
		Location:            snap.Location,
		AvgPrepTimeMinutes:  snap.AvgPrepTimeMinutes,
		AcceptsOrders:       snap.AcceptsOrders,
		IsActive:            snap.IsActive,
		CurrentOrders:       snap.CurrentOrders,
		MaxConcurrentOrders: snap.MaxConcurrentOrders,
		SameSideOfRoad:      snap.SameSideOfRoad,
		ParkingAvailable:    snap.ParkingAvailable,
		Orderable:           snap.IsActive && snap.AcceptsOrders && !snap.AtCapacity(),
	})
}

// Menu lists the restaurant's available items grouped by category.
func (h *RestaurantHandler) Menu(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.dir.Get(ctx, id); err != nil {
		writeAppError(c, err)
		return
	}
	items, err := h.menu.Menu(ctx, id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	if items == nil {
		items = []restaurant.MenuItem{}
	}
	writeJSON(c, http.StatusOK, gin.H{"restaurantId": id, "items": items})
}

type capacityResp struct {
	RestaurantID        types.ID `json:"restaurantId"`
	CurrentOrders       int      `json:"currentOrders"`
	MaxConcurrentOrders int      `json:"maxConcurrentOrders"`
	Available           int      `json:"available"`
	AcceptsOrders       bool     `json:"acceptsOrders"`
}

func (h *RestaurantHandler) Capacity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	snap, err := h.dir.Get(ctx, id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	counts, err := h.ledger.Counts(ctx, []types.ID{id})
	if err != nil {
		writeAppError(c, err)
		return
	}
	current := counts[id]
	writeJSON(c, http.StatusOK, capacityResp{
		RestaurantID:        id,
		CurrentOrders:       current,
		MaxConcurrentOrders: snap.MaxConcurrentOrders,
		Available:           max(snap.MaxConcurrentOrders-current, 0),
		AcceptsOrders:       snap.AcceptsOrders && snap.IsActive,
	})
}

// Orders lists the restaurant's queue, optionally narrowed by ?status=.
func (h *RestaurantHandler) Orders(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var status *order.Status
	if v := c.Query("status"); v != "" {
		s := order.Status(v)
		status = &s
	}
	orders, err := h.order.ListForRestaurant(c.Request.Context(), id, status, actor(c))
	if err != nil {
		writeAppError(c, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": orders})
}
