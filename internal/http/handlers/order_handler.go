// README: Order handlers for cart validation, slot locking, creation, status updates, pickup and rating.
package handlers

import (
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"routebite/internal/modules/order"
	"routebite/internal/modules/pricing"
	"routebite/internal/types"
)

type OrderHandler struct {
	order   *order.Service
	pricing *pricing.Service
}

func NewOrderHandler(orderSvc *order.Service, pricingSvc *pricing.Service) *OrderHandler {
	return &OrderHandler{order: orderSvc, pricing: pricingSvc}
}

type cartReq struct {
	RestaurantID string         `json:"restaurantId"`
	Items        []pricing.Line `json:"items"`
}

// Minute fields accept fractional values and are rounded to whole minutes.
type lockSlotReq struct {
	RestaurantID      string  `json:"restaurantId"`
	ArrivalEtaMinutes float64 `json:"arrivalEtaMinutes"`
	UserLateByMinutes float64 `json:"userLateByMinutes"`
}

type createOrderReq struct {
	RestaurantID      string         `json:"restaurantId"`
	Items             []pricing.Line `json:"items"`
	ArrivalEtaMinutes float64        `json:"arrivalEtaMinutes"`
	UserLateByMinutes float64        `json:"userLateByMinutes"`
}

// maxMinutes bounds minute fields to one day.
const maxMinutes = 24 * 60

func wholeMinutes(v float64) (int, bool) {
	if math.IsNaN(v) || v < 0 || v > maxMinutes {
		return 0, false
	}
	return int(math.Round(v)), true
}

// minutesPair rounds the eta and lateness fields or writes a 400 naming the bad one.
func minutesPair(c *gin.Context, eta, late float64) (int, int, bool) {
	e, ok := wholeMinutes(eta)
	if !ok {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("arrivalEtaMinutes must be between 0 and %d", maxMinutes))
		return 0, 0, false
	}
	l, ok := wholeMinutes(late)
	if !ok {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("userLateByMinutes must be between 0 and %d", maxMinutes))
		return 0, 0, false
	}
	return e, l, true
}

type updateStatusReq struct {
	Status      string `json:"status"`
	DelayReason string `json:"delayReason"`
}

type verifyCodeReq struct {
	Code string `json:"code"`
}

type ratingReq struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

// orderResp shows the pickup code to the customer who owns the order and to nobody else.
type orderResp struct {
	*order.Order
	PickupCode string `json:"pickupCode,omitempty"`
}

func view(o *order.Order, a order.Actor) orderResp {
	resp := orderResp{Order: o}
	if a.Role == order.RoleUser && a.ID == o.UserID {
		resp.PickupCode = o.PickupCode
	}
	return resp
}

func (h *OrderHandler) ValidateCart(c *gin.Context) {
	var req cartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(req.RestaurantID) {
		writeError(c, http.StatusBadRequest, "invalid restaurantId")
		return
	}
	quote, err := h.pricing.PriceCart(c.Request.Context(), types.ID(req.RestaurantID), req.Items)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, quote)
}

func (h *OrderHandler) LockSlot(c *gin.Context) {
	var req lockSlotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(req.RestaurantID) {
		writeError(c, http.StatusBadRequest, "invalid restaurantId")
		return
	}
	eta, late, ok := minutesPair(c, req.ArrivalEtaMinutes, req.UserLateByMinutes)
	if !ok {
		return
	}
	lock, err := h.order.LockSlot(c.Request.Context(), types.ID(req.RestaurantID), eta, late)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, lock)
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(req.RestaurantID) {
		writeError(c, http.StatusBadRequest, "invalid restaurantId")
		return
	}
	a := actor(c)
	if a.Role != order.RoleUser {
		writeError(c, http.StatusForbidden, "only customers can place orders")
		return
	}
	eta, late, ok := minutesPair(c, req.ArrivalEtaMinutes, req.UserLateByMinutes)
	if !ok {
		return
	}
	o, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		UserID:            a.ID,
		RestaurantID:      types.ID(req.RestaurantID),
		Items:             req.Items,
		ArrivalEtaMinutes: eta,
		LateByMinutes:     late,
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, view(o, a))
}

func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.order.ListMine(c.Request.Context(), actor(c))
	if err != nil {
		writeAppError(c, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": orders})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a := actor(c)
	o, err := h.order.Get(c.Request.Context(), id, a)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view(o, a))
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	a := actor(c)
	o, err := h.order.UpdateStatus(c.Request.Context(), order.UpdateStatusCommand{
		OrderID:     id,
		Status:      order.Status(req.Status),
		DelayReason: req.DelayReason,
		Actor:       a,
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view(o, a))
}

func (h *OrderHandler) VerifyCode(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req verifyCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Code == "" {
		writeError(c, http.StatusBadRequest, "missing code")
		return
	}
	a := actor(c)
	o, err := h.order.VerifyPickupCode(c.Request.Context(), order.VerifyCommand{OrderID: id, Code: req.Code, Actor: a})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view(o, a))
}

func (h *OrderHandler) Rate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ratingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	a := actor(c)
	o, err := h.order.Rate(c.Request.Context(), order.RateCommand{OrderID: id, Rating: req.Rating, Comment: req.Comment, Actor: a})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view(o, a))
}

func (h *OrderHandler) Events(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	events, err := h.order.Events(c.Request.Context(), id, actor(c))
	if err != nil {
		writeAppError(c, err)
		return
	}
	if events == nil {
		events = []order.Event{}
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events})
}
