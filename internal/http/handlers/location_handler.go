// README: Location handlers for forward and reverse geocoding.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"routebite/internal/maps"
	"routebite/internal/types"
)

type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
	ReverseGeocode(ctx context.Context, p types.Point) (maps.Address, error)
}

type LocationHandler struct {
	geocoder Geocoder
}

func NewLocationHandler(geocoder Geocoder) *LocationHandler {
	return &LocationHandler{geocoder: geocoder}
}

func (h *LocationHandler) Geocode(c *gin.Context) {
	address := c.Query("address")
	p, err := h.geocoder.Geocode(c.Request.Context(), address)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"address": address, "location": p})
}

func (h *LocationHandler) Reverse(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	addr, err := h.geocoder.ReverseGeocode(c.Request.Context(), types.Point{Lat: lat, Lng: lng})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, addr)
}
