// README: Route handlers for preview, on-route discovery and nearby search.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"routebite/internal/maps"
	"routebite/internal/modules/matching"
	"routebite/internal/types"
)

const defaultNearbyRadiusKm = 5.0

type RoutePreviewer interface {
	Preview(ctx context.Context, req maps.PreviewRequest) (maps.Preview, error)
}

type RouteHandler struct {
	routes   RoutePreviewer
	matching *matching.Service
}

func NewRouteHandler(routes RoutePreviewer, matchingSvc *matching.Service) *RouteHandler {
	return &RouteHandler{routes: routes, matching: matchingSvc}
}

type previewResp struct {
	maps.Preview
	TransportMode  string  `json:"transportMode"`
	MaxDetourKm    float64 `json:"maxDetourKm"`
	MaxWaitMinutes int     `json:"maxWaitMinutes"`
}

func (h *RouteHandler) Preview(c *gin.Context) {
	var req matching.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.matching.Prepare(&req); err != nil {
		writeAppError(c, err)
		return
	}
	p, err := h.routes.Preview(c.Request.Context(), maps.PreviewRequest{
		From:          *req.From,
		To:            *req.To,
		Via:           req.Via,
		TransportMode: string(req.TransportMode),
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, previewResp{
		Preview:        p,
		TransportMode:  string(req.TransportMode),
		MaxDetourKm:    *req.MaxDetourKm,
		MaxWaitMinutes: *req.MaxWaitMinutes,
	})
}

func (h *RouteHandler) OnRoute(c *gin.Context) {
	var req matching.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	results, err := h.matching.Discover(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	if results == nil {
		results = []matching.MatchResult{}
	}
	writeJSON(c, http.StatusOK, gin.H{"restaurants": results})
}

func (h *RouteHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radius := defaultNearbyRadiusKm
	if v := c.Query("radius_km"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid radius_km")
			return
		}
		radius = r
	}
	results, err := h.matching.Nearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"restaurants": results})
}
