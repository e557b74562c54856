// README: Route request, filters and ranked match results for on-route discovery.
package matching

import (
	"time"

	"routebite/internal/types"
)

type TransportMode string

const (
	ModeCar  TransportMode = "car"
	ModeBike TransportMode = "bike"
	ModeWalk TransportMode = "walk"
)

func (m TransportMode) Valid() bool {
	switch m {
	case ModeCar, ModeBike, ModeWalk:
		return true
	}
	return false
}

type Filter string

const (
	FilterReadyUnder10 Filter = "ready_under_10"
	FilterSameSide     Filter = "same_side"
	FilterParking      Filter = "parking"
)

// readyUnderMinutes is the prep-time bound of FilterReadyUnder10.
const readyUnderMinutes = 10

// RouteRequest is immutable for the duration of one matching call.
// Via, when set, replaces To as the effective route end. Omitted budgets take
// the configured defaults.
type RouteRequest struct {
	From              *types.Point  `json:"from"`
	To                *types.Point  `json:"to"`
	Via               *types.Point  `json:"via,omitempty"`
	MaxDetourKm       *float64      `json:"maxDetourKm,omitempty"`
	MaxWaitMinutes    *int          `json:"maxWaitMinutes,omitempty"`
	TransportMode     TransportMode `json:"transportMode"`
	Filters           []Filter      `json:"filters"`
	ArrivalEtaMinutes *float64      `json:"arrivalEtaMinutes,omitempty"`
}

// End is the effective route endpoint.
func (r RouteRequest) End() types.Point {
	if r.Via != nil {
		return *r.Via
	}
	return *r.To
}

// MatchResult ranks one surviving restaurant. PickupConfidence is a ranking
// aid in 0..100, not a probability.
type MatchResult struct {
	RestaurantID         types.ID  `json:"restaurantId"`
	Name                 string    `json:"name"`
	DetourKm             float64   `json:"detourKm"`
	DistanceFromOriginKm float64   `json:"distanceFromOriginKm"`
	ReadyByTime          time.Time `json:"readyByTime"`
	PickupConfidence     int       `json:"pickupConfidence"`
	Orderable            bool      `json:"orderable"`
}

// Nearby is one restaurant within a radius of a point.
type Nearby struct {
	RestaurantID types.ID `json:"restaurantId"`
	Name         string   `json:"name"`
	DistanceKm   float64  `json:"distanceKm"`
	Orderable    bool     `json:"orderable"`
}
