// README: Pure on-route matching: detour filter, capability filters, confidence and ranking.
package matching

import (
	"fmt"
	"math"
	"sort"
	"time"

	"routebite/internal/apperr"
	"routebite/internal/config"
	"routebite/internal/modules/location"
	"routebite/internal/modules/restaurant"
)

type Matcher struct {
	cfg config.MatchingConfig
	now func() time.Time
}

func NewMatcher(cfg config.MatchingConfig, now func() time.Time) *Matcher {
	if now == nil {
		now = time.Now
	}
	return &Matcher{cfg: cfg, now: now}
}

// Prepare fills omitted budgets from the matching config, then validates.
func (m *Matcher) Prepare(req *RouteRequest) error {
	if req.MaxDetourKm == nil {
		d := m.cfg.DefaultMaxDetourKm
		req.MaxDetourKm = &d
	}
	if req.MaxWaitMinutes == nil {
		w := m.cfg.DefaultMaxWaitMinutes
		req.MaxWaitMinutes = &w
	}
	return Validate(req)
}

// Validate normalises the transport mode and rejects malformed requests.
func Validate(req *RouteRequest) error {
	if req.From == nil || req.To == nil {
		return apperr.New(apperr.ErrInvalidRequest, "from and to are required")
	}
	if !req.From.Valid() || !req.To.Valid() {
		return apperr.New(apperr.ErrInvalidRequest, "from/to must be valid coordinates")
	}
	if req.Via != nil && !req.Via.Valid() {
		return apperr.New(apperr.ErrInvalidRequest, "via must be a valid coordinate")
	}
	if req.MaxDetourKm != nil && !nonNegative(*req.MaxDetourKm) {
		return apperr.New(apperr.ErrInvalidRequest, "maxDetourKm must be a non-negative number")
	}
	if req.MaxWaitMinutes != nil && *req.MaxWaitMinutes < 0 {
		return apperr.New(apperr.ErrInvalidRequest, "maxWaitMinutes must be non-negative")
	}
	if req.ArrivalEtaMinutes != nil && !nonNegative(*req.ArrivalEtaMinutes) {
		return apperr.New(apperr.ErrInvalidRequest, "arrivalEtaMinutes must be a non-negative number")
	}
	if req.TransportMode == "" {
		req.TransportMode = ModeCar
	}
	if !req.TransportMode.Valid() {
		return apperr.New(apperr.ErrInvalidRequest, fmt.Sprintf("unknown transport mode %q", req.TransportMode))
	}
	for _, f := range req.Filters {
		switch f {
		case FilterReadyUnder10, FilterSameSide, FilterParking:
		default:
			return apperr.New(apperr.ErrInvalidRequest, fmt.Sprintf("unknown filter %q", f))
		}
	}
	return nil
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// FindOnRoute returns every candidate within the detour budget that passes the
// requested filters, sorted by detour then restaurant id. It never truncates.
func (m *Matcher) FindOnRoute(req RouteRequest, candidates []restaurant.Snapshot) ([]MatchResult, error) {
	if err := m.Prepare(&req); err != nil {
		return nil, err
	}
	now := m.now()
	from, end := *req.From, req.End()
	budget := *req.MaxDetourKm

	out := make([]MatchResult, 0, len(candidates))
	for _, r := range candidates {
		if !r.IsActive {
			continue
		}
		if !r.AcceptsOrders && !m.cfg.IncludeNonAccepting {
			continue
		}
		detour := location.DetourKm(from, r.Location, end)
		if detour > budget {
			continue
		}
		if !passesFilters(r, req.Filters) {
			continue
		}
		out = append(out, MatchResult{
			RestaurantID:         r.ID,
			Name:                 r.Name,
			DetourKm:             detour,
			DistanceFromOriginKm: location.DistanceKm(from, r.Location),
			ReadyByTime:          now.Add(time.Duration(r.AvgPrepTimeMinutes) * time.Minute),
			PickupConfidence:     m.confidence(detour, r.AvgPrepTimeMinutes, req.ArrivalEtaMinutes),
			Orderable:            r.AcceptsOrders && !r.AtCapacity(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DetourKm != out[j].DetourKm {
			return out[i].DetourKm < out[j].DetourKm
		}
		return out[i].RestaurantID < out[j].RestaurantID
	})
	return out, nil
}

func passesFilters(r restaurant.Snapshot, filters []Filter) bool {
	for _, f := range filters {
		switch f {
		case FilterReadyUnder10:
			if r.AvgPrepTimeMinutes > readyUnderMinutes {
				return false
			}
		case FilterSameSide:
			if !r.SameSideOfRoad {
				return false
			}
		case FilterParking:
			if !r.ParkingAvailable {
				return false
			}
		}
	}
	return true
}

// confidence = clamp(100 - a*detour - b*|eta - prep|, 0, 100); the mismatch
// term only applies when an arrival ETA was supplied.
func (m *Matcher) confidence(detourKm float64, prepMinutes int, arrivalEta *float64) int {
	score := 100 - m.cfg.DetourPenaltyPerKm*detourKm
	if arrivalEta != nil {
		score -= m.cfg.MismatchPenaltyPerMin * math.Abs(*arrivalEta-float64(prepMinutes))
	}
	return int(math.Round(math.Max(0, math.Min(100, score))))
}
