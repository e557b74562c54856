// README: Route preview through the Google Maps Directions API.
package maps

import (
	"context"
	"fmt"
	"math"
	"time"

	"googlemaps.github.io/maps"

	"routebite/internal/apperr"
	"routebite/internal/types"
)

type directionsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client directionsClient
	now    func() time.Time
}

// NewRouteService creates a RouteService. An empty key yields a service that
// reports the provider as unavailable.
func NewRouteService(apiKey string) (*RouteService, error) {
	s := &RouteService{now: time.Now}
	if apiKey == "" {
		return s, nil
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	s.client = client
	return s, nil
}

type PreviewRequest struct {
	From          types.Point
	To            types.Point
	Via           *types.Point
	TransportMode string
}

type Preview struct {
	Polyline        string    `json:"polyline"`
	DistanceKm      float64   `json:"distanceKm"`
	DurationMinutes int       `json:"durationMinutes"`
	ETA             time.Time `json:"eta"`
}

var travelModes = map[string]maps.Mode{
	"":     maps.TravelModeDriving,
	"car":  maps.TravelModeDriving,
	"bike": maps.TravelModeBicycling,
	"walk": maps.TravelModeWalking,
}

// Preview asks the provider for from -> (via) -> to and sums every leg.
func (s *RouteService) Preview(ctx context.Context, req PreviewRequest) (Preview, error) {
	if !req.From.Valid() || !req.To.Valid() || (req.Via != nil && !req.Via.Valid()) {
		return Preview{}, apperr.New(apperr.ErrInvalidRequest, "from/to/via must be valid coordinates")
	}
	mode, ok := travelModes[req.TransportMode]
	if !ok {
		return Preview{}, apperr.New(apperr.ErrInvalidRequest, fmt.Sprintf("unknown transport mode %q", req.TransportMode))
	}
	if s.client == nil {
		return Preview{}, apperr.New(apperr.ErrDependencyUnavailable, "routing provider not configured")
	}

	r := &maps.DirectionsRequest{
		Origin:      latLng(req.From),
		Destination: latLng(req.To),
		Mode:        mode,
	}
	if req.Via != nil {
		r.Waypoints = []string{latLng(*req.Via)}
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return Preview{}, apperr.Wrap(apperr.ErrDependencyUnavailable, "maps api", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Preview{}, apperr.New(apperr.ErrDependencyUnavailable, "no route found")
	}

	var meters int
	var duration time.Duration
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
		duration += leg.Duration
	}
	return Preview{
		Polyline:        routes[0].OverviewPolyline.Points,
		DistanceKm:      math.Round(float64(meters)/100) / 10,
		DurationMinutes: int(math.Ceil(duration.Minutes())),
		ETA:             s.now().Add(duration),
	}, nil
}

func latLng(p types.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
