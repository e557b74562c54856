// README: Forward and reverse geocoding through the Google Maps Geocoding API.
package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"routebite/internal/apperr"
	"routebite/internal/types"
)

// minAddressLen is the shortest address worth sending to the provider.
const minAddressLen = 3

type geocodingClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

type GeocodeService struct {
	client geocodingClient
	region string
}

// Address is the first reverse-geocoding result split into its parts.
type Address struct {
	FormattedAddress string      `json:"formattedAddress"`
	City             string      `json:"city,omitempty"`
	State            string      `json:"state,omitempty"`
	Country          string      `json:"country,omitempty"`
	PostalCode       string      `json:"postalCode,omitempty"`
	Location         types.Point `json:"location"`
}

// NewGeocodeService creates a GeocodeService biased towards region (a ccTLD
// such as "in"). An empty key yields a service that reports the provider as
// unavailable.
func NewGeocodeService(apiKey, region string) (*GeocodeService, error) {
	s := &GeocodeService{region: region}
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

// Geocode resolves a free-form address to the provider's best match.
func (s *GeocodeService) Geocode(ctx context.Context, address string) (types.Point, error) {
	address = strings.TrimSpace(address)
	if len(address) < minAddressLen {
		return types.Point{}, apperr.New(apperr.ErrInvalidRequest, fmt.Sprintf("address must be at least %d characters", minAddressLen))
	}
	if s.client == nil {
		return types.Point{}, apperr.New(apperr.ErrDependencyUnavailable, "geocoding provider not configured")
	}
	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{Address: address, Region: s.region})
	if err != nil {
		return types.Point{}, apperr.Wrap(apperr.ErrDependencyUnavailable, "maps api", err)
	}
	if len(results) == 0 {
		return types.Point{}, apperr.New(apperr.ErrNotFound, "no location for address")
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// ReverseGeocode describes the address at p.
func (s *GeocodeService) ReverseGeocode(ctx context.Context, p types.Point) (Address, error) {
	if !p.Valid() {
		return Address{}, apperr.New(apperr.ErrInvalidRequest, "lat/lng must be a valid coordinate")
	}
	if s.client == nil {
		return Address{}, apperr.New(apperr.ErrDependencyUnavailable, "geocoding provider not configured")
	}
	results, err := s.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
		Region: s.region,
	})
	if err != nil {
		return Address{}, apperr.Wrap(apperr.ErrDependencyUnavailable, "maps api", err)
	}
	if len(results) == 0 {
		return Address{}, apperr.New(apperr.ErrNotFound, "no address at location")
	}

	r := results[0]
	addr := Address{FormattedAddress: r.FormattedAddress, Location: p}
	for _, c := range r.AddressComponents {
		for _, t := range c.Types {
			switch t {
			case "locality", "postal_town":
				if addr.City == "" {
					addr.City = c.LongName
				}
			case "administrative_area_level_1":
				addr.State = c.LongName
			case "country":
				addr.Country = c.LongName
			case "postal_code":
				addr.PostalCode = c.LongName
			}
		}
	}
	return addr, nil
}
