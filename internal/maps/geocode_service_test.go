package maps

import (
	"context"
	"errors"
	"testing"

	"googlemaps.github.io/maps"

	"routebite/internal/apperr"
	"routebite/internal/types"
)

type stubGeocoder struct {
	got     *maps.GeocodingRequest
	results []maps.GeocodingResult
	err     error
}

func (s *stubGeocoder) Geocode(_ context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	s.got = r
	return s.results, s.err
}

func (s *stubGeocoder) ReverseGeocode(_ context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	s.got = r
	return s.results, s.err
}

func TestGeocodeTrimsAndUsesRegion(t *testing.T) {
	stub := &stubGeocoder{results: []maps.GeocodingResult{{
		Geometry: maps.AddressGeometry{Location: maps.LatLng{Lat: 28.6139, Lng: 77.209}},
	}}}
	s := &GeocodeService{client: stub, region: "in"}

	p, err := s.Geocode(context.Background(), "  Connaught Place, New Delhi  ")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if p != (types.Point{Lat: 28.6139, Lng: 77.209}) {
		t.Fatalf("point = %+v", p)
	}
	if stub.got.Address != "Connaught Place, New Delhi" || stub.got.Region != "in" {
		t.Fatalf("unexpected request: %+v", stub.got)
	}
}

func TestGeocodeFailures(t *testing.T) {
	ctx := context.Background()
	empty := &GeocodeService{client: &stubGeocoder{}}

	if _, err := empty.Geocode(ctx, " ab "); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for short address, got %v", err)
	}
	if _, err := empty.Geocode(ctx, "nowhere at all"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without results, got %v", err)
	}

	failing := &GeocodeService{client: &stubGeocoder{err: errors.New("REQUEST_DENIED")}}
	if _, err := failing.Geocode(ctx, "New Delhi"); !errors.Is(err, apperr.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable on provider error, got %v", err)
	}

	unconfigured, err := NewGeocodeService("", "in")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := unconfigured.Geocode(ctx, "New Delhi"); !errors.Is(err, apperr.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable without key, got %v", err)
	}
	if _, err := unconfigured.ReverseGeocode(ctx, delhi); !errors.Is(err, apperr.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable without key, got %v", err)
	}
}

func TestReverseGeocodeSplitsComponents(t *testing.T) {
	stub := &stubGeocoder{results: []maps.GeocodingResult{{
		FormattedAddress: "Janpath, Connaught Place, New Delhi, Delhi 110001, India",
		AddressComponents: []maps.AddressComponent{
			{LongName: "Janpath", Types: []string{"route"}},
			{LongName: "New Delhi", Types: []string{"locality", "political"}},
			{LongName: "Delhi", Types: []string{"administrative_area_level_1", "political"}},
			{LongName: "India", ShortName: "IN", Types: []string{"country", "political"}},
			{LongName: "110001", Types: []string{"postal_code"}},
		},
	}}}
	s := &GeocodeService{client: stub, region: "in"}

	addr, err := s.ReverseGeocode(context.Background(), delhi)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	want := Address{
		FormattedAddress: "Janpath, Connaught Place, New Delhi, Delhi 110001, India",
		City:             "New Delhi",
		State:            "Delhi",
		Country:          "India",
		PostalCode:       "110001",
		Location:         delhi,
	}
	if addr != want {
		t.Fatalf("address = %+v, want %+v", addr, want)
	}
	if stub.got.LatLng == nil || stub.got.LatLng.Lat != delhi.Lat || stub.got.LatLng.Lng != delhi.Lng {
		t.Fatalf("unexpected request: %+v", stub.got)
	}

	if _, err := s.ReverseGeocode(context.Background(), types.Point{Lat: 91}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	none := &GeocodeService{client: &stubGeocoder{}}
	if _, err := none.ReverseGeocode(context.Background(), delhi); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without results, got %v", err)
	}
}
