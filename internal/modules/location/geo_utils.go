// README: Pure geographic helpers (haversine distance, detour through a stop).
package location

import (
	"math"

	"routebite/internal/types"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle (haversine) distance between two points.
// Out-of-range input yields a finite but meaningless number; validate first.
func DistanceKm(a, b types.Point) float64 {
	if a == b {
		return 0
	}
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)
	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	h = math.Min(1, math.Max(0, h))
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// DetourKm is the extra distance of going from -> via -> to instead of from -> to.
// Floating-point noise below zero is clamped to 0.
func DetourKm(from, via, to types.Point) float64 {
	d := DistanceKm(from, via) + DistanceKm(via, to) - DistanceKm(from, to)
	if d < 0 {
		return 0
	}
	return d
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
