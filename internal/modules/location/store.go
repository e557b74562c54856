// README: Restaurant position index backed by Redis GEO.
package location

import (
	"context"

	"github.com/redis/go-redis/v9"

	"routebite/internal/types"
)

const restaurantGeoKey = "routebite:restaurants:geo"

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) Upsert(ctx context.Context, id types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, restaurantGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

// Within returns indexed restaurants within radiusKm of p, closest first.
func (s *Store) Within(ctx context.Context, p types.Point, radiusKm float64) ([]Hit, error) {
	results, err := s.redis.GeoRadius(ctx, restaurantGeoKey, p.Lng, p.Lat, &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{ID: types.ID(r.Name), DistanceKm: r.Dist}
	}
	return hits, nil
}
