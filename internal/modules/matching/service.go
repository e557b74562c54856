// README: Matching service loads candidates from the directory (optionally GEO-prefiltered) and ranks them.
package matching

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"routebite/internal/apperr"
	"routebite/internal/config"
	"routebite/internal/modules/location"
	"routebite/internal/modules/restaurant"
	"routebite/internal/types"
)

// geoSlackKm absorbs the precision loss of geohash-encoded positions.
const geoSlackKm = 0.1

var tracer = otel.Tracer("routebite/matching")

type Directory interface {
	ListActive(ctx context.Context) ([]restaurant.Snapshot, error)
	GetMany(ctx context.Context, ids []types.ID) ([]restaurant.Snapshot, error)
}

type GeoIndex interface {
	Upsert(ctx context.Context, id types.ID, p types.Point) error
	Within(ctx context.Context, p types.Point, radiusKm float64) ([]location.Hit, error)
}

type Service struct {
	dir     Directory
	geo     GeoIndex
	matcher *Matcher
	cfg     config.MatchingConfig
}

// NewService wires the matcher to the directory. geo may be nil; it is only
// consulted when cfg.UseGeoIndex is set.
func NewService(dir Directory, geo GeoIndex, cfg config.MatchingConfig, now func() time.Time) *Service {
	return &Service{dir: dir, geo: geo, matcher: NewMatcher(cfg, now), cfg: cfg}
}

func (s *Service) useGeo() bool {
	return s.cfg.UseGeoIndex && s.geo != nil
}

// Prepare applies the configured budget defaults and validates req.
func (s *Service) Prepare(req *RouteRequest) error {
	return s.matcher.Prepare(req)
}

// Discover runs on-route matching against the current directory. An empty
// directory yields an empty list; a directory failure is returned as is.
func (s *Service) Discover(ctx context.Context, req RouteRequest) ([]MatchResult, error) {
	ctx, span := tracer.Start(ctx, "matching.Discover")
	defer span.End()

	if err := s.matcher.Prepare(&req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var candidates []restaurant.Snapshot
	var err error
	if s.useGeo() {
		// Any restaurant within the detour budget lies within direct+budget of the origin.
		radius := location.DistanceKm(*req.From, req.End()) + *req.MaxDetourKm + geoSlackKm
		candidates, err = s.fromIndex(ctx, *req.From, radius)
	} else {
		candidates, err = s.dir.ListActive(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load candidates")
		return nil, err
	}

	results, err := s.matcher.FindOnRoute(req, candidates)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("matching.candidates", len(candidates)),
		attribute.Int("matching.results", len(results)),
	)
	slog.DebugContext(ctx, "route matched", "candidates", len(candidates), "results", len(results))
	return results, nil
}

// Nearby lists active restaurants within radiusKm of p, closest first.
func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]Nearby, error) {
	if !p.Valid() {
		return nil, apperr.New(apperr.ErrInvalidRequest, "lat/lng must be a valid coordinate")
	}
	if !(radiusKm > 0) {
		return nil, apperr.New(apperr.ErrInvalidRequest, "radius_km must be positive")
	}

	var snaps []restaurant.Snapshot
	var err error
	if s.useGeo() {
		snaps, err = s.fromIndex(ctx, p, radiusKm+geoSlackKm)
	} else {
		snaps, err = s.dir.ListActive(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Nearby, 0, len(snaps))
	for _, r := range snaps {
		if !r.IsActive {
			continue
		}
		if !r.AcceptsOrders && !s.cfg.IncludeNonAccepting {
			continue
		}
		d := location.DistanceKm(p, r.Location)
		if d > radiusKm {
			continue
		}
		out = append(out, Nearby{
			RestaurantID: r.ID,
			Name:         r.Name,
			DistanceKm:   d,
			Orderable:    r.AcceptsOrders && !r.AtCapacity(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].RestaurantID < out[j].RestaurantID
	})
	return out, nil
}

// RebuildIndex writes every active restaurant into the GEO index.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	if s.geo == nil {
		return 0, nil
	}
	snaps, err := s.dir.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range snaps {
		if err := s.geo.Upsert(ctx, r.ID, r.Location); err != nil {
			return 0, apperr.Wrap(apperr.ErrDependencyUnavailable, "restaurant geo index", err)
		}
	}
	slog.InfoContext(ctx, "restaurant geo index rebuilt", "restaurants", len(snaps))
	return len(snaps), nil
}

func (s *Service) fromIndex(ctx context.Context, p types.Point, radiusKm float64) ([]restaurant.Snapshot, error) {
	hits, err := s.geo.Within(ctx, p, radiusKm)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDependencyUnavailable, "restaurant geo index", err)
	}
	ids := make([]types.ID, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return s.dir.GetMany(ctx, ids)
}
