package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ev-charging-api/internal/models"
	"ev-charging-api/internal/sources"

	"github.com/bluele/gcache"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned when a feature lacks the configuration it needs.
var ErrUnavailable = errors.New("unavailable")

// DefaultTripCacheTTL is how long a trip plan is served from the cache.
const DefaultTripCacheTTL = 10 * time.Minute

// RouteFinder resolves a driving route between two places
type RouteFinder interface {
	Route(ctx context.Context, origin, destination string) (models.Route, error)
}

// TripRepository interface for dependency injection
type TripRepository interface {
	FindStationsAlongRoute(ctx context.Context, path []models.Coordinate, bufferMeters float64, limit int) ([]models.StationView, error)
}

// TripService finds the stations along a driving route
type TripService struct {
	routes RouteFinder
	repo   TripRepository
	cache  gcache.Cache
	ttl    time.Duration
}

// NewTripService creates a new trip service. routes may be nil when no
// directions provider is configured; cache may be nil to disable caching.
func NewTripService(routes RouteFinder, repo TripRepository, cache gcache.Cache, ttl time.Duration) *TripService {
	if ttl <= 0 {
		ttl = DefaultTripCacheTTL
	}
	return &TripService{routes: routes, repo: repo, cache: cache, ttl: ttl}
}

// Plan resolves the route of req and returns the stations within req.BufferKm
// of it, capped at models.TripStationLimit.
func (s *TripService) Plan(ctx context.Context, req models.TripRequest) (models.TripPlan, error) {
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Origin == "" || req.Destination == "" {
		return models.TripPlan{}, eris.Wrap(ErrInvalidArgument, "service: origin and destination are required")
	}
	if req.BufferKm == 0 {
		req.BufferKm = models.DefaultTripBufferKm
	}
	if !isFinite(req.BufferKm) || req.BufferKm < 0 || req.BufferKm > models.MaxTripBufferKm {
		return models.TripPlan{}, eris.Wrapf(ErrInvalidArgument, "service: bufferKm must be between 0 and %g, got %g",
			models.MaxTripBufferKm, req.BufferKm)
	}
	if s.routes == nil {
		return models.TripPlan{}, eris.Wrap(ErrUnavailable, "service: trip planning needs GOOGLE_API_KEY")
	}

	key := req.Key()
	if s.cache != nil {
		if cached, err := s.cache.Get(key); err == nil {
			if plan, ok := cached.(models.TripPlan); ok {
				log.Debug().Str("key", key).Msg("service: trip cache hit")
				return plan, nil
			}
		}
	}

	route, err := s.routes.Route(ctx, req.Origin, req.Destination)
	if err != nil {
		if eris.Is(err, sources.ErrNoRoute) {
			return models.TripPlan{}, eris.Wrap(ErrInvalidArgument, "service: no route found")
		}
		return models.TripPlan{}, eris.Wrap(err, "service: failed to resolve route")
	}

	stations, err := s.repo.FindStationsAlongRoute(ctx, route.Path, req.BufferKm*1000, models.TripStationLimit)
	if err != nil {
		return models.TripPlan{}, eris.Wrap(err, "service: failed to find stations along route")
	}

	plan := models.TripPlan{
		Route: models.TripRoute{
			Polyline:     route.Polyline,
			DistanceText: route.DistanceText,
			DurationText: route.DurationText,
		},
		Stations: stations,
	}

	if s.cache != nil {
		if err := s.cache.SetWithExpire(key, plan, s.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("service: could not cache trip")
		}
	}
	return plan, nil
}
