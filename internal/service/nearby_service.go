package service

import (
	"context"

	"ev-charging-api/internal/models"

	"github.com/rotisserie/eris"
)

// Nearest-station search limits.
const (
	DefaultMaxDistance = 25000 // metres
	NearestLimit       = 25
)

// NearbyService contains the business logic for nearest-station lookups
type NearbyService struct {
	repo NearbyRepository
}

// NearbyRepository interface for dependency injection
type NearbyRepository interface {
	FindNearestStations(ctx context.Context, q models.NearbyQuery) ([]models.StationView, error)
}

// NewNearbyService creates a new nearby service
func NewNearbyService(repo NearbyRepository) *NearbyService {
	return &NearbyService{repo: repo}
}

// NearestStations finds the stations closest to the given coordinates using a spatial query.
// A non-positive maxDistance falls back to DefaultMaxDistance.
func (s *NearbyService) NearestStations(ctx context.Context, lat, lon, maxDistance float64) ([]models.StationView, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if !isFinite(maxDistance) {
		return nil, eris.Wrapf(ErrInvalidArgument, "service: maxDistance must be finite, got %f", maxDistance)
	}
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}

	stations, err := s.repo.FindNearestStations(ctx, models.NearbyQuery{
		Lat:         lat,
		Lon:         lon,
		MaxDistance: maxDistance,
		Limit:       NearestLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "service: failed to find nearest stations")
	}

	return stations, nil
}
