package service

import (
	"context"
	"errors"
	"math"
	"time"

	"ev-charging-api/internal/models"

	"github.com/bluele/gcache"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

// ErrInvalidArgument is returned for request parameters outside their allowed range.
var ErrInvalidArgument = errors.New("invalid argument")

// MaxAllStationsLimit caps an explicit page size on the full listing.
const MaxAllStationsLimit = 2000

// StationService contains the business logic for listing and filtering stations
type StationService struct {
	repo  StationRepository
	cache gcache.Cache
}

// StationRepository interface for dependency injection
type StationRepository interface {
	ListAllStations(ctx context.Context, page models.Page) ([]models.StationView, error)
	FindStations(ctx context.Context, f models.StationFilter) ([]models.StationView, error)
}

// NewStationCache builds the LRU cache shared by the listing and trip services.
// A non-positive size or ttl disables caching and returns nil.
func NewStationCache(size int, ttl time.Duration) gcache.Cache {
	if size <= 0 || ttl <= 0 {
		log.Info().Int("size", size).Dur("ttl", ttl).Msg("service: response cache disabled")
		return nil
	}
	return gcache.New(size).
		LRU().
		Expiration(ttl).
		Build()
}

// NewStationService creates a new station service. cache may be nil to disable caching.
func NewStationService(repo StationRepository, cache gcache.Cache) *StationService {
	return &StationService{repo: repo, cache: cache}
}

// ListAll returns the projection of every station, optionally paged.
func (s *StationService) ListAll(ctx context.Context, page models.Page) ([]models.StationView, error) {
	if page.Skip < 0 {
		return nil, eris.Wrapf(ErrInvalidArgument, "service: skip must not be negative, got %d", page.Skip)
	}
	if page.Limit < 0 || page.Limit > MaxAllStationsLimit {
		return nil, eris.Wrapf(ErrInvalidArgument, "service: limit must be between 0 and %d, got %d", MaxAllStationsLimit, page.Limit)
	}

	stations, err := s.repo.ListAllStations(ctx, page)
	if err != nil {
		return nil, eris.Wrap(err, "service: failed to list stations")
	}
	return stations, nil
}

// FindStations returns stations matching the filter. Results are served from
// the cache while fresh.
func (s *StationService) FindStations(ctx context.Context, f models.StationFilter) ([]models.StationView, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}

	key := f.Key()
	if s.cache != nil {
		if cached, err := s.cache.Get(key); err == nil {
			if stations, ok := cached.([]models.StationView); ok {
				log.Debug().Str("key", key).Msg("service: station cache hit")
				return stations, nil
			}
		}
	}

	stations, err := s.repo.FindStations(ctx, f)
	if err != nil {
		return nil, eris.Wrap(err, "service: failed to find stations")
	}

	if s.cache != nil {
		if err := s.cache.Set(key, stations); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("service: could not cache stations")
		}
	}
	return stations, nil
}

func validateFilter(f models.StationFilter) error {
	if f.Limit < models.MinStationLimit || f.Limit > models.MaxStationLimit {
		return eris.Wrapf(ErrInvalidArgument, "service: limit must be between %d and %d, got %d",
			models.MinStationLimit, models.MaxStationLimit, f.Limit)
	}
	if (f.Lat == nil) != (f.Lon == nil) {
		return eris.Wrap(ErrInvalidArgument, "service: lat and lon must be given together")
	}
	if f.Lat != nil {
		if err := validateCoordinates(*f.Lat, *f.Lon); err != nil {
			return err
		}
	}
	return nil
}

func validateCoordinates(lat, lon float64) error {
	if !isFinite(lat) || !isFinite(lon) {
		return eris.Wrapf(ErrInvalidArgument, "service: coordinates must be finite, got %f,%f", lat, lon)
	}
	if lat < -90 || lat > 90 {
		return eris.Wrapf(ErrInvalidArgument, "service: invalid latitude: %f", lat)
	}
	if lon < -180 || lon > 180 {
		return eris.Wrapf(ErrInvalidArgument, "service: invalid longitude: %f", lon)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
