package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ev-charging-api/internal/config"
	"ev-charging-api/internal/handler"
	"ev-charging-api/internal/repository"
	"ev-charging-api/internal/service"
	"ev-charging-api/internal/sources"

	"github.com/rs/zerolog/log"
)

// @title        EV Charging Stations API
// @version      1.0
// @description  Read-only access to aggregated EV charging stations and stations along a route.
// @BasePath     /
func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if err := config.InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("cannot init logger")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Database connection
	repo, err := repository.Open(ctx, cfg.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer repo.Close()

	// Initialize layers
	cache := service.NewStationCache(cfg.CacheSize, cfg.CacheTTL)
	stationService := service.NewStationService(repo, cache)
	nearbyService := service.NewNearbyService(repo)

	var routes service.RouteFinder
	if cfg.GoogleAPIKey != "" {
		routes = sources.NewDirections(cfg.GoogleAPIKey,
			sources.WithBaseURL(cfg.GoogleDirectionsURL),
			sources.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
			sources.WithBreakerTimeout(cfg.BreakerTimeout))
	} else {
		log.Warn().Msg("GOOGLE_API_KEY not set, trip planner disabled")
	}
	tripService := service.NewTripService(routes, repo, cache, cfg.TripCacheTTL)

	stationHandler := handler.NewStationHandler(stationService)
	nearestHandler := handler.NewNearestHandler(nearbyService)
	tripHandler := handler.NewTripHandler(tripService)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           handler.NewRouter(stationHandler, nearestHandler, tripHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", cfg.ServerAddress).Msg("REST API listening")
	if err := run(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func run(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
