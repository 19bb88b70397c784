package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"ev-charging-api/internal/models"

	"github.com/rotisserie/eris"
)

const defaultDirectionsURL = "https://maps.googleapis.com/maps/api/directions/json"

// ErrNoRoute is returned when the directions provider finds no route between two places.
var ErrNoRoute = errors.New("sources: no route found")

// DirectionsResponse is the part of a Directions API response the trip planner reads.
type DirectionsResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message"`
	Routes       []DirectionsRoute `json:"routes"`
}

// DirectionsRoute is one route alternative.
type DirectionsRoute struct {
	OverviewPolyline struct {
		Points string `json:"points"`
	} `json:"overview_polyline"`
	Legs []DirectionsLeg `json:"legs"`
}

// DirectionsLeg is the part of a route between two waypoints.
type DirectionsLeg struct {
	Distance *DirectionsText `json:"distance"`
	Duration *DirectionsText `json:"duration"`
}

// DirectionsText is a human readable distance or duration.
type DirectionsText struct {
	Text string `json:"text"`
}

// Directions resolves driving routes with the Google Directions API. It serves
// API requests, so an open breaker fails the call instead of waiting.
type Directions struct {
	apiKey string
	url    string
	up     *upstream
}

// NewDirections creates a Directions client.
func NewDirections(apiKey string, opts ...Option) *Directions {
	o := buildOptions(defaultDirectionsURL, 0, opts)
	up := newUpstream("directions", o)
	up.failFast = true
	return &Directions{apiKey: apiKey, url: o.baseURL, up: up}
}

// Route returns the first driving route from origin to destination with its
// decoded overview path.
func (d *Directions) Route(ctx context.Context, origin, destination string) (models.Route, error) {
	params := url.Values{}
	params.Set("origin", origin)
	params.Set("destination", destination)
	params.Set("mode", "driving")
	params.Set("key", d.apiKey)

	body, err := d.up.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, d.url+"?"+params.Encode(), nil)
	})
	if err != nil {
		return models.Route{}, err
	}

	var resp DirectionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Route{}, eris.Wrap(err, "directions: unmarshal response")
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return models.Route{}, eris.Wrapf(ErrNoRoute, "directions: %s to %s", origin, destination)
	default:
		return models.Route{}, eris.Errorf("directions: status %s: %s", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Routes) == 0 {
		return models.Route{}, eris.Wrapf(ErrNoRoute, "directions: %s to %s", origin, destination)
	}

	first := resp.Routes[0]
	path, err := DecodePolyline(first.OverviewPolyline.Points)
	if err != nil {
		return models.Route{}, eris.Wrap(err, "directions: decode overview polyline")
	}
	if len(path) == 0 {
		return models.Route{}, eris.Wrapf(ErrNoRoute, "directions: empty route from %s to %s", origin, destination)
	}

	route := models.Route{Polyline: first.OverviewPolyline.Points, Path: path}
	if len(first.Legs) > 0 {
		if leg := first.Legs[0]; leg.Distance != nil {
			route.DistanceText = &leg.Distance.Text
		}
		if leg := first.Legs[0]; leg.Duration != nil {
			route.DurationText = &leg.Duration.Text
		}
	}
	return route, nil
}
